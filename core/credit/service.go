package credit

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("credit entry not found")
	ErrUsageOutOfRange = core.NewInvalidStateError("used credits must stay between 0 and the credits granted")
)

type (
	// UpdateFunc mutates a locked entry and reports whether it changed.
	UpdateFunc func(e *Entry) bool

	// PickFunc mutates at most one of the locked entries and returns it, or nil when none changed.
	PickFunc func(entries []*Entry) *Entry

	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		GetEntry(ctx context.Context, id string) (Entry, error)
		QueryEntries(ctx context.Context, filter QueryFilter) ([]Entry, error)
		// UpdateEntryLocked loads the entry under a row lock, applies fn and persists the entry
		// within the same lock when fn returns true.
		UpdateEntryLocked(ctx context.Context, id string, fn UpdateFunc) (Entry, bool, error)
		// UpdateBatchEntriesLocked locks every entry a Student holds for a Batch, applies fn
		// and persists the entry fn returned, if any.
		UpdateBatchEntriesLocked(ctx context.Context, studentID, batchID string, fn PickFunc) (Entry, bool, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{repo: repo, validate: validate, translator: translator}
}

// Grant records a purchase of credits.
func (svc *Service) Grant(ctx context.Context, ng NewGrant) (Entry, error) {
	if err := ng.Validate(svc.validate); err != nil {
		return Entry{}, core.TranslateValidationErrors(err, svc.translator)
	}
	now := core.NowFunc()
	e := Entry{
		ID:           core.NewID(),
		StudentID:    ng.StudentID,
		BatchID:      ng.BatchID,
		Credits:      ng.Credits,
		AmountPaid:   ng.AmountPaid,
		PurchaseDate: ng.PurchaseDate.UTC(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if ng.ExpiryDate != nil {
		exp := ng.ExpiryDate.UTC()
		e.ExpiryDate = &exp
	}
	e, err := svc.repo.CreateEntry(ctx, e)
	if err != nil {
		return Entry{}, errors.Wrap(err, "creating credit entry")
	}
	return e, nil
}

func (svc *Service) GetEntry(ctx context.Context, id string) (Entry, error) {
	return svc.repo.GetEntry(ctx, id)
}

func (svc *Service) ListEntries(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, filter)
}

// Consume uses one credit of the given entry.
// false (with a nil error) means the entry had no credit left or has expired.
func (svc *Service) Consume(ctx context.Context, entryID string) (bool, error) {
	now := core.NowFunc()
	_, ok, err := svc.repo.UpdateEntryLocked(ctx, entryID, func(e *Entry) bool {
		return e.Consume(now)
	})
	return ok, err
}

// Refund gives back one used credit of the given entry.
// false (with a nil error) means no credit of the entry was used.
func (svc *Service) Refund(ctx context.Context, entryID string) (bool, error) {
	now := core.NowFunc()
	_, ok, err := svc.repo.UpdateEntryLocked(ctx, entryID, func(e *Entry) bool {
		return e.Refund(now)
	})
	return ok, err
}

// ConsumeForBatch uses one credit from the Student's entries for the Batch, following ConsumptionOrder.
func (svc *Service) ConsumeForBatch(ctx context.Context, studentID, batchID string) (Entry, bool, error) {
	now := core.NowFunc()
	return svc.repo.UpdateBatchEntriesLocked(ctx, studentID, batchID, func(entries []*Entry) *Entry {
		ConsumptionOrder(entries)
		for _, e := range entries {
			if e.Consume(now) {
				return e
			}
		}
		return nil
	})
}

// Remaining sums the remaining credits across the Student's non-expired entries for the Batch.
func (svc *Service) Remaining(ctx context.Context, studentID, batchID string) (int, error) {
	entries, err := svc.repo.QueryEntries(ctx, QueryFilter{StudentID: studentID, BatchID: batchID})
	if err != nil {
		return 0, errors.Wrap(err, "querying credit entries")
	}
	return RemainingOf(entries, core.NowFunc()), nil
}

func (svc *Service) HasCredits(ctx context.Context, studentID, batchID string) (bool, error) {
	remaining, err := svc.Remaining(ctx, studentID, batchID)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}
