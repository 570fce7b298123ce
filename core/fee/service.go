package fee

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		QueryBatchEntries(ctx context.Context, batchID string) ([]Entry, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	InitValidators(validate, translator)
	return &Service{repo: repo, validate: validate, translator: translator}
}

// AddEntry appends a fee to a Batch's schedule. Overlapping ranges are accepted; Resolve settles them.
func (svc *Service) AddEntry(ctx context.Context, ne NewEntry) (Entry, error) {
	if err := ne.Validate(svc.validate); err != nil {
		return Entry{}, core.TranslateValidationErrors(err, svc.translator)
	}
	e, err := svc.repo.CreateEntry(ctx, Entry{
		ID:            core.NewID(),
		BatchID:       ne.BatchID,
		Amount:        ne.Amount,
		EffectiveFrom: ne.EffectiveFrom,
		EffectiveTo:   ne.EffectiveTo,
		CreatedAt:     core.NowFunc(),
	})
	if err != nil {
		return Entry{}, errors.Wrap(err, "creating fee entry")
	}
	return e, nil
}

// CurrentFee returns the Batch's fee in force at asOf (today when zero).
// false means no entry covers that date.
func (svc *Service) CurrentFee(ctx context.Context, batchID string, asOf time.Time) (decimal.Decimal, bool, error) {
	if asOf.IsZero() {
		asOf = core.NowFunc()
	}
	entries, err := svc.repo.QueryBatchEntries(ctx, batchID)
	if err != nil {
		return decimal.Zero, false, errors.Wrap(err, "querying fee entries")
	}
	e, ok := Resolve(entries, core.Date(asOf))
	if !ok {
		return decimal.Zero, false, nil
	}
	return e.Amount, true, nil
}

// Schedule lists a Batch's fee entries, oldest first.
func (svc *Service) Schedule(ctx context.Context, batchID string) ([]Entry, error) {
	entries, err := svc.repo.QueryBatchEntries(ctx, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "querying fee entries")
	}
	SortSchedule(entries)
	return entries, nil
}
