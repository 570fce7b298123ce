package attendance

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
)

var (
	// errors
	ErrSessionNotFound   = core.NewNotFoundError("session not found")
	ErrSessionCancelled  = core.NewInvalidStateError("attendance cannot be marked on a cancelled session")
	ErrNotEnrolled       = core.NewInvalidStateError("student is not enrolled in the session's batch")
	ErrInvalidTransition = core.NewInvalidStateError("invalid session status transition")
)

type (
	// MarkGuard vets a mark against the locked session and whether the record's student
	// is enrolled in the session's batch, as read under the same lock.
	MarkGuard func(s Session, enrolled bool) error

	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		QueryBatchSessions(ctx context.Context, batchID string) ([]Session, error)
		// UpdateSessionLocked loads the session under a row lock and persists it if fn returns nil.
		UpdateSessionLocked(ctx context.Context, id string, fn func(s *Session) error) (Session, error)
		// UpsertRecord locks the record's session, calls guard with it and the student's enrollment and,
		// if guard returns nil, inserts the record or overwrites the existing one for the same (session, student).
		UpsertRecord(ctx context.Context, rec Record, guard MarkGuard) (Record, error)
		QueryRecords(ctx context.Context, filter RecordFilter) ([]Record, error)
		CountRecords(ctx context.Context, filter RecordFilter) (Counts, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{
		repo:       repo,
		validate:   validate,
		translator: translator,
	}
}

func (svc *Service) ScheduleSession(ctx context.Context, ns NewSession) (Session, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Session{}, core.TranslateValidationErrors(err, svc.translator)
	}
	now := core.NowFunc()
	return svc.repo.CreateSession(ctx, Session{
		ID:        core.NewID(),
		BatchID:   ns.BatchID,
		StartsAt:  ns.StartsAt.UTC(),
		Status:    SessionScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

// BatchSessions lists a Batch's sessions in start order.
func (svc *Service) BatchSessions(ctx context.Context, batchID string) ([]Session, error) {
	return svc.repo.QueryBatchSessions(ctx, batchID)
}

// TransitionSession moves a Session out of `scheduled`.
func (svc *Service) TransitionSession(ctx context.Context, id, status string) (Session, error) {
	status = core.CleanString(status, true /* lower */)
	return svc.repo.UpdateSessionLocked(ctx, id, func(s *Session) error {
		if s.Status == status {
			return nil
		}
		if !s.CanTransition(status) {
			return ErrInvalidTransition
		}
		s.Status = status
		s.UpdatedAt = core.NowFunc()
		return nil
	})
}

// Mark records a Student's attendance for a Session, replacing any earlier mark.
// It does not touch credits: consuming or refunding one is left to the caller.
func (svc *Service) Mark(ctx context.Context, mr MarkRequest) (Record, error) {
	if err := mr.Validate(svc.validate); err != nil {
		return Record{}, core.TranslateValidationErrors(err, svc.translator)
	}

	rec := Record{
		ID:        core.NewID(),
		SessionID: mr.SessionID,
		StudentID: mr.StudentID,
		Status:    mr.Status,
		MarkedBy:  mr.MarkedBy,
		Notes:     mr.Notes,
		MarkedAt:  core.NowFunc(),
	}
	return svc.repo.UpsertRecord(ctx, rec, func(s Session, enrolled bool) error {
		if !enrolled {
			return ErrNotEnrolled
		}
		if s.IsCancelled() {
			return ErrSessionCancelled
		}
		return nil
	})
}

func (svc *Service) SessionRecords(ctx context.Context, sessionID string) ([]Record, error) {
	return svc.repo.QueryRecords(ctx, RecordFilter{SessionID: sessionID})
}

// SessionPercentage is the share of `present` records among a Session's records.
func (svc *Service) SessionPercentage(ctx context.Context, sessionID string) (decimal.Decimal, error) {
	c, err := svc.repo.CountRecords(ctx, RecordFilter{SessionID: sessionID})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "counting session attendance")
	}
	return c.Percentage(), nil
}

// StudentPercentage is the share of `present` records among all of a Student's records.
func (svc *Service) StudentPercentage(ctx context.Context, studentID string) (decimal.Decimal, error) {
	c, err := svc.repo.CountRecords(ctx, RecordFilter{StudentID: studentID})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "counting student attendance")
	}
	return c.Percentage(), nil
}
