package resource

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/attendance"
	"github.com/trezcool/conservatoire/core/roster"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("resource not found")
	ErrAlreadyAssigned = core.NewConflictError("resource is already assigned to this target")
)

type (
	Repository interface {
		CreateResource(ctx context.Context, r Resource) (Resource, error)
		GetResource(ctx context.Context, id string) (Resource, error)
		// CreateAssignment fails with ErrAlreadyAssigned on a duplicate (resource, target).
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		// QueryAssigned returns the distinct resources assigned to any of targets.
		QueryAssigned(ctx context.Context, targets []AssignableRef) ([]Resource, error)
	}

	// Lookups resolves each kind of AssignableRef.
	Lookups interface {
		GetStudent(ctx context.Context, id string) (roster.Student, error)
		GetBatch(ctx context.Context, id string) (roster.Batch, error)
		GetSession(ctx context.Context, id string) (attendance.Session, error)
		StudentBatchIDs(ctx context.Context, studentID string) ([]string, error)
		BatchSessions(ctx context.Context, batchID string) ([]attendance.Session, error)
	}

	// ServiceLookups resolves references through the roster and attendance services.
	ServiceLookups struct {
		Roster     *roster.Service
		Attendance *attendance.Service
	}

	Service struct {
		repo       Repository
		lookups    Lookups
		validate   *validator.Validate
		translator ut.Translator
	}
)

func (l ServiceLookups) GetStudent(ctx context.Context, id string) (roster.Student, error) {
	return l.Roster.GetStudent(ctx, id)
}

func (l ServiceLookups) GetBatch(ctx context.Context, id string) (roster.Batch, error) {
	return l.Roster.GetBatch(ctx, id)
}

func (l ServiceLookups) StudentBatchIDs(ctx context.Context, studentID string) ([]string, error) {
	return l.Roster.StudentBatchIDs(ctx, studentID)
}

func (l ServiceLookups) GetSession(ctx context.Context, id string) (attendance.Session, error) {
	return l.Attendance.GetSession(ctx, id)
}

func (l ServiceLookups) BatchSessions(ctx context.Context, batchID string) ([]attendance.Session, error) {
	return l.Attendance.BatchSessions(ctx, batchID)
}

func NewService(repo Repository, lookups Lookups, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{repo: repo, lookups: lookups, validate: validate, translator: translator}
}

func (svc *Service) Create(ctx context.Context, nr NewResource) (Resource, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Resource{}, core.TranslateValidationErrors(err, svc.translator)
	}
	return svc.repo.CreateResource(ctx, Resource{
		ID:        core.NewID(),
		Title:     nr.Title,
		URL:       nr.URL,
		CreatedBy: nr.CreatedBy,
		CreatedAt: core.NowFunc(),
	})
}

// Assign links a Resource to a Student, a Batch or a Session. The target must exist.
func (svc *Service) Assign(ctx context.Context, resourceID string, target AssignableRef) (Assignment, error) {
	if err := target.Check(); err != nil {
		return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "target", Error: err.Error()})
	}
	if _, err := svc.repo.GetResource(ctx, resourceID); err != nil {
		return Assignment{}, err
	}
	if err := svc.resolve(ctx, target); err != nil {
		return Assignment{}, err
	}
	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		ResourceID: resourceID,
		Target:     target,
		AssignedAt: core.NowFunc(),
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "assigning resource")
	}
	return a, nil
}

func (svc *Service) resolve(ctx context.Context, ref AssignableRef) error {
	var err error
	switch ref.Kind {
	case KindStudent:
		_, err = svc.lookups.GetStudent(ctx, ref.ID)
	case KindBatch:
		_, err = svc.lookups.GetBatch(ctx, ref.ID)
	case KindSession:
		_, err = svc.lookups.GetSession(ctx, ref.ID)
	}
	return err
}

// ForStudent gathers the resources assigned to the Student, to their batches, or to sessions of those batches.
func (svc *Service) ForStudent(ctx context.Context, studentID string) ([]Resource, error) {
	batchIDs, err := svc.lookups.StudentBatchIDs(ctx, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "listing student batches")
	}
	targets := []AssignableRef{StudentRef(studentID)}
	for _, batchID := range batchIDs {
		targets = append(targets, BatchRef(batchID))
		sessions, err := svc.lookups.BatchSessions(ctx, batchID)
		if err != nil {
			return nil, errors.Wrap(err, "listing batch sessions")
		}
		for _, s := range sessions {
			targets = append(targets, SessionRef(s.ID))
		}
	}
	return svc.repo.QueryAssigned(ctx, targets)
}
