package roster

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
)

var (
	// errors
	ErrStudentNotFound = core.NewNotFoundError("student not found")
	ErrBatchNotFound   = core.NewNotFoundError("batch not found")
	ErrAlreadyEnrolled = core.NewConflictError("student is already enrolled in this batch")
	ErrBatchFull       = core.NewInvalidStateError("batch is full")
	ErrStudentInactive = core.NewInvalidStateError("student is inactive")
	ErrBatchNotRunning = core.NewInvalidStateError("batch is not running")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, s Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		UpdateStudentStatus(ctx context.Context, s Student) (Student, error)
		CreateBatch(ctx context.Context, b Batch) (Batch, error)
		GetBatch(ctx context.Context, id string) (Batch, error)
		// CreateEnrollment locks the batch row, hands it and its current headcount to check,
		// and inserts the enrollment only if check returns nil.
		CreateEnrollment(ctx context.Context, e Enrollment, check func(b Batch, headcount int) error) (Enrollment, error)
		IsEnrolled(ctx context.Context, studentID, batchID string) (bool, error)
		ListStudentBatchIDs(ctx context.Context, studentID string) ([]string, error)
		// ListTeacherStudentIDs lists the distinct students enrolled in any batch the teacher runs.
		ListTeacherStudentIDs(ctx context.Context, teacherID string) ([]string, error)
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

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, core.TranslateValidationErrors(err, svc.translator)
	}
	now := core.NowFunc()
	enrolledAt := ns.EnrolledAt
	if enrolledAt.IsZero() {
		enrolledAt = now
	}
	return svc.repo.CreateStudent(ctx, Student{
		ID:         core.NewID(),
		Name:       ns.Name,
		Email:      ns.Email,
		Status:     StatusActive,
		EnrolledAt: enrolledAt.UTC(),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

func (svc *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, id)
}

// DeactivateStudent soft-deletes a Student.
func (svc *Service) DeactivateStudent(ctx context.Context, id string) (Student, error) {
	s, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !s.IsActive() {
		return s, nil
	}
	s.Status = StatusInactive
	s.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateStudentStatus(ctx, s)
}

func (svc *Service) CreateBatch(ctx context.Context, nb NewBatch) (Batch, error) {
	if err := nb.Validate(svc.validate); err != nil {
		return Batch{}, core.TranslateValidationErrors(err, svc.translator)
	}
	b := Batch{
		ID:        core.NewID(),
		Name:      nb.Name,
		Course:    nb.Course,
		TeacherID: nb.TeacherID,
		Capacity:  nb.Capacity,
		StartsOn:  core.Date(nb.StartsOn),
		CreatedAt: core.NowFunc(),
	}
	if nb.EndsOn != nil {
		end := core.Date(*nb.EndsOn)
		b.EndsOn = &end
	}
	return svc.repo.CreateBatch(ctx, b)
}

func (svc *Service) GetBatch(ctx context.Context, id string) (Batch, error) {
	return svc.repo.GetBatch(ctx, id)
}

// Enroll links an active Student to a Batch that still has room.
func (svc *Service) Enroll(ctx context.Context, studentID, batchID string) (Enrollment, error) {
	s, err := svc.repo.GetStudent(ctx, studentID)
	if err != nil {
		return Enrollment{}, err
	}
	if !s.IsActive() {
		return Enrollment{}, ErrStudentInactive
	}

	now := core.NowFunc()
	e := Enrollment{StudentID: studentID, BatchID: batchID, EnrolledAt: now}
	e, err = svc.repo.CreateEnrollment(ctx, e, func(b Batch, headcount int) error {
		if b.EndsOn != nil && !now.Before(*b.EndsOn) {
			return ErrBatchNotRunning
		}
		if headcount >= b.Capacity {
			return ErrBatchFull
		}
		return nil
	})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "enrolling student")
	}
	return e, nil
}

func (svc *Service) IsEnrolled(ctx context.Context, studentID, batchID string) (bool, error) {
	return svc.repo.IsEnrolled(ctx, studentID, batchID)
}

func (svc *Service) StudentBatchIDs(ctx context.Context, studentID string) ([]string, error) {
	return svc.repo.ListStudentBatchIDs(ctx, studentID)
}

// BatchTeacherID returns the id of the teacher running the Batch.
func (svc *Service) BatchTeacherID(ctx context.Context, batchID string) (string, error) {
	b, err := svc.repo.GetBatch(ctx, batchID)
	if err != nil {
		return "", err
	}
	return b.TeacherID, nil
}

func (svc *Service) TeacherStudentIDs(ctx context.Context, teacherID string) ([]string, error) {
	return svc.repo.ListTeacherStudentIDs(ctx, teacherID)
}
