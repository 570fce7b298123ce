package roster

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/conservatoire/core"
)

// Student statuses. Students are never hard-deleted.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Student struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Email      string    `json:"email" db:"email"`
	Status     string    `json:"status" db:"status"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"` // UTC
	CreatedAt  time.Time `json:"created_at" db:"created_at"`   // UTC
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`   // UTC
}

func (s Student) IsActive() bool { return s.Status == StatusActive }

// Batch is a scheduled course offering taught by one teacher.
type Batch struct {
	ID        string     `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Course    string     `json:"course" db:"course"`
	TeacherID string     `json:"teacher_id" db:"teacher_id"`
	Capacity  int        `json:"capacity" db:"capacity"`
	StartsOn  time.Time  `json:"starts_on" db:"starts_on"`
	EndsOn    *time.Time `json:"ends_on" db:"ends_on"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// IsActiveOn reports whether the batch runs on the given date.
func (b Batch) IsActiveOn(date time.Time) bool {
	d := core.Date(date)
	if d.Before(core.Date(b.StartsOn)) {
		return false
	}
	return b.EndsOn == nil || d.Before(core.Date(*b.EndsOn))
}

type Enrollment struct {
	StudentID  string    `json:"student_id" db:"student_id"`
	BatchID    string    `json:"batch_id" db:"batch_id"`
	EnrolledAt time.Time `json:"enrolled_at" db:"enrolled_at"`
}

// NewStudent contains information needed to enroll a new Student.
type NewStudent struct {
	Name       string    `json:"name" validate:"required,notblank"`
	Email      string    `json:"email" validate:"omitempty,email"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

// NewBatch contains information needed to open a new Batch.
type NewBatch struct {
	Name      string     `json:"name" validate:"required,notblank"`
	Course    string     `json:"course" validate:"required,notblank"`
	TeacherID string     `json:"teacher_id" validate:"required"`
	Capacity  int        `json:"capacity" validate:"min=1"`
	StartsOn  time.Time  `json:"starts_on" validate:"required"`
	EndsOn    *time.Time `json:"ends_on"`
}

func (nb *NewBatch) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Course = core.CleanString(nb.Course)
	if err := validate.Struct(nb); err != nil {
		return err
	}
	if nb.EndsOn != nil && !nb.EndsOn.After(nb.StartsOn) {
		return core.NewValidationError(nil, core.FieldError{Field: "ends_on", Error: "must be after starts_on"})
	}
	return nil
}
