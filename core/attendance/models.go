package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
)

// Session statuses
const (
	SessionScheduled   = "scheduled"
	SessionCompleted   = "completed"
	SessionCancelled   = "cancelled"
	SessionRescheduled = "rescheduled"
)

// Attendance statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

var (
	SessionStatuses = []string{SessionScheduled, SessionCompleted, SessionCancelled, SessionRescheduled}
	Statuses        = []string{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

	// allowed session transitions; every other one is rejected
	sessionTransitions = map[string][]string{
		SessionScheduled: {SessionCompleted, SessionCancelled, SessionRescheduled},
	}
)

// Session is one occurrence of a Batch's class.
type Session struct {
	ID        string    `json:"id" db:"id"`
	BatchID   string    `json:"batch_id" db:"batch_id"`
	StartsAt  time.Time `json:"starts_at" db:"starts_at"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (s Session) IsCancelled() bool { return s.Status == SessionCancelled }

// CanTransition reports whether the session may move to status `to`.
func (s Session) CanTransition(to string) bool {
	for _, st := range sessionTransitions[s.Status] {
		if st == to {
			return true
		}
	}
	return false
}

// Record is the attendance outcome of one Student for one Session.
// There is at most one Record per (SessionID, StudentID).
type Record struct {
	ID        string    `json:"id" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	StudentID string    `json:"student_id" db:"student_id"`
	Status    string    `json:"status" db:"status"`
	MarkedBy  string    `json:"marked_by" db:"marked_by"`
	Notes     string    `json:"notes" db:"notes"`
	MarkedAt  time.Time `json:"marked_at" db:"marked_at"`
}

// Counts aggregates attendance records.
type Counts struct {
	Present int `db:"present"`
	Total   int `db:"total"`
}

// Percentage returns present/total*100 rounded to 2 decimals, or 0 when nothing was marked.
func (c Counts) Percentage() decimal.Decimal {
	if c.Total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(c.Present)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(c.Total)), 2)
}

// CountRecords computes Counts over in-memory records.
func CountRecords(records []Record) Counts {
	c := Counts{Total: len(records)}
	for _, r := range records {
		if r.Status == StatusPresent {
			c.Present++
		}
	}
	return c
}

// NewSession contains information needed to schedule a Session.
type NewSession struct {
	BatchID  string    `json:"batch_id" validate:"required"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.BatchID = core.CleanString(ns.BatchID)
	return validate.Struct(ns)
}

// MarkRequest contains information needed to mark a Student's attendance.
type MarkRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	MarkedBy  string `json:"marked_by" validate:"required"`
	Notes     string `json:"notes" validate:"max=1000"`
}

func (mr *MarkRequest) Validate(validate *validator.Validate) error {
	mr.Status = core.CleanString(mr.Status, true /* lower */)
	mr.Notes = core.CleanString(mr.Notes)
	return validate.Struct(mr)
}

// RecordFilter selects the records to aggregate; exactly one field is expected.
type RecordFilter struct {
	SessionID string
	StudentID string
}
