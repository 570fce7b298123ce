package credit

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
)

// Entry is a grant of class credits to a Student for one Batch.
// Invariant: 0 <= UsedCredits <= Credits.
type Entry struct {
	ID           string          `json:"id" db:"id"`
	StudentID    string          `json:"student_id" db:"student_id"`
	BatchID      string          `json:"batch_id" db:"batch_id"`
	Credits      int             `json:"credits" db:"credits"`
	UsedCredits  int             `json:"used_credits" db:"used_credits"`
	AmountPaid   decimal.Decimal `json:"amount_paid" db:"amount_paid"`
	PurchaseDate time.Time       `json:"purchase_date" db:"purchase_date"`
	ExpiryDate   *time.Time      `json:"expiry_date" db:"expiry_date"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

func (e Entry) Remaining() int {
	return e.Credits - e.UsedCredits
}

// IsExpired reports whether the entry's expiry date has been reached at `now`.
func (e Entry) IsExpired(now time.Time) bool {
	return e.ExpiryDate != nil && !e.ExpiryDate.After(now)
}

func (e Entry) CanConsume(now time.Time) bool {
	return e.Remaining() > 0 && !e.IsExpired(now)
}

// Consume uses one credit. It returns false and leaves the entry untouched
// when no credit is left or the entry has expired.
func (e *Entry) Consume(now time.Time) bool {
	if !e.CanConsume(now) {
		return false
	}
	e.UsedCredits++
	e.UpdatedAt = now
	return true
}

// Refund gives back one used credit. It returns false when nothing was used.
func (e *Entry) Refund(now time.Time) bool {
	if e.UsedCredits <= 0 {
		return false
	}
	e.UsedCredits--
	e.UpdatedAt = now
	return true
}

// RemainingOf sums the remaining credits of all non-expired entries.
func RemainingOf(entries []Entry, now time.Time) int {
	var total int
	for _, e := range entries {
		if !e.IsExpired(now) {
			total += e.Remaining()
		}
	}
	return total
}

// ConsumptionOrder sorts entries in the order credits get consumed from when
// a Student holds several entries for the same Batch: earliest-expiring first,
// entries without expiry last, then oldest purchase, then oldest creation.
func ConsumptionOrder(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		case !a.PurchaseDate.Equal(b.PurchaseDate):
			return a.PurchaseDate.Before(b.PurchaseDate)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}

// NewGrant contains information needed to grant credits to a Student.
type NewGrant struct {
	StudentID    string          `json:"student_id" validate:"required"`
	BatchID      string          `json:"batch_id" validate:"required"`
	Credits      int             `json:"credits" validate:"min=1"`
	AmountPaid   decimal.Decimal `json:"amount_paid" validate:"gte=0"`
	PurchaseDate time.Time       `json:"purchase_date"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
}

func (ng *NewGrant) Validate(validate *validator.Validate) error {
	ng.StudentID = core.CleanString(ng.StudentID)
	ng.BatchID = core.CleanString(ng.BatchID)
	if ng.PurchaseDate.IsZero() {
		ng.PurchaseDate = core.NowFunc()
	}
	if err := validate.Struct(ng); err != nil {
		return err
	}
	if ng.AmountPaid.IsNegative() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount_paid", Error: "amount_paid must be 0 or greater"})
	}
	if ng.ExpiryDate != nil && !ng.ExpiryDate.After(ng.PurchaseDate) {
		return core.NewValidationError(nil, core.FieldError{Field: "expiry_date", Error: "must be after purchase_date"})
	}
	return nil
}

// QueryFilter narrows ListEntries; empty fields are ignored.
// StudentIDs and TeacherID carry an authorization scope and are never bound from the request.
type QueryFilter struct {
	StudentID string `query:"student"`
	BatchID   string `query:"batch"`

	StudentIDs []string `query:"-"`
	TeacherID  string   `query:"-"` // batches taught by
}
