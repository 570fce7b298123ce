package fee

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
)

// Entry is a fee that applies to a Batch over [EffectiveFrom, EffectiveTo).
// A nil EffectiveTo means open-ended.
type Entry struct {
	ID            string          `json:"id" db:"id"`
	BatchID       string          `json:"batch_id" db:"batch_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	EffectiveFrom time.Time       `json:"effective_from" db:"effective_from"`
	EffectiveTo   *time.Time      `json:"effective_to" db:"effective_to"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

func (e Entry) IsCurrent(asOf time.Time) bool {
	return !e.EffectiveFrom.After(asOf) && !e.IsExpired(asOf)
}

func (e Entry) IsFuture(asOf time.Time) bool {
	return e.EffectiveFrom.After(asOf)
}

func (e Entry) IsExpired(asOf time.Time) bool {
	return e.EffectiveTo != nil && !e.EffectiveTo.After(asOf)
}

// Resolve picks the entry in force at asOf.
// Overlapping ranges are resolved in favour of the latest EffectiveFrom, then the most recently created entry.
func Resolve(entries []Entry, asOf time.Time) (Entry, bool) {
	var (
		best  Entry
		found bool
	)
	for _, e := range entries {
		if !e.IsCurrent(asOf) {
			continue
		}
		if !found || supersedes(e, best) {
			best, found = e, true
		}
	}
	return best, found
}

func supersedes(a, b Entry) bool {
	if !a.EffectiveFrom.Equal(b.EffectiveFrom) {
		return a.EffectiveFrom.After(b.EffectiveFrom)
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// SortSchedule orders entries by EffectiveFrom, then CreatedAt.
func SortSchedule(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return supersedes(entries[j], entries[i])
	})
}

// NewEntry contains information needed to add a fee to a Batch's schedule.
type NewEntry struct {
	BatchID       string          `json:"batch_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	EffectiveFrom time.Time       `json:"effective_from" validate:"required"`
	EffectiveTo   *time.Time      `json:"effective_to"`
}

func (ne *NewEntry) Validate(validate *validator.Validate) error {
	ne.BatchID = core.CleanString(ne.BatchID)
	ne.EffectiveFrom = core.Date(ne.EffectiveFrom)
	if ne.EffectiveTo != nil {
		to := core.Date(*ne.EffectiveTo)
		ne.EffectiveTo = &to
	}
	return validate.Struct(ne)
}
