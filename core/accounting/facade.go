package accounting

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type (
	CreditReader interface {
		Remaining(ctx context.Context, studentID, batchID string) (int, error)
	}

	PaymentReader interface {
		Outstanding(ctx context.Context, studentID string) (decimal.Decimal, error)
	}

	BatchLister interface {
		StudentBatchIDs(ctx context.Context, studentID string) ([]string, error)
	}

	// Facade answers accounting questions about a Student without mutating anything.
	Facade struct {
		credits  CreditReader
		payments PaymentReader
		batches  BatchLister
	}

	BatchCredits struct {
		BatchID   string `json:"batch_id"`
		Remaining int    `json:"remaining"`
	}

	Statement struct {
		StudentID   string          `json:"student_id"`
		Credits     []BatchCredits  `json:"credits"`
		Outstanding decimal.Decimal `json:"outstanding"`
	}
)

func NewFacade(credits CreditReader, payments PaymentReader, batches BatchLister) *Facade {
	return &Facade{credits: credits, payments: payments, batches: batches}
}

// CanAttend reports whether the Student holds at least one usable credit for the Batch.
func (f *Facade) CanAttend(ctx context.Context, studentID, batchID string) (bool, error) {
	remaining, err := f.credits.Remaining(ctx, studentID, batchID)
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// OutstandingBalance is the sum of the Student's pending payments.
func (f *Facade) OutstandingBalance(ctx context.Context, studentID string) (decimal.Decimal, error) {
	return f.payments.Outstanding(ctx, studentID)
}

func (f *Facade) Statement(ctx context.Context, studentID string) (Statement, error) {
	batchIDs, err := f.batches.StudentBatchIDs(ctx, studentID)
	if err != nil {
		return Statement{}, errors.Wrap(err, "listing student batches")
	}
	st := Statement{StudentID: studentID, Credits: make([]BatchCredits, 0, len(batchIDs))}
	for _, batchID := range batchIDs {
		remaining, err := f.credits.Remaining(ctx, studentID, batchID)
		if err != nil {
			return Statement{}, err
		}
		st.Credits = append(st.Credits, BatchCredits{BatchID: batchID, Remaining: remaining})
	}
	if st.Outstanding, err = f.payments.Outstanding(ctx, studentID); err != nil {
		return Statement{}, err
	}
	return st, nil
}
