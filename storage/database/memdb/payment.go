package memdb

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/payment"
	"github.com/trezcool/conservatoire/core/roster"
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[p.StudentID]; !ok {
		return payment.Payment{}, roster.ErrStudentNotFound
	}
	repo.db.payments[p.ID] = &p
	return p, nil
}

func (repo *paymentRepository) GetPayment(_ context.Context, id string) (payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.payments[id]; ok {
		return *p, nil
	}
	return payment.Payment{}, payment.ErrPaymentNotFound
}

func (repo *paymentRepository) QueryPayments(
	_ context.Context,
	filter payment.QueryFilter,
	order ...core.DBOrdering,
) ([]payment.Payment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	payments := make([]payment.Payment, 0)
	for _, p := range repo.db.payments {
		if filter.StudentID != "" && p.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		payments = append(payments, *p)
	}
	sort.SliceStable(payments, func(i, j int) bool {
		for _, ord := range order {
			a, b := payments[i], payments[j]
			if !ord.Ascending {
				a, b = b, a
			}
			switch ord.Field {
			case "created_at":
				if !a.CreatedAt.Equal(b.CreatedAt) {
					return a.CreatedAt.Before(b.CreatedAt)
				}
			case "amount":
				if !a.Amount.Equal(b.Amount) {
					return a.Amount.LessThan(b.Amount)
				}
			}
		}
		return false
	})
	return payments, nil
}

func (repo *paymentRepository) SumPending(_ context.Context, studentID string) (decimal.Decimal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sum := decimal.Zero
	for _, p := range repo.db.payments {
		if p.StudentID == studentID && p.IsPending() {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (repo *paymentRepository) CreateTransaction(_ context.Context, tx payment.Transaction) (payment.Transaction, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.payments[tx.PaymentID]; !ok {
		return payment.Transaction{}, payment.ErrPaymentNotFound
	}
	if _, taken := repo.db.merchantIdx[tx.MerchantTransactionID]; taken {
		return payment.Transaction{}, payment.ErrMerchantIDTaken
	}
	repo.db.transactions[tx.ID] = &tx
	repo.db.merchantIdx[tx.MerchantTransactionID] = tx.ID
	return tx, nil
}

func (repo *paymentRepository) GetTransactionByMerchantID(_ context.Context, merchantID string) (payment.Transaction, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if id, ok := repo.db.merchantIdx[merchantID]; ok {
		return *repo.db.transactions[id], nil
	}
	return payment.Transaction{}, payment.ErrTransactionNotFound
}

func (repo *paymentRepository) QueryPaymentTransactions(_ context.Context, paymentID string) ([]payment.Transaction, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	txs := make([]payment.Transaction, 0)
	for _, tx := range repo.db.transactions {
		if tx.PaymentID == paymentID {
			txs = append(txs, *tx)
		}
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].CreatedAt.Before(txs[j].CreatedAt) })
	return txs, nil
}

func (repo *paymentRepository) ReconcileLocked(
	_ context.Context,
	merchantID string,
	fn payment.ReconcileFunc,
) (payment.Transaction, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	id, ok := repo.db.merchantIdx[merchantID]
	if !ok {
		return payment.Transaction{}, payment.ErrTransactionNotFound
	}
	storedTx := repo.db.transactions[id]
	storedP, ok := repo.db.payments[storedTx.PaymentID]
	if !ok {
		return payment.Transaction{}, payment.ErrPaymentNotFound
	}

	tx, p := *storedTx, *storedP
	txChanged, pChanged, err := fn(&tx, &p)
	if err != nil {
		return payment.Transaction{}, err
	}
	// both writes land together or not at all
	if txChanged {
		*storedTx = tx
	}
	if pChanged {
		*storedP = p
	}
	return *storedTx, nil
}
