package sqlxrepos

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/payment"
)

const (
	lockTransactionSQL = "FROM transactions WHERE merchant_transaction_id = $1 FOR UPDATE"
	lockPaymentSQL     = "FROM payments WHERE id = $1 FOR UPDATE"
	updateTxSQL        = "UPDATE transactions SET status = $1, gateway_response = $2, completed_at = $3, updated_at = $4 WHERE id = $5"
	updatePaymentSQL   = "UPDATE payments SET status = $1, payment_date = $2, payment_method = $3, updated_at = $4 WHERE id = $5"
)

type reconcileFixture struct {
	tx payment.Transaction
	p  payment.Payment
}

func newReconcileFixture() reconcileFixture {
	at := time.Date(2021, time.February, 1, 9, 0, 0, 0, time.UTC)
	p := payment.Payment{
		ID:        core.NewID(),
		StudentID: core.NewID(),
		Amount:    decimal.NewFromInt(150000),
		Status:    payment.StatusPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
	tx := payment.Transaction{
		ID:                    core.NewID(),
		PaymentID:             p.ID,
		MerchantTransactionID: "ORDER-42",
		Status:                payment.TxPending,
		CreatedAt:             at,
		UpdatedAt:             at,
	}
	return reconcileFixture{tx: tx, p: p}
}

func (fx reconcileFixture) expectLocks(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectQuery(sqlText(lockTransactionSQL)).
		WithArgs(fx.tx.MerchantTransactionID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "payment_id", "merchant_transaction_id", "status", "gateway_response", "completed_at", "created_at", "updated_at",
		}).AddRow(fx.tx.ID, fx.tx.PaymentID, fx.tx.MerchantTransactionID, fx.tx.Status, nil, nil, fx.tx.CreatedAt, fx.tx.UpdatedAt))
	mock.ExpectQuery(sqlText(lockPaymentSQL)).
		WithArgs(fx.p.ID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "student_id", "amount", "status", "payment_date", "payment_method", "description", "created_at", "updated_at",
		}).AddRow(fx.p.ID, fx.p.StudentID, fx.p.Amount.String(), fx.p.Status, nil, nil, nil, fx.p.CreatedAt, fx.p.UpdatedAt))
}

func settle(tx *payment.Transaction, p *payment.Payment) (bool, bool, error) {
	now := time.Date(2021, time.February, 1, 9, 5, 0, 0, time.UTC)
	tx.Status = payment.TxCompleted
	tx.CompletedAt = &now
	tx.UpdatedAt = now
	p.Status = payment.StatusCompleted
	p.PaymentDate = &now
	p.PaymentMethod = "bank_transfer"
	p.UpdatedAt = now
	return true, true, nil
}

func TestPaymentRepository_ReconcileLocked(t *testing.T) {
	db, mock := newMockDB(t)
	fx := newReconcileFixture()

	fx.expectLocks(mock)
	mock.ExpectExec(sqlText(updateTxSQL)).
		WithArgs(payment.TxCompleted, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), fx.tx.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(updatePaymentSQL)).
		WithArgs(payment.StatusCompleted, sqlmock.AnyArg(), "bank_transfer", sqlmock.AnyArg(), fx.p.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := NewPaymentRepository(db).ReconcileLocked(context.Background(), fx.tx.MerchantTransactionID, settle)
	require.NoError(t, err)
	assert.Equal(t, payment.TxCompleted, tx.Status)
	assert.NotNil(t, tx.CompletedAt)
}

func TestPaymentRepository_ReconcileLocked_paymentUpdateFails(t *testing.T) {
	db, mock := newMockDB(t)
	fx := newReconcileFixture()
	boom := errors.New("connection reset")

	fx.expectLocks(mock)
	mock.ExpectExec(sqlText(updateTxSQL)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlText(updatePaymentSQL)).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := NewPaymentRepository(db).ReconcileLocked(context.Background(), fx.tx.MerchantTransactionID, settle)
	assert.Equal(t, boom, errors.Cause(err))
	assert.EqualError(t, err, "updating payment: connection reset")
}

func TestPaymentRepository_ReconcileLocked_nothingChanged(t *testing.T) {
	db, mock := newMockDB(t)
	fx := newReconcileFixture()

	fx.expectLocks(mock)
	mock.ExpectCommit()

	_, err := NewPaymentRepository(db).ReconcileLocked(context.Background(), fx.tx.MerchantTransactionID,
		func(*payment.Transaction, *payment.Payment) (bool, bool, error) { return false, false, nil })
	require.NoError(t, err)
}

func TestPaymentRepository_ReconcileLocked_unknownMerchantID(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(sqlText(lockTransactionSQL)).WithArgs("ORDER-404").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := NewPaymentRepository(db).ReconcileLocked(context.Background(), "ORDER-404", settle)
	assert.Equal(t, payment.ErrTransactionNotFound, err)
}

func TestPaymentRepository_CreateTransaction(t *testing.T) {
	fx := newReconcileFixture()
	tests := []struct {
		name      string
		paymentID string
		dbErr     error
		want      error
	}{
		{
			name:      "merchant id taken",
			paymentID: fx.p.ID,
			dbErr:     &pq.Error{Code: "23505", Constraint: "transactions_merchant_transaction_id_key"},
			want:      payment.ErrMerchantIDTaken,
		},
		{
			name:      "unknown payment",
			paymentID: fx.p.ID,
			dbErr:     &pq.Error{Code: "23503", Constraint: "transactions_payment_id_fkey"},
			want:      payment.ErrPaymentNotFound,
		},
		{name: "malformed payment id", paymentID: "lol", dbErr: errMalformedUUID, want: payment.ErrPaymentNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tx := fx.tx
			tx.PaymentID = tt.paymentID

			mock.ExpectExec(sqlText("INSERT INTO transactions")).WillReturnError(tt.dbErr)

			_, err := NewPaymentRepository(db).CreateTransaction(context.Background(), tx)
			assert.Equal(t, tt.want, err)
		})
	}
}
