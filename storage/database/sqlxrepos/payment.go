package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/payment"
	"github.com/trezcool/conservatoire/core/roster"
	"github.com/trezcool/conservatoire/storage/database"
)

const (
	paymentColumns     = `id, student_id, amount, status, payment_date, payment_method, description, created_at, updated_at`
	transactionColumns = `id, payment_id, merchant_transaction_id, status, gateway_response, completed_at, created_at, updated_at`
)

var paymentOrderFields = map[string]bool{"created_at": true, "amount": true, "payment_date": true}

type paymentRow struct {
	ID            string          `db:"id"`
	StudentID     string          `db:"student_id"`
	Amount        decimal.Decimal `db:"amount"`
	Status        string          `db:"status"`
	PaymentDate   null.Time       `db:"payment_date"`
	PaymentMethod null.String     `db:"payment_method"`
	Description   null.String     `db:"description"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}

func toPaymentRow(p payment.Payment) paymentRow {
	return paymentRow{
		ID:            p.ID,
		StudentID:     p.StudentID,
		Amount:        p.Amount,
		Status:        p.Status,
		PaymentDate:   nullTime(p.PaymentDate),
		PaymentMethod: nullString(p.PaymentMethod),
		Description:   nullString(p.Description),
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func (r paymentRow) payment() payment.Payment {
	return payment.Payment{
		ID:            r.ID,
		StudentID:     r.StudentID,
		Amount:        r.Amount,
		Status:        r.Status,
		PaymentDate:   timePtr(r.PaymentDate),
		PaymentMethod: r.PaymentMethod.String,
		Description:   r.Description.String,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
}

type transactionRow struct {
	ID                    string    `db:"id"`
	PaymentID             string    `db:"payment_id"`
	MerchantTransactionID string    `db:"merchant_transaction_id"`
	Status                string    `db:"status"`
	GatewayResponse       null.JSON `db:"gateway_response"`
	CompletedAt           null.Time `db:"completed_at"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

func toTransactionRow(tx payment.Transaction) transactionRow {
	return transactionRow{
		ID:                    tx.ID,
		PaymentID:             tx.PaymentID,
		MerchantTransactionID: tx.MerchantTransactionID,
		Status:                tx.Status,
		GatewayResponse:       null.NewJSON(tx.GatewayResponse, len(tx.GatewayResponse) > 0),
		CompletedAt:           nullTime(tx.CompletedAt),
		CreatedAt:             tx.CreatedAt,
		UpdatedAt:             tx.UpdatedAt,
	}
}

func (r transactionRow) transaction() payment.Transaction {
	tx := payment.Transaction{
		ID:                    r.ID,
		PaymentID:             r.PaymentID,
		MerchantTransactionID: r.MerchantTransactionID,
		Status:                r.Status,
		CompletedAt:           timePtr(r.CompletedAt),
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
	if r.GatewayResponse.Valid {
		tx.GatewayResponse = json.RawMessage(r.GatewayResponse.JSON)
	}
	return tx
}

type paymentRepository struct {
	db core.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db core.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	q := `INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :student_id, :amount, :status, :payment_date, :payment_method, :description, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, toPaymentRow(p)); err != nil {
		return payment.Payment{}, trapFKErr(err, "inserting payment",
			fkRef{"payments_student_id_fkey", p.StudentID, roster.ErrStudentNotFound})
	}
	return p, nil
}

func (repo *paymentRepository) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	var row paymentRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id); err != nil {
		return payment.Payment{}, trapNoRowsErr(err, payment.ErrPaymentNotFound, "selecting payment")
	}
	return row.payment(), nil
}

func (repo *paymentRepository) QueryPayments(
	ctx context.Context,
	filter payment.QueryFilter,
	order ...core.DBOrdering,
) ([]payment.Payment, error) {
	if !validIDs(filter.StudentID) {
		return make([]payment.Payment, 0), nil
	}

	var w where
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.Status != "" {
		w.add("status = ?", filter.Status)
	}
	q := `SELECT ` + paymentColumns + ` FROM payments` + w.String()

	orderBy := make([]string, 0, len(order))
	for _, ord := range order {
		if paymentOrderFields[ord.Field] {
			orderBy = append(orderBy, ord.String())
		}
	}
	if len(orderBy) > 0 {
		q += ` ORDER BY ` + strings.Join(orderBy, ", ")
	}

	rows := make([]paymentRow, 0)
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, r := range rows {
		payments = append(payments, r.payment())
	}
	return payments, nil
}

func (repo *paymentRepository) SumPending(ctx context.Context, studentID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	q := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE student_id = $1 AND status = $2`
	if err := repo.db.GetContext(ctx, &sum, q, studentID, payment.StatusPending); err != nil {
		return decimal.Zero, errors.Wrap(err, "summing pending payments")
	}
	return sum, nil
}

func (repo *paymentRepository) CreateTransaction(ctx context.Context, tx payment.Transaction) (payment.Transaction, error) {
	q := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (:id, :payment_id, :merchant_transaction_id, :status, :gateway_response, :completed_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.db, q, toTransactionRow(tx)); err != nil {
		if database.IsUniqueViolation(err, "transactions_merchant_transaction_id_key") {
			return payment.Transaction{}, payment.ErrMerchantIDTaken
		}
		return payment.Transaction{}, trapFKErr(err, "inserting transaction",
			fkRef{"transactions_payment_id_fkey", tx.PaymentID, payment.ErrPaymentNotFound})
	}
	return tx, nil
}

func (repo *paymentRepository) GetTransactionByMerchantID(ctx context.Context, merchantID string) (payment.Transaction, error) {
	var row transactionRow
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE merchant_transaction_id = $1`
	if err := repo.db.GetContext(ctx, &row, q, merchantID); err != nil {
		return payment.Transaction{}, trapNoRowsErr(err, payment.ErrTransactionNotFound, "selecting transaction")
	}
	return row.transaction(), nil
}

func (repo *paymentRepository) QueryPaymentTransactions(ctx context.Context, paymentID string) ([]payment.Transaction, error) {
	rows := make([]transactionRow, 0)
	q := `SELECT ` + transactionColumns + ` FROM transactions WHERE payment_id = $1 ORDER BY created_at`
	if err := repo.db.SelectContext(ctx, &rows, q, paymentID); err != nil {
		return nil, errors.Wrap(err, "selecting transactions")
	}
	txs := make([]payment.Transaction, 0, len(rows))
	for _, r := range rows {
		txs = append(txs, r.transaction())
	}
	return txs, nil
}

func (repo *paymentRepository) ReconcileLocked(
	ctx context.Context,
	merchantID string,
	fn payment.ReconcileFunc,
) (payment.Transaction, error) {
	var tx payment.Transaction
	err := database.WithTx(ctx, repo.db, func(dbtx core.DBTransactor) error {
		var txRow transactionRow
		q := `SELECT ` + transactionColumns + ` FROM transactions WHERE merchant_transaction_id = $1 FOR UPDATE`
		if err := dbtx.GetContext(ctx, &txRow, q, merchantID); err != nil {
			return trapNoRowsErr(err, payment.ErrTransactionNotFound, "locking transaction")
		}
		var pRow paymentRow
		q = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 FOR UPDATE`
		if err := dbtx.GetContext(ctx, &pRow, q, txRow.PaymentID); err != nil {
			return trapNoRowsErr(err, payment.ErrPaymentNotFound, "locking payment")
		}

		tx = txRow.transaction()
		p := pRow.payment()
		txChanged, pChanged, err := fn(&tx, &p)
		if err != nil {
			return err
		}
		if txChanged {
			q = `UPDATE transactions SET status = :status, gateway_response = :gateway_response,
				completed_at = :completed_at, updated_at = :updated_at WHERE id = :id`
			if _, err = sqlx.NamedExecContext(ctx, dbtx, q, toTransactionRow(tx)); err != nil {
				return errors.Wrap(err, "updating transaction")
			}
		}
		if pChanged {
			q = `UPDATE payments SET status = :status, payment_date = :payment_date,
				payment_method = :payment_method, updated_at = :updated_at WHERE id = :id`
			if _, err = sqlx.NamedExecContext(ctx, dbtx, q, toPaymentRow(p)); err != nil {
				return errors.Wrap(err, "updating payment")
			}
		}
		return nil
	})
	if err != nil {
		return payment.Transaction{}, err
	}
	return tx, nil
}
