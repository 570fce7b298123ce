package payment

import (
	"context"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
)

var (
	// errors
	ErrPaymentNotFound     = core.NewNotFoundError("payment not found")
	ErrTransactionNotFound = core.NewNotFoundError("transaction not found")
	ErrMerchantIDTaken     = core.NewConflictError("merchant transaction id is already used by another transaction")
	ErrInvalidTransition   = core.NewInvalidStateError("invalid transaction status transition")
	ErrPaymentNotPending   = core.NewInvalidStateError("payment is no longer pending")
)

type (
	// ReconcileFunc receives the locked Transaction and its Payment.
	// It mutates them in place and reports which of them must be persisted.
	ReconcileFunc func(tx *Transaction, p *Payment) (txChanged, paymentChanged bool, err error)

	Repository interface {
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPayment(ctx context.Context, id string) (Payment, error)
		QueryPayments(ctx context.Context, filter QueryFilter, order ...core.DBOrdering) ([]Payment, error)
		// SumPending adds up the amounts of a Student's pending payments.
		SumPending(ctx context.Context, studentID string) (decimal.Decimal, error)
		// CreateTransaction fails with ErrMerchantIDTaken when the merchant id is already stored.
		CreateTransaction(ctx context.Context, tx Transaction) (Transaction, error)
		GetTransactionByMerchantID(ctx context.Context, merchantID string) (Transaction, error)
		QueryPaymentTransactions(ctx context.Context, paymentID string) ([]Transaction, error)
		// ReconcileLocked locks the transaction matching merchantID and its payment, runs fn and
		// writes whatever fn changed, all as one atomic unit.
		ReconcileLocked(ctx context.Context, merchantID string, fn ReconcileFunc) (Transaction, error)
	}

	Service struct {
		repo          Repository
		log           core.Logger
		defaultMethod string
		validate      *validator.Validate
		translator    ut.Translator
	}
)

func NewService(
	repo Repository,
	logger core.Logger,
	defaultMethod string,
	validate *validator.Validate,
	translator ut.Translator,
) *Service {
	return &Service{
		repo:          repo,
		log:           logger,
		defaultMethod: defaultMethod,
		validate:      validate,
		translator:    translator,
	}
}

func (svc *Service) CreatePayment(ctx context.Context, np NewPayment) (Payment, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Payment{}, core.TranslateValidationErrors(err, svc.translator)
	}
	now := core.NowFunc()
	p, err := svc.repo.CreatePayment(ctx, Payment{
		ID:          core.NewID(),
		StudentID:   np.StudentID,
		Amount:      np.Amount,
		Status:      StatusPending,
		Description: np.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Payment{}, errors.Wrap(err, "creating payment")
	}
	return p, nil
}

func (svc *Service) GetPayment(ctx context.Context, id string) (Payment, error) {
	return svc.repo.GetPayment(ctx, id)
}

// ListPayments returns payments matching filter, newest first unless an ordering is given.
func (svc *Service) ListPayments(ctx context.Context, filter QueryFilter, order ...core.DBOrdering) ([]Payment, error) {
	if len(order) == 0 {
		order = []core.DBOrdering{{Field: "created_at"}}
	}
	return svc.repo.QueryPayments(ctx, filter, order...)
}

func (svc *Service) Transactions(ctx context.Context, paymentID string) ([]Transaction, error) {
	return svc.repo.QueryPaymentTransactions(ctx, paymentID)
}

// Outstanding sums the amounts of the Student's pending payments.
func (svc *Service) Outstanding(ctx context.Context, studentID string) (decimal.Decimal, error) {
	sum, err := svc.repo.SumPending(ctx, studentID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "summing pending payments")
	}
	return sum, nil
}

// OpenTransaction registers a gateway attempt for a pending Payment.
func (svc *Service) OpenTransaction(ctx context.Context, paymentID, merchantID string) (Transaction, error) {
	merchantID = core.CleanString(merchantID)
	if merchantID == "" {
		return Transaction{}, core.NewValidationError(nil, core.FieldError{
			Field: "merchant_transaction_id",
			Error: "this field is required",
		})
	}
	p, err := svc.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return Transaction{}, err
	}
	if !p.IsPending() {
		return Transaction{}, ErrPaymentNotPending
	}
	now := core.NowFunc()
	return svc.repo.CreateTransaction(ctx, Transaction{
		ID:                    core.NewID(),
		PaymentID:             p.ID,
		MerchantTransactionID: merchantID,
		Status:                TxPending,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
}

// ApplyGatewayUpdate reconciles a Transaction, and on completion its Payment, with a gateway report.
// The returned bool is false when the report repeated the stored status and nothing was written.
func (svc *Service) ApplyGatewayUpdate(ctx context.Context, upd GatewayUpdate) (Transaction, bool, error) {
	if err := upd.Validate(svc.validate); err != nil {
		return Transaction{}, false, core.TranslateValidationErrors(err, svc.translator)
	}

	var applied bool
	tx, err := svc.repo.ReconcileLocked(ctx, upd.MerchantTransactionID, func(tx *Transaction, p *Payment) (bool, bool, error) {
		if upd.TransactionID != "" && upd.TransactionID != tx.ID {
			return false, false, ErrMerchantIDTaken
		}
		if tx.Status == upd.Status {
			svc.log.Debug("gateway update redelivered", map[string]interface{}{
				"merchant_transaction_id": tx.MerchantTransactionID,
				"status":                  tx.Status,
			})
			return false, false, nil
		}
		if !CanTransition(tx.Status, upd.Status) {
			return false, false, ErrInvalidTransition
		}

		now := core.NowFunc()
		from := tx.Status
		tx.Status = upd.Status
		tx.UpdatedAt = now
		if len(upd.GatewayResponse) > 0 {
			tx.GatewayResponse = upd.GatewayResponse
		}
		applied = true

		switch upd.Status {
		case TxCompleted:
			completedAt := now
			if upd.CompletedAt != nil {
				completedAt = upd.CompletedAt.UTC()
			}
			tx.CompletedAt = &completedAt

			if !p.IsPending() {
				svc.log.Warn("payment already settled; leaving it untouched", map[string]interface{}{
					"payment_id":              p.ID,
					"payment_status":          p.Status,
					"merchant_transaction_id": tx.MerchantTransactionID,
				})
				return true, false, nil
			}
			method := upd.PaymentMode
			if method == "" {
				method = svc.defaultMethod
			}
			p.Status = StatusCompleted
			p.PaymentDate = &completedAt
			p.PaymentMethod = method
			p.UpdatedAt = now
			return true, true, nil

		case TxFailed:
			svc.log.Warn("gateway transaction failed", map[string]interface{}{
				"merchant_transaction_id": tx.MerchantTransactionID,
				"payment_id":              p.ID,
				"from":                    from,
			})

		case TxRefunded:
			svc.log.Info("gateway transaction refunded; payment left untouched", map[string]interface{}{
				"merchant_transaction_id": tx.MerchantTransactionID,
				"payment_id":              p.ID,
			})
		}
		return true, false, nil
	})
	if err != nil {
		return Transaction{}, false, errors.Wrap(err, "applying gateway update")
	}
	return tx, applied, nil
}
