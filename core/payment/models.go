package payment

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/trezcool/conservatoire/core"
)

// Payment statuses
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Transaction statuses
const (
	TxPending   = "PENDING"
	TxCompleted = "COMPLETED"
	TxFailed    = "FAILED"
	TxRefunded  = "REFUNDED"
)

var (
	TxStatuses = []string{TxPending, TxCompleted, TxFailed, TxRefunded}

	// forward-only; REFUNDED is reachable from COMPLETED alone
	txTransitions = map[string][]string{
		TxPending:   {TxCompleted, TxFailed},
		TxCompleted: {TxRefunded},
	}
)

// CanTransition reports whether a Transaction may move from `from` to `to`.
func CanTransition(from, to string) bool {
	for _, st := range txTransitions[from] {
		if st == to {
			return true
		}
	}
	return false
}

func IsTxStatus(status string) bool {
	for _, st := range TxStatuses {
		if st == status {
			return true
		}
	}
	return false
}

// Payment is an amount a Student owes, settled through one or more Transaction attempts.
type Payment struct {
	ID            string          `json:"id" db:"id"`
	StudentID     string          `json:"student_id" db:"student_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	Status        string          `json:"status" db:"status"`
	PaymentDate   *time.Time      `json:"payment_date" db:"payment_date"`
	PaymentMethod string          `json:"payment_method" db:"payment_method"`
	Description   string          `json:"description" db:"description"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

func (p Payment) IsPending() bool { return p.Status == StatusPending }

// Transaction is a gateway attempt at settling a Payment.
type Transaction struct {
	ID                    string          `json:"id" db:"id"`
	PaymentID             string          `json:"payment_id" db:"payment_id"`
	MerchantTransactionID string          `json:"merchant_transaction_id" db:"merchant_transaction_id"`
	Status                string          `json:"status" db:"status"`
	GatewayResponse       json.RawMessage `json:"gateway_response,omitempty" db:"gateway_response"`
	CompletedAt           *time.Time      `json:"completed_at" db:"completed_at"`
	CreatedAt             time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" db:"updated_at"`
}

// GatewayUpdate is a status report delivered by the payment gateway, possibly more than once.
// TransactionID is optional; when set it must name the row holding MerchantTransactionID.
type GatewayUpdate struct {
	TransactionID         string          `json:"transaction_id"`
	MerchantTransactionID string          `json:"merchant_transaction_id" validate:"required"`
	Status                string          `json:"status" validate:"required,oneof=PENDING COMPLETED FAILED REFUNDED"`
	GatewayResponse       json.RawMessage `json:"gateway_response"`
	PaymentMode           string          `json:"payment_mode"`
	CompletedAt           *time.Time      `json:"completed_at"`
}

func (gu *GatewayUpdate) Validate(validate *validator.Validate) error {
	gu.TransactionID = core.CleanString(gu.TransactionID)
	gu.MerchantTransactionID = core.CleanString(gu.MerchantTransactionID)
	gu.Status = core.CleanString(gu.Status)
	gu.PaymentMode = core.CleanString(gu.PaymentMode, true /* lower */)
	return validate.Struct(gu)
}

// NewPayment contains information needed to bill a Student.
type NewPayment struct {
	StudentID   string          `json:"student_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description string          `json:"description" validate:"max=255"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.StudentID = core.CleanString(np.StudentID)
	np.Description = core.CleanString(np.Description)
	if err := validate.Struct(np); err != nil {
		return err
	}
	if !np.Amount.IsPositive() {
		return core.NewValidationError(nil, core.FieldError{Field: "amount", Error: "amount must be greater than 0"})
	}
	return nil
}

// QueryFilter narrows ListPayments; empty fields are ignored.
type QueryFilter struct {
	StudentID string `query:"student"`
	Status    string `query:"status"`
}
