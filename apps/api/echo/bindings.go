package echoapi

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/credit"
	"github.com/trezcool/conservatoire/core/payment"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindDate reads an optional `YYYY-MM-DD` query param; a missing param yields the zero time.
func bindDate(ctx echo.Context, param string) (time.Time, error) {
	val := core.CleanString(ctx.QueryParam(param))
	if val == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return time.Time{}, core.NewValidationError(nil, core.FieldError{Field: param, Error: "expected a YYYY-MM-DD date"})
	}
	return t, nil
}

// requireQuery reads a mandatory query param.
func requireQuery(ctx echo.Context, param string) (string, error) {
	val := core.CleanString(ctx.QueryParam(param))
	if val == "" {
		return "", core.NewValidationError(nil, core.FieldError{Field: param, Error: "this field is required"})
	}
	return val, nil
}

type (
	LoginResponse struct {
		Token string `json:"token"`
	}

	StatusRequest struct {
		Status string `json:"status"`
	}

	MarkRequest struct {
		StudentID string `json:"student_id"`
		Status    string `json:"status"`
		Notes     string `json:"notes"`
	}

	TransactionRequest struct {
		MerchantTransactionID string `json:"merchant_transaction_id"`
	}

	AssignRequest struct {
		Target string `json:"target"` // kind:id
	}

	ConsumeResponse struct {
		Consumed bool   `json:"consumed"`
		EntryID  string `json:"entry_id,omitempty"`
	}

	RefundResponse struct {
		Refunded bool `json:"refunded"`
	}

	CreditsResponse struct {
		Remaining int            `json:"remaining"`
		Entries   []credit.Entry `json:"entries"`
	}

	RateResponse struct {
		Percentage string `json:"percentage"`
	}

	FeeResponse struct {
		BatchID string `json:"batch_id"`
		AsOf    string `json:"as_of"`
		Amount  string `json:"amount,omitempty"`
		Found   bool   `json:"found"`
	}

	CanAttendResponse struct {
		CanAttend bool `json:"can_attend"`
	}

	BalanceResponse struct {
		StudentID   string `json:"student_id"`
		Outstanding string `json:"outstanding"`
	}

	GatewayUpdateResponse struct {
		Status      string               `json:"status"` // applied | unchanged | ignored
		Reason      string               `json:"reason,omitempty"`
		Transaction *payment.Transaction `json:"transaction,omitempty"`
	}
)
