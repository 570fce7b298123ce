// Package midtranssvc turns Midtrans HTTP notifications into payment.GatewayUpdate values.
package midtranssvc

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/pkg/errors"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/payment"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	// errors
	ErrInvalidSignature = errors.New("invalid notification signature")
	ErrUnknownStatus    = errors.New("unknown transaction status")

	// Midtrans reports local times in Western Indonesia Time
	jakarta = time.FixedZone("WIB", 7*60*60)
)

// Notification is the payload Midtrans posts to the notification URL.
type Notification = coreapi.TransactionStatusResponse

type Gateway struct {
	serverKey string
}

func New(conf *core.Config) *Gateway {
	return &Gateway{serverKey: conf.Midtrans.ServerKey}
}

// Signature computes SHA512(order_id + status_code + gross_amount + server_key), hex encoded.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func (gw Gateway) VerifySignature(n Notification) error {
	want := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	got := Signature(n.OrderID, n.StatusCode, n.GrossAmount, gw.serverKey)
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// Parse decodes and authenticates a raw notification body.
func (gw Gateway) Parse(body []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return Notification{}, errors.Wrap(err, "decoding midtrans notification")
	}
	if err := gw.VerifySignature(n); err != nil {
		return Notification{}, err
	}
	return n, nil
}

// TxStatus maps a Midtrans transaction and fraud status pair onto a Transaction status.
func TxStatus(transactionStatus, fraudStatus string) (string, error) {
	switch strings.ToLower(transactionStatus) {
	case "settlement":
		return payment.TxCompleted, nil
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "accept", "":
			return payment.TxCompleted, nil
		case "challenge":
			return payment.TxPending, nil
		}
		return payment.TxFailed, nil
	case "pending":
		return payment.TxPending, nil
	case "deny", "cancel", "expire", "failure":
		return payment.TxFailed, nil
	case "refund", "partial_refund":
		return payment.TxRefunded, nil
	}
	return "", errors.Wrapf(ErrUnknownStatus, "%q", transactionStatus)
}

// ToGatewayUpdate converts an authenticated notification. raw is kept as the gateway response.
func ToGatewayUpdate(n Notification, raw []byte) (payment.GatewayUpdate, error) {
	status, err := TxStatus(n.TransactionStatus, n.FraudStatus)
	if err != nil {
		return payment.GatewayUpdate{}, err
	}
	gu := payment.GatewayUpdate{
		MerchantTransactionID: n.OrderID,
		Status:                status,
		GatewayResponse:       json.RawMessage(raw),
		PaymentMode:           n.PaymentType,
	}
	if status == payment.TxCompleted {
		settled := n.SettlementTime
		if settled == "" {
			settled = n.TransactionTime
		}
		if settled != "" {
			t, err := time.ParseInLocation(timeLayout, settled, jakarta)
			if err != nil {
				return payment.GatewayUpdate{}, errors.Wrap(err, "parsing settlement time")
			}
			t = t.UTC()
			gu.CompletedAt = &t
		}
	}
	return gu, nil
}
