package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Prefill seeds the payer fields of the payment widget.
type Prefill struct {
	Name  string
	Email string
}

// ConfirmRequest is what the widget is opened with.
type ConfirmRequest struct {
	OrderID     string
	JobID       string
	Milestone   string
	AmountMinor int64
	Currency    string
	Prefill     Prefill
	Theme       string
}

// PaymentChannel opens a confirmation for one order. Implementations are
// chosen once at startup.
type PaymentChannel interface {
	Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error)
	Mode() string
}

// CallbackReceiver is implemented by channels whose outcome arrives through
// widget callbacks.
type CallbackReceiver interface {
	Callback(ctx context.Context, orderID string, cb WidgetCallback) error
}

// Widget callback events.
const (
	CallbackSuccess = "success"
	CallbackFailure = "failure"
	CallbackDismiss = "dismiss"
)

// WidgetCallback is the payload the payment widget posts back.
type WidgetCallback struct {
	Event            string `json:"event" validate:"required,oneof=success failure dismiss"`
	SourceID         string `json:"sourceId" validate:"required_if=Event success"`
	BuyerEmail       string `json:"buyerEmail" validate:"omitempty,email"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
}

// signer produces the order/payment signature handed back to callers.
type signer struct {
	secret []byte
}

func newSigner(secret string) signer {
	return signer{secret: []byte(secret)}
}

func (s signer) sign(orderID, paymentID string) string {
	if len(s.secret) == 0 {
		return ""
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced for orderID and paymentID.
func (s signer) Verify(orderID, paymentID, signature string) bool {
	expected := s.sign(orderID, paymentID)
	if expected == "" {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}
