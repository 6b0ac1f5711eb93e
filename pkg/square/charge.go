package square

import (
	"strings"

	sq "github.com/square/square-go-sdk"
)

const defaultCurrency = "USD"

// ChargeRequest is one card charge. The idempotency key is the payment order
// id, so a retried checkout can never charge twice.
type ChargeRequest struct {
	IdempotencyKey string
	AmountMinor    int64
	Currency       string
	SourceID       string
	ReferenceID    string
	Note           string
	BuyerEmail     string
	// LocationID falls back to the client's configured location.
	LocationID string
}

// Receipt is the part of a Square payment the checkout flow keeps.
type Receipt struct {
	PaymentID  string
	Status     string
	ReceiptURL string
}

func (r ChargeRequest) sdkRequest() *sq.CreatePaymentRequest {
	currency := sq.Currency(strings.ToUpper(strings.TrimSpace(r.Currency)))
	if currency == "" {
		currency = defaultCurrency
	}
	req := &sq.CreatePaymentRequest{
		IdempotencyKey:    r.IdempotencyKey,
		SourceID:          r.SourceID,
		LocationID:        optional(r.LocationID),
		ReferenceID:       optional(r.ReferenceID),
		Note:              optional(r.Note),
		BuyerEmailAddress: optional(r.BuyerEmail),
	}
	if r.AmountMinor > 0 {
		amount := r.AmountMinor
		req.AmountMoney = &sq.Money{Amount: &amount, Currency: &currency}
	}
	return req
}

func receiptFrom(p *sq.Payment) Receipt {
	if p == nil {
		return Receipt{}
	}
	return Receipt{
		PaymentID:  deref(p.GetID()),
		Status:     deref(p.GetStatus()),
		ReceiptURL: deref(p.GetReceiptURL()),
	}
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
