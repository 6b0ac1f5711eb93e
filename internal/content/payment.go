package content

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigflow-dispatch/internal/events"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
)

// PaymentResult is the fixed-shape checkout outcome returned to callers in
// every channel mode.
type PaymentResult struct {
	Status        enums.PaymentResultStatus `json:"status"`
	OrderID       string                    `json:"orderId"`
	PaymentID     *string                   `json:"payment_id"`
	Signature     *string                   `json:"signature"`
	Reference     *string                   `json:"reference"`
	CorrelationID string                    `json:"correlationId"`
	Amount        decimal.Decimal           `json:"amount"`
	Currency      string                    `json:"currency"`
	Milestone     *string                   `json:"milestone"`
	IsMock        bool                      `json:"isMock"`
	ErrorMessage  *string                   `json:"errorMessage,omitempty"`
}

// MarshalJSON renders the amount as a plain number with two decimal places.
func (r PaymentResult) MarshalJSON() ([]byte, error) {
	type alias PaymentResult
	return json.Marshal(struct {
		alias
		Amount json.Number `json:"amount"`
	}{
		alias:  alias(r),
		Amount: json.Number(r.Amount.StringFixed(2)),
	})
}

// MajorUnits converts minor currency units into a two-place decimal amount.
func MajorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2).Round(2)
}

// NormalizePayment maps a PaymentResolved payload onto PaymentResult,
// whichever gateway fields were present.
func NormalizePayment(fields events.PaymentFields) PaymentResult {
	result := PaymentResult{
		Status:        fields.Result.ResultStatus(),
		OrderID:       fields.OrderID,
		PaymentID:     fields.PaymentID,
		Signature:     fields.Signature,
		CorrelationID: fields.JobID,
		Amount:        MajorUnits(fields.AmountMinor),
		Currency:      fields.Currency,
		Milestone:     fields.Milestone,
		IsMock:        fields.IsMock,
	}
	if result.Currency == "" {
		result.Currency = "USD"
	}

	switch result.Status {
	case enums.PaymentResultSuccess:
		result.Reference = fields.PaymentID
	case enums.PaymentResultCancelled:
		msg := "payment was cancelled before completion"
		result.ErrorMessage = &msg
	default:
		msg := "payment failed"
		if fields.ErrorReason != nil {
			msg = *fields.ErrorReason
		} else if fields.ErrorCode != nil {
			msg = "payment failed: " + *fields.ErrorCode
		}
		result.ErrorMessage = &msg
	}
	return result
}
