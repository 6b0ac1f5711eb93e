package events

import (
	"fmt"
	"time"

	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
)

// GatewayResponse is the raw terminal result reported by a payment channel.
type GatewayResponse struct {
	Result      enums.GatewayResult
	PaymentID   string
	OrderID     string
	Signature   string
	ErrorCode   string
	ErrorReason string
	IsMock      bool
}

// PaymentCorrelation carries the caller-supplied fields that tie a gateway
// result back to a payment order.
type PaymentCorrelation struct {
	OrderID     string
	JobID       string
	Milestone   string
	AmountMinor int64
	Currency    string
}

// PaymentFields is the typed view of a PaymentResolved payload.
type PaymentFields struct {
	OrderID     string              `json:"orderId" validate:"required"`
	JobID       string              `json:"jobId" validate:"required"`
	Result      enums.GatewayResult `json:"result" validate:"required"`
	Milestone   *string             `json:"milestone"`
	AmountMinor int64               `json:"amount"`
	Currency    string              `json:"currency"`
	PaymentID   *string             `json:"paymentId"`
	Signature   *string             `json:"signature"`
	ErrorCode   *string             `json:"errorCode"`
	ErrorReason *string             `json:"errorReason"`
	IsMock      bool                `json:"isMock"`
}

// FromPaymentResult normalizes a terminal gateway result into a PaymentResolved event.
func FromPaymentResult(eventID string, resp GatewayResponse, corr PaymentCorrelation, occurredAt time.Time) DomainEvent {
	payload := map[string]any{
		"orderId":  corr.OrderID,
		"jobId":    corr.JobID,
		"result":   string(resp.Result),
		"amount":   corr.AmountMinor,
		"currency": corr.Currency,
		"isMock":   resp.IsMock,
	}
	setOptional(payload, "milestone", &corr.Milestone)
	setOptional(payload, "paymentId", &resp.PaymentID)
	setOptional(payload, "signature", &resp.Signature)
	setOptional(payload, "errorCode", &resp.ErrorCode)
	setOptional(payload, "errorReason", &resp.ErrorReason)
	if resp.OrderID != "" {
		payload["gatewayOrderId"] = resp.OrderID
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return DomainEvent{
		EventID:        eventID,
		SourceRecordID: corr.OrderID,
		Kind:           enums.EventKindPaymentResolved,
		Payload:        payload,
		OccurredAt:     occurredAt,
	}
}

// PaymentFieldsFrom validates the PaymentResolved payload.
func PaymentFieldsFrom(evt DomainEvent) (PaymentFields, error) {
	if evt.Kind != enums.EventKindPaymentResolved {
		return PaymentFields{}, fmt.Errorf("expected %s event, got %s", enums.EventKindPaymentResolved, evt.Kind)
	}
	p := evt.Payload
	fields := PaymentFields{
		OrderID:     stringValue(p, "orderId"),
		JobID:       stringValue(p, "jobId"),
		Result:      enums.GatewayResult(stringValue(p, "result")),
		Milestone:   stringField(p, "milestone"),
		AmountMinor: int64Field(p, "amount"),
		Currency:    stringValue(p, "currency"),
		PaymentID:   stringField(p, "paymentId"),
		Signature:   stringField(p, "signature"),
		ErrorCode:   stringField(p, "errorCode"),
		ErrorReason: stringField(p, "errorReason"),
		IsMock:      boolField(p, "isMock"),
	}
	if fields.OrderID == "" {
		fields.OrderID = evt.SourceRecordID
	}
	if err := checkRequired(fields); err != nil {
		return fields, err
	}
	return fields, nil
}
