package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/payloads"
)

func applicationEnvelope(t *testing.T, data map[string]any) (outbox.Envelope, *payloads.ApplicationCreatedEvent) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	var evt payloads.ApplicationCreatedEvent
	require.NoError(t, json.Unmarshal(raw, &evt))
	return outbox.Envelope{
		Version:    1,
		EventID:    "evt-1",
		OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Data:       raw,
	}, &evt
}

func TestFromApplicationMessage(t *testing.T) {
	appID := uuid.New()
	env, evt := applicationEnvelope(t, map[string]any{
		"applicationId":   appID.String(),
		"jobId":           "J1",
		"jobName":         "Widget",
		"freelancerEmail": "a@b.com",
		"freelancerName":  "A",
		"salary":          "100",
		"duration":        "1w",
	})

	domain, err := FromApplicationMessage(env, evt)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", domain.EventID)
	assert.Equal(t, appID.String(), domain.SourceRecordID)
	assert.Equal(t, enums.EventKindRecordCreated, domain.Kind)
	assert.Equal(t, env.OccurredAt, domain.OccurredAt)

	fields, err := ApplicationFieldsFrom(domain)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", fields.FreelancerEmail)
	require.NotNil(t, fields.JobName)
	assert.Equal(t, "Widget", *fields.JobName)
	assert.Nil(t, fields.ClientName)
	assert.Nil(t, fields.CoverLetter)
}

func TestFromApplicationMessageRequiresPayload(t *testing.T) {
	_, err := FromApplicationMessage(outbox.Envelope{EventID: "evt"}, nil)
	require.Error(t, err)
}

func TestApplicationFieldsMissingRecipient(t *testing.T) {
	for name, email := range map[string]any{"absent": nil, "blank": "   "} {
		t.Run(name, func(t *testing.T) {
			payload := map[string]any{"applicationId": "app-1"}
			if email != nil {
				payload["freelancerEmail"] = email
			}
			_, err := ApplicationFieldsFrom(DomainEvent{
				EventID:        "evt",
				SourceRecordID: "app-1",
				Kind:           enums.EventKindRecordCreated,
				Payload:        payload,
			})
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeMissingField, pkgerrors.CodeOf(err))
			assert.Equal(t, "freelancerEmail is required", pkgerrors.As(err).Message())
			assert.False(t, pkgerrors.IsRetryable(err))
		})
	}
}

func TestApplicationFieldsFallsBackToSourceRecordID(t *testing.T) {
	fields, err := ApplicationFieldsFrom(DomainEvent{
		SourceRecordID: "app-9",
		Kind:           enums.EventKindRecordCreated,
		Payload:        map[string]any{"freelancerEmail": "x@y.z", "salary": ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "app-9", fields.ApplicationID)
	assert.Nil(t, fields.Salary)
}

func TestApplicationFieldsRejectsWrongKind(t *testing.T) {
	_, err := ApplicationFieldsFrom(DomainEvent{Kind: enums.EventKindPaymentResolved})
	require.Error(t, err)
}

func TestNewRecordCreatedRoundTrip(t *testing.T) {
	name := "A"
	blank := " "
	evt := NewRecordCreated("evt-2", ApplicationFields{
		ApplicationID:   "app-2",
		FreelancerEmail: "a@b.com",
		FreelancerName:  &name,
		ClientName:      &blank,
	}, time.Now())

	_, hasClient := evt.Payload["clientName"]
	assert.False(t, hasClient)

	fields, err := ApplicationFieldsFrom(evt)
	require.NoError(t, err)
	require.NotNil(t, fields.FreelancerName)
	assert.Equal(t, "A", *fields.FreelancerName)
}

func TestFromPaymentResult(t *testing.T) {
	evt := FromPaymentResult("evt-3", GatewayResponse{
		Result:    enums.GatewayResultSucceeded,
		PaymentID: "pay_mock_1",
		Signature: "sig",
		IsMock:    true,
	}, PaymentCorrelation{
		OrderID:     "O1",
		JobID:       "J1",
		Milestone:   "M1",
		AmountMinor: 50000,
		Currency:    "USD",
	}, time.Time{})

	assert.Equal(t, "O1", evt.SourceRecordID)
	assert.Equal(t, enums.EventKindPaymentResolved, evt.Kind)
	assert.False(t, evt.OccurredAt.IsZero())

	fields, err := PaymentFieldsFrom(evt)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), fields.AmountMinor)
	assert.Equal(t, enums.GatewayResultSucceeded, fields.Result)
	assert.True(t, fields.IsMock)
	require.NotNil(t, fields.PaymentID)
	assert.Equal(t, "pay_mock_1", *fields.PaymentID)
	assert.Nil(t, fields.ErrorReason)
}

func TestPaymentFieldsMissingJob(t *testing.T) {
	evt := FromPaymentResult("evt-4", GatewayResponse{Result: enums.GatewayResultFailed}, PaymentCorrelation{OrderID: "O1"}, time.Now())
	_, err := PaymentFieldsFrom(evt)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeMissingField, pkgerrors.CodeOf(err))
	assert.Contains(t, pkgerrors.As(err).Message(), "jobId")
}

func TestPaymentFieldsAcceptsJSONNumbers(t *testing.T) {
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"orderId":"O1","jobId":"J1","result":"failed","amount":1250,"errorReason":"card declined"}`), &payload))
	fields, err := PaymentFieldsFrom(DomainEvent{Kind: enums.EventKindPaymentResolved, Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, int64(1250), fields.AmountMinor)
	require.NotNil(t, fields.ErrorReason)
	assert.Equal(t, "card declined", *fields.ErrorReason)
}
