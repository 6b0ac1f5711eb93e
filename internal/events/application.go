package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/payloads"
)

// ApplicationFields is the typed view of a RecordCreated payload.
type ApplicationFields struct {
	ApplicationID   string  `json:"applicationId" validate:"required"`
	FreelancerEmail string  `json:"freelancerEmail" validate:"required"`
	FreelancerName  *string `json:"freelancerName"`
	JobID           *string `json:"jobId"`
	JobName         *string `json:"jobName"`
	ClientName      *string `json:"clientName"`
	Salary          *string `json:"salary"`
	Duration        *string `json:"duration"`
	CoverLetter     *string `json:"coverLetter"`
}

// FromApplicationMessage normalizes a decoded application_created message.
// The envelope event id becomes the DomainEvent id, so a Pub/Sub redelivery
// keeps the same id.
func FromApplicationMessage(envelope outbox.Envelope, evt *payloads.ApplicationCreatedEvent) (DomainEvent, error) {
	if evt == nil {
		return DomainEvent{}, fmt.Errorf("application payload is required")
	}
	payload := map[string]any{}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			return DomainEvent{}, fmt.Errorf("decode application payload: %w", err)
		}
	}
	occurredAt := envelope.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = evt.CreatedAt
	}
	return DomainEvent{
		EventID:        envelope.EventID,
		SourceRecordID: evt.ApplicationID.String(),
		Kind:           enums.EventKindRecordCreated,
		Payload:        payload,
		OccurredAt:     occurredAt,
	}, nil
}

// NewRecordCreated builds a RecordCreated event straight from field values,
// used when replaying a stored application.
func NewRecordCreated(eventID string, fields ApplicationFields, occurredAt time.Time) DomainEvent {
	payload := map[string]any{
		"applicationId":   fields.ApplicationID,
		"freelancerEmail": fields.FreelancerEmail,
	}
	setOptional(payload, "freelancerName", fields.FreelancerName)
	setOptional(payload, "jobId", fields.JobID)
	setOptional(payload, "jobName", fields.JobName)
	setOptional(payload, "clientName", fields.ClientName)
	setOptional(payload, "salary", fields.Salary)
	setOptional(payload, "duration", fields.Duration)
	setOptional(payload, "coverLetter", fields.CoverLetter)
	return DomainEvent{
		EventID:        eventID,
		SourceRecordID: fields.ApplicationID,
		Kind:           enums.EventKindRecordCreated,
		Payload:        payload,
		OccurredAt:     occurredAt,
	}
}

// ApplicationFieldsFrom validates the RecordCreated payload. A blank recipient
// yields MISSING_REQUIRED_FIELD; optional fields come back nil when absent.
func ApplicationFieldsFrom(evt DomainEvent) (ApplicationFields, error) {
	if evt.Kind != enums.EventKindRecordCreated {
		return ApplicationFields{}, fmt.Errorf("expected %s event, got %s", enums.EventKindRecordCreated, evt.Kind)
	}
	p := evt.Payload
	fields := ApplicationFields{
		ApplicationID:   stringValue(p, "applicationId"),
		FreelancerEmail: stringValue(p, "freelancerEmail"),
		FreelancerName:  stringField(p, "freelancerName"),
		JobID:           stringField(p, "jobId"),
		JobName:         stringField(p, "jobName"),
		ClientName:      stringField(p, "clientName"),
		Salary:          stringField(p, "salary"),
		Duration:        stringField(p, "duration"),
		CoverLetter:     stringField(p, "coverLetter"),
	}
	if fields.ApplicationID == "" {
		fields.ApplicationID = evt.SourceRecordID
	}
	if err := checkRequired(fields); err != nil {
		return fields, err
	}
	return fields, nil
}
