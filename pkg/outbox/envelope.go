package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the envelope version new rows are written with.
const CurrentVersion = 1

// Actor names the service and request that caused an event.
type Actor struct {
	Service   string `json:"service"`
	RequestID string `json:"requestId,omitempty"`
}

// Envelope wraps every outbox payload. The same bytes are stored in
// outbox_events.payload and published as the Pub/Sub message body, so the
// consumer sees the event id assigned at write time.
type Envelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *Actor          `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope marshals data under a fresh event id.
func NewEnvelope(data any, actor *Actor, occurredAt time.Time) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal outbox data: %w", err)
	}
	return Envelope{
		Version:    CurrentVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      actor,
		Data:       raw,
	}, nil
}

// DecodeEnvelope parses raw and rejects envelopes the dispatcher cannot
// deduplicate or route.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

func (e Envelope) Validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.New("envelope eventId is required")
	case e.Version < 0:
		return fmt.Errorf("envelope version %d is invalid", e.Version)
	case len(e.Data) == 0 || string(e.Data) == "null":
		return errors.New("envelope data is required")
	}
	return nil
}

func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
