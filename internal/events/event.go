package events

import (
	"strings"
	"time"

	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
)

// DomainEvent is the normalized trigger handed to the dispatch pipeline. It
// lives only for the duration of one processing attempt.
type DomainEvent struct {
	// EventID is unique per trigger invocation, not per logical event.
	EventID        string
	SourceRecordID string
	Kind           enums.EventKind
	// Payload stays untyped here; typed views are produced by ApplicationFieldsFrom
	// and PaymentFieldsFrom.
	Payload    map[string]any
	OccurredAt time.Time
}

// LogFields returns the fields every pipeline log line carries.
func (e DomainEvent) LogFields() map[string]any {
	return map[string]any{
		"event_id":  e.EventID,
		"record_id": e.SourceRecordID,
		"kind":      e.Kind.String(),
	}
}

func stringField(payload map[string]any, key string) *string {
	raw, ok := payload[key]
	if !ok || raw == nil {
		return nil
	}
	var value string
	switch v := raw.(type) {
	case string:
		value = v
	case *string:
		if v == nil {
			return nil
		}
		value = *v
	default:
		return nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(payload map[string]any, key string) string {
	if v := stringField(payload, key); v != nil {
		return *v
	}
	return ""
}

func boolField(payload map[string]any, key string) bool {
	v, ok := payload[key].(bool)
	return ok && v
}

func int64Field(payload map[string]any, key string) int64 {
	switch v := payload[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func setOptional(payload map[string]any, key string, value *string) {
	if value == nil {
		return
	}
	if trimmed := strings.TrimSpace(*value); trimmed != "" {
		payload[key] = trimmed
	}
}
