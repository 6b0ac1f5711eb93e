// Package registry describes every outbox event type: which aggregate emits
// it, which topic it is relayed to and how each envelope version decodes.
// The relay and the dispatcher share one catalog so they never disagree.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/payloads"
)

// DecodeFunc turns an envelope's data into a typed payload.
type DecodeFunc func(data json.RawMessage) (any, error)

// JSON decodes data into a fresh *T.
func JSON[T any]() DecodeFunc {
	return func(data json.RawMessage) (any, error) {
		out := new(T)
		if err := json.Unmarshal(data, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// Schema is everything known about one event type.
type Schema struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	// Topic is empty in consumer-only catalogs.
	Topic    string
	Versions map[int]DecodeFunc
}

// ResolvedEvent is an outbox row that passed validation and decoding.
type ResolvedEvent struct {
	Topic    string
	Envelope outbox.Envelope
	Payload  any
}

type Catalog struct {
	mu      sync.RWMutex
	schemas map[enums.OutboxEventType]Schema
}

func NewCatalog() *Catalog {
	return &Catalog{schemas: make(map[enums.OutboxEventType]Schema)}
}

// Default is the catalog of events this system emits, relayed to topic.
func Default(topic string) *Catalog {
	c := NewCatalog()
	c.Register(Schema{
		EventType:     enums.EventApplicationCreated,
		AggregateType: enums.AggregateApplication,
		Topic:         topic,
		Versions: map[int]DecodeFunc{
			1: JSON[payloads.ApplicationCreatedEvent](),
		},
	})
	return c
}

// ForRelay is Default bound to the configured records topic.
func ForRelay(cfg config.PubSubConfig) (*Catalog, error) {
	if cfg.RecordsTopic == "" {
		return nil, fmt.Errorf("records topic is required")
	}
	return Default(cfg.RecordsTopic), nil
}

// ForConsumer is Default without topics; consumers only decode.
func ForConsumer() *Catalog {
	return Default("")
}

// Register adds or replaces a schema.
func (c *Catalog) Register(s Schema) {
	if s.Versions == nil {
		s.Versions = map[int]DecodeFunc{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas[s.EventType] = s
}

// RegisterVersion adds a decoder for one more envelope version of an event.
func (c *Catalog) RegisterVersion(eventType enums.OutboxEventType, version int, decode DecodeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.schemas[eventType]
	if !ok {
		s = Schema{EventType: eventType, Versions: map[int]DecodeFunc{}}
	}
	versions := make(map[int]DecodeFunc, len(s.Versions)+1)
	for v, fn := range s.Versions {
		versions[v] = fn
	}
	versions[version] = decode
	s.Versions = versions
	c.schemas[eventType] = s
}

// Versions lists the envelope versions known for eventType, ascending.
func (c *Catalog) Versions(eventType enums.OutboxEventType) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.schemas[eventType]
	out := make([]int, 0, len(s.Versions))
	for v := range s.Versions {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// Decode decodes data for eventType at version. Version 0 means the envelope
// predates versioning and is read as the current version.
func (c *Catalog) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	if version == 0 {
		version = outbox.CurrentVersion
	}
	c.mu.RLock()
	decode, ok := c.schemas[eventType].Versions[version]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no decoder for %s@v%d", eventType, version)
	}
	return decode(data)
}

// Resolve validates an outbox row and decodes its payload. Every failure is a
// NonRetryableError: a malformed row does not heal by waiting.
func (c *Catalog) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	c.mu.RLock()
	s, ok := c.schemas[row.EventType]
	c.mu.RUnlock()
	switch {
	case !ok:
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", row.EventType))
	case s.AggregateType != row.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", s.AggregateType, row.AggregateType))
	case row.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	case s.Topic == "":
		return nil, NewNonRetryableError(fmt.Errorf("no topic configured for %s", row.EventType))
	}

	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	payload, err := c.Decode(row.EventType, env.Version, env.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &ResolvedEvent{Topic: s.Topic, Envelope: env, Payload: payload}, nil
}
