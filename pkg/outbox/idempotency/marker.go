// Package idempotency holds the two Redis guards the dispatcher relies on:
// a per-consumer marker of finished events that lets redeliveries skip the
// pipeline, and a per-record lease that serializes side effects.
package idempotency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/gigflow-dispatch/pkg/redis"
)

// Marker remembers which event ids a consumer has handled.
// Keys look like gf:processed:<consumer>:<event_id>.
type Marker struct {
	store redis.Store
	ttl   time.Duration
}

// NewMarker builds a marker whose entries expire after ttl. Zero keeps them
// forever.
func NewMarker(store redis.Store, ttl time.Duration) (*Marker, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Marker{store: store, ttl: ttl}, nil
}

// Done reports whether consumer already finished eventID. It never writes,
// so a delivery that dies before Mark is handled again on redelivery.
func (m *Marker) Done(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := processedKey(consumer, eventID)
	if err != nil {
		return false, err
	}
	return m.store.Exists(ctx, key)
}

// Mark records eventID as finished by consumer. Call it only once the outcome
// is final; marking an already marked event is a no-op.
func (m *Marker) Mark(ctx context.Context, consumer, eventID string) error {
	key, err := processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	_, err = m.store.SetNX(ctx, key, "1", m.ttl)
	return err
}

func processedKey(consumer, eventID string) (string, error) {
	if strings.TrimSpace(consumer) == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(eventID) == "" {
		return "", errors.New("event id is required")
	}
	return redis.Key(redis.KindProcessed, consumer, eventID), nil
}
