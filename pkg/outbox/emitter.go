package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/pkg/db"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

// uniqueAggregateIndex allows one row per (event type, aggregate).
const uniqueAggregateIndex = "ux_outbox_events_event_aggregate"

// Event is what a domain service asks to have published once its own
// transaction commits.
type Event struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *Actor
	Data          any
	OccurredAt    time.Time
}

// Emitter writes outbox rows inside the caller's transaction.
type Emitter struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewEmitter(repo *Repository, logg *logger.Logger) *Emitter {
	return &Emitter{repo: repo, logg: logg, now: time.Now}
}

// Emit queues event on tx and returns the envelope's event id.
func (e *Emitter) Emit(ctx context.Context, tx *gorm.DB, event Event) (string, error) {
	if tx == nil {
		return "", errors.New("transaction required")
	}
	if !event.EventType.IsValid() {
		return "", fmt.Errorf("unsupported outbox event type %q", event.EventType)
	}
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = e.now()
	}
	env, err := NewEnvelope(event.Data, event.Actor, occurred)
	if err != nil {
		return "", err
	}
	payload, err := env.Encode()
	if err != nil {
		return "", err
	}
	row := models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}
	if err := e.repo.Insert(tx, row); err != nil {
		return "", err
	}
	if e.logg != nil {
		e.logg.Debug(e.logg.WithFields(ctx, map[string]any{
			"event_id":       env.EventID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		}), "outbox event queued")
	}
	return env.EventID, nil
}

// EmitOnce is Emit for events that exist at most once per aggregate, such as a
// record's creation notice. It reports false when a row is already queued.
// tx must be a transaction: a unique violation aborts it on Postgres, so the
// insert runs under a savepoint.
func (e *Emitter) EmitOnce(ctx context.Context, tx *gorm.DB, event Event) (string, bool, error) {
	if tx == nil {
		return "", false, errors.New("transaction required")
	}
	exists, err := e.repo.ExistsTx(tx, event.EventType, event.AggregateType, event.AggregateID)
	if err != nil {
		return "", false, err
	}
	if exists {
		return "", false, nil
	}
	var eventID string
	err = tx.Transaction(func(nested *gorm.DB) error {
		var emitErr error
		eventID, emitErr = e.Emit(ctx, nested, event)
		return emitErr
	})
	if db.IsUniqueViolation(err, uniqueAggregateIndex) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return eventID, true, nil
}
