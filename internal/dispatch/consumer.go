package dispatch

import (
	"context"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/gigflow-dispatch/internal/events"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/idempotency"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/payloads"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/registry"
)

const defaultConsumerName = "dispatcher"

// Processor runs one DomainEvent through the dispatch pipeline.
type Processor interface {
	Process(ctx context.Context, evt events.DomainEvent) (Attempt, error)
}

// ConsumerParams groups the consumer dependencies. Processed is only written
// once an event reaches a final outcome.
type ConsumerParams struct {
	Pipeline     Processor
	Subscription *pubsub.Subscriber
	Processed    *idempotency.Marker
	Decoders     *registry.Catalog
	Name         string
	Logger       *logger.Logger
}

// Consumer turns record-creation messages into RecordCreated events.
type Consumer struct {
	pipeline     Processor
	subscription *pubsub.Subscriber
	processed    *idempotency.Marker
	decoders     *registry.Catalog
	name         string
	logg         *logger.Logger
}

// NewConsumer builds the dispatcher consumer.
func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Pipeline == nil {
		return nil, fmt.Errorf("dispatch pipeline required")
	}
	if params.Processed == nil {
		return nil, fmt.Errorf("processed marker required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	decoders := params.Decoders
	if decoders == nil {
		decoders = registry.ForConsumer()
	}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = defaultConsumerName
	}
	return &Consumer{
		pipeline:     params.Pipeline,
		subscription: params.Subscription,
		processed:    params.Processed,
		decoders:     decoders,
		name:         name,
		logg:         params.Logger,
	}, nil
}

// Run starts the receive loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c.subscription == nil {
		return fmt.Errorf("records subscription required")
	}
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
	})

	if _, ok := eventType.Kind(); !ok {
		c.logg.Info(logCtx, "skipping event without a side effect")
		return processResult{ack: true}
	}

	envelope, err := outbox.DecodeEnvelope(msg.Data)
	if err != nil {
		c.logg.Error(logCtx, "dropping undecodable envelope", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithEventID(logCtx, envelope.EventID)

	decoded, err := c.decoders.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode payload", err)
		return processResult{ack: true}
	}

	var evt events.DomainEvent
	switch payload := decoded.(type) {
	case *payloads.ApplicationCreatedEvent:
		evt, err = events.FromApplicationMessage(envelope, payload)
	default:
		err = fmt.Errorf("unsupported payload %T", decoded)
	}
	if err != nil {
		c.logg.Error(logCtx, "failed to normalize event", err)
		return processResult{ack: true}
	}
	logCtx = c.logg.WithRecordID(logCtx, evt.SourceRecordID)

	done, err := c.processed.Done(ctx, c.name, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if done {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	attempt, err := c.pipeline.Process(ctx, evt)
	if err != nil && pkgerrors.IsRetryable(err) {
		c.logg.Warn(c.logg.WithFields(logCtx, attempt.logFields()), "retryable dispatch failure; nacking")
		return processResult{nack: true}
	}

	// The outcome is final: only now may redeliveries skip the pipeline.
	if markErr := c.processed.Mark(context.WithoutCancel(ctx), c.name, envelope.EventID); markErr != nil {
		// the status guard still stops a second side effect
		c.logg.Error(logCtx, "failed to set idempotency marker", markErr)
	}
	if err != nil {
		c.logg.Error(c.logg.WithFields(logCtx, attempt.logFields()), "event dropped", err)
		return processResult{ack: true}
	}
	c.logg.Info(c.logg.WithFields(logCtx, attempt.logFields()), "event processed")
	return processResult{ack: true}
}
