package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/registry"
)

// verdict is what the relay decided for a single row.
type verdict int

const (
	verdictPublished verdict = iota
	verdictRetry
	verdictDead
)

func (v verdict) String() string {
	switch v {
	case verdictPublished:
		return "published"
	case verdictRetry:
		return "retry"
	default:
		return "dead"
	}
}

// classify splits a delivery error into retry or dead-letter. Registry
// rejections never heal; anything else retries until the attempt budget ends.
func (r *Relay) classify(row models.OutboxEvent, err error) (verdict, enums.OutboxDLQErrorReason) {
	var nonRetry registry.NonRetryableError
	if errors.As(err, &nonRetry) {
		return verdictDead, enums.OutboxDLQReasonNonRetryable
	}
	if row.AttemptCount+1 >= r.maxAttempts {
		return verdictDead, enums.OutboxDLQReasonMaxAttempts
	}
	return verdictRetry, ""
}

func (r *Relay) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (verdict, error) {
	fields := row.LogFields()

	resolved, err := r.registry.Resolve(row)
	if err == nil {
		annotateResolved(fields, resolved)
		err = r.publish(ctx, row, resolved)
	}
	if err == nil {
		if markErr := r.rows.MarkPublishedTx(tx, row.ID); markErr != nil {
			return verdictRetry, fmt.Errorf("mark published %s: %w", row.ID, markErr)
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "outbox event published")
		return verdictPublished, nil
	}

	v, reason := r.classify(row, err)
	fields["attempt_count"] = row.AttemptCount + 1
	fields["verdict"] = v.String()
	logCtx := r.logg.WithField(r.logg.WithFields(ctx, fields), "error", err.Error())

	if v == verdictRetry {
		r.logg.Warn(logCtx, "outbox publish failed, will retry")
		if markErr := r.rows.MarkFailedTx(tx, row.ID, err); markErr != nil {
			return v, fmt.Errorf("mark failure %s: %w", row.ID, markErr)
		}
		return v, nil
	}

	if reason == enums.OutboxDLQReasonMaxAttempts {
		err = fmt.Errorf("max publish attempts reached: %w", err)
	}
	r.logg.Warn(r.logg.WithField(logCtx, "error_reason", reason.String()), "outbox event dead-lettered")
	return v, r.deadLetter(tx, row, reason, err)
}

func (r *Relay) deadLetter(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	if err := r.dlq.InsertTx(tx, row.DeadLetter(reason, cause, r.now())); err != nil {
		return fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.rows.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return nil
}

// publish sends the stored envelope verbatim. Attributes let the dispatcher
// route and deduplicate without decoding the body.
func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Topic
	pub := r.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	attrs := map[string]string{
		"event_id":       resolved.Envelope.EventID,
		"event_type":     string(row.EventType),
		"event_version":  strconv.Itoa(resolved.Envelope.Version),
		"aggregate_type": string(row.AggregateType),
		"aggregate_id":   row.AggregateID.String(),
		"created_at":     row.CreatedAt.Format(time.RFC3339Nano),
	}
	if kind, ok := row.EventType.Kind(); ok {
		attrs["event_kind"] = kind.String()
	}

	publishCtx, cancel := context.WithTimeout(ctx, r.publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, &gcppubsub.Message{Data: row.Payload, Attributes: attrs})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

func annotateResolved(fields map[string]any, resolved *registry.ResolvedEvent) {
	fields["topic"] = resolved.Topic
	if resolved.Envelope.EventID != "" {
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
}
