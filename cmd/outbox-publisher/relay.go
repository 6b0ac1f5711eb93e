package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db/models"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/metrics"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond

	relayJob = "outbox_relay"
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRows interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// RelayParams wires the outbox relay. Publishers and Clock are optional.
type RelayParams struct {
	Outbox      config.OutboxConfig
	Logger      *logger.Logger
	DB          dbClient
	PubSub      pubSubClient
	Rows        outboxRows
	Registry    eventResolver
	DeadLetters deadLetters
	Publishers  publisherFactory
	Metrics     *metrics.JobMetrics
	Clock       func() time.Time
}

// Relay moves committed outbox rows onto Pub/Sub. Delivery is at-least-once;
// the dispatcher deduplicates on the envelope event id.
type Relay struct {
	logg       *logger.Logger
	db         dbClient
	pubsub     pubSubClient
	rows       outboxRows
	registry   eventResolver
	dlq        deadLetters
	publishers publisherFactory
	metrics    *metrics.JobMetrics
	now        func() time.Time

	batchSize      int
	maxAttempts    int
	pollInterval   time.Duration
	publishTimeout time.Duration
}

// batchSummary counts what one drain did with each row.
type batchSummary struct {
	published int
	retried   int
	dead      int
}

func (b *batchSummary) add(v verdict) {
	switch v {
	case verdictPublished:
		b.published++
	case verdictRetry:
		b.retried++
	case verdictDead:
		b.dead++
	}
}

func (b batchSummary) total() int {
	return b.published + b.retried + b.dead
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Rows == nil:
		return nil, errors.New("outbox repository is required")
	case params.Registry == nil:
		return nil, errors.New("event registry is required")
	case params.DeadLetters == nil:
		return nil, errors.New("dlq repository is required")
	}

	publishers := params.Publishers
	if publishers == nil {
		publishers = pubSubPublishers(params.PubSub)
	}
	clock := params.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	r := &Relay{
		logg:           params.Logger,
		db:             params.DB,
		pubsub:         params.PubSub,
		rows:           params.Rows,
		registry:       params.Registry,
		dlq:            params.DeadLetters,
		publishers:     publishers,
		metrics:        params.Metrics,
		now:            clock,
		batchSize:      params.Outbox.BatchSize,
		maxAttempts:    params.Outbox.MaxAttempts,
		pollInterval:   time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
		publishTimeout: params.Outbox.PublishTimeout,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.pollInterval <= 0 {
		r.pollInterval = defaultPollInterval
	}
	if r.publishTimeout <= 0 {
		r.publishTimeout = defaultPublishTimeout
	}
	return r, nil
}

func (r *Relay) checkDependencies(ctx context.Context) error {
	for _, dep := range []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", r.db.Ping},
		{"pubsub", r.pubsub.Ping},
	} {
		if err := dep.ping(ctx); err != nil {
			r.logg.Error(ctx, dep.name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	return nil
}

// Run drains the outbox until ctx ends. A full batch is followed immediately
// by the next one; an empty batch waits one poll interval; a failed batch
// backs off exponentially up to maxBackoff.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.checkDependencies(ctx); err != nil {
		return err
	}

	var (
		delay    time.Duration
		failures int
	)
	for {
		if err := sleepCtx(ctx, delay); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		started := r.now()
		summary, err := r.drain(ctx)
		switch {
		case err != nil:
			failures++
			r.metrics.ObserveDuration(relayJob, r.now().Sub(started))
			r.metrics.IncFailure(relayJob)
			r.logg.Error(r.logg.WithField(ctx, "consecutive_failures", failures), "outbox relay batch failed", err)
			delay = withJitter(backoffFor(failures, r.pollInterval))
		case summary.total() > 0:
			failures = 0
			r.metrics.ObserveDuration(relayJob, r.now().Sub(started))
			r.metrics.IncSuccess(relayJob)
			r.logg.Debug(r.logg.WithFields(ctx, map[string]any{
				"published": summary.published,
				"retried":   summary.retried,
				"dead":      summary.dead,
			}), "outbox relay batch drained")
			delay = 0
		default:
			failures = 0
			delay = withJitter(r.pollInterval)
		}
	}
}

// drain handles one locked batch inside a single transaction. Row-level
// publish failures are recorded on the row; only storage errors abort.
func (r *Relay) drain(ctx context.Context) (batchSummary, error) {
	var summary batchSummary
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.rows.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox rows: %w", err)
		}
		for _, row := range rows {
			v, err := r.deliver(ctx, tx, row)
			if err != nil {
				return err
			}
			summary.add(v)
		}
		return nil
	})
	return summary, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoffFor doubles base once per consecutive failure, capped at maxBackoff.
func backoffFor(failures int, base time.Duration) time.Duration {
	if base <= 0 {
		base = defaultPollInterval
	}
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
