package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigflow-dispatch/internal/events"
	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigflow-dispatch/pkg/errors"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/idempotency"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/payloads"
	pkgredis "github.com/angelmondragon/gigflow-dispatch/pkg/redis"
)

type stubProcessor struct {
	calls []events.DomainEvent
	err   error
}

func (s *stubProcessor) Process(_ context.Context, evt events.DomainEvent) (Attempt, error) {
	s.calls = append(s.calls, evt)
	return Attempt{EventID: evt.EventID, Kind: evt.Kind, RecordID: evt.SourceRecordID}, s.err
}

func newTestConsumer(t *testing.T, proc Processor) *Consumer {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return newConsumerOn(t, proc, pkgredis.NewFromClient(raw))
}

func newConsumerOn(t *testing.T, proc Processor, store pkgredis.Store) *Consumer {
	t.Helper()
	marker, err := idempotency.NewMarker(store, time.Hour)
	require.NoError(t, err)
	consumer, err := NewConsumer(ConsumerParams{
		Pipeline:  proc,
		Processed: marker,
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	return consumer
}

// crashingProcessor dies on its first call the way a killed worker would,
// leaving the message unacked.
type crashingProcessor struct {
	stubProcessor
	crashed bool
}

func (c *crashingProcessor) Process(ctx context.Context, evt events.DomainEvent) (Attempt, error) {
	attempt, err := c.stubProcessor.Process(ctx, evt)
	if !c.crashed {
		c.crashed = true
		panic("worker killed mid-send")
	}
	return attempt, err
}

func applicationMessage(t *testing.T, eventID string, appID uuid.UUID) *pubsub.Message {
	t.Helper()
	name := "A"
	data, err := json.Marshal(payloads.ApplicationCreatedEvent{
		ApplicationID:   appID,
		JobID:           "J1",
		FreelancerEmail: "a@b.com",
		FreelancerName:  &name,
		CreatedAt:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.Envelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Data:       data,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         "msg-" + eventID,
		Data:       envelope,
		Attributes: map[string]string{"event_type": string(enums.EventApplicationCreated)},
	}
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer(ConsumerParams{Logger: logger.Nop()})
	require.Error(t, err)
	_, err = NewConsumer(ConsumerParams{Pipeline: &stubProcessor{}, Logger: logger.Nop()})
	require.Error(t, err)
}

func TestConsumerProcessesApplicationCreated(t *testing.T) {
	proc := &stubProcessor{}
	consumer := newTestConsumer(t, proc)
	appID := uuid.New()
	eventID := uuid.NewString()

	result := consumer.process(context.Background(), applicationMessage(t, eventID, appID))
	assert.True(t, result.ack)
	require.Len(t, proc.calls, 1)

	evt := proc.calls[0]
	assert.Equal(t, eventID, evt.EventID)
	assert.Equal(t, appID.String(), evt.SourceRecordID)
	assert.Equal(t, enums.EventKindRecordCreated, evt.Kind)
	fields, err := events.ApplicationFieldsFrom(evt)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", fields.FreelancerEmail)

	result = consumer.process(context.Background(), applicationMessage(t, eventID, appID))
	assert.True(t, result.ack)
	assert.Len(t, proc.calls, 1)
}

func TestConsumerNacksRetryableFailures(t *testing.T) {
	proc := &stubProcessor{err: pkgerrors.New(pkgerrors.CodeTransientChannel, "mail transport unreachable")}
	consumer := newTestConsumer(t, proc)
	msg := applicationMessage(t, uuid.NewString(), uuid.New())

	result := consumer.process(context.Background(), msg)
	assert.True(t, result.nack)

	proc.err = nil
	result = consumer.process(context.Background(), msg)
	assert.True(t, result.ack)
	assert.Len(t, proc.calls, 2)
}

func TestConsumerAcksNonRetryableFailures(t *testing.T) {
	proc := &stubProcessor{err: pkgerrors.New(pkgerrors.CodeNotFound, "application missing")}
	consumer := newTestConsumer(t, proc)

	result := consumer.process(context.Background(), applicationMessage(t, uuid.NewString(), uuid.New()))
	assert.True(t, result.ack)
	assert.False(t, result.nack)
}

func TestConsumerSkipsUnusableMessages(t *testing.T) {
	proc := &stubProcessor{}
	consumer := newTestConsumer(t, proc)

	cases := map[string]*pubsub.Message{
		"unknown type": {ID: "1", Data: []byte(`{}`), Attributes: map[string]string{"event_type": "job_closed"}},
		"bad envelope": {ID: "2", Data: []byte(`not json`), Attributes: map[string]string{"event_type": string(enums.EventApplicationCreated)}},
		"no event id":  {ID: "3", Data: []byte(`{"version":1,"data":{}}`), Attributes: map[string]string{"event_type": string(enums.EventApplicationCreated)}},
		"bad payload":  {ID: "4", Data: []byte(`{"version":1,"eventId":"e","data":"oops"}`), Attributes: map[string]string{"event_type": string(enums.EventApplicationCreated)}},
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			result := consumer.process(context.Background(), msg)
			assert.True(t, result.ack)
		})
	}
	assert.Empty(t, proc.calls)
}

func TestConsumerRunRequiresSubscription(t *testing.T) {
	consumer := newTestConsumer(t, &stubProcessor{})
	require.Error(t, consumer.Run(context.Background()))
}

func TestConsumerRedeliveryAfterCrashReachesPipeline(t *testing.T) {
	proc := &crashingProcessor{}
	consumer := newTestConsumer(t, proc)
	msg := applicationMessage(t, uuid.NewString(), uuid.New())

	assert.Panics(t, func() { consumer.process(context.Background(), msg) })

	result := consumer.process(context.Background(), msg)
	assert.True(t, result.ack)
	assert.Len(t, proc.calls, 2, "the redelivery must run the pipeline again")

	result = consumer.process(context.Background(), msg)
	assert.True(t, result.ack)
	assert.Len(t, proc.calls, 2, "a finished event is skipped")
}

func TestConsumerMarksDroppedEvents(t *testing.T) {
	proc := &stubProcessor{err: pkgerrors.New(pkgerrors.CodeNotFound, "application missing")}
	consumer := newTestConsumer(t, proc)
	msg := applicationMessage(t, uuid.NewString(), uuid.New())

	assert.True(t, consumer.process(context.Background(), msg).ack)
	assert.True(t, consumer.process(context.Background(), msg).ack)
	assert.Len(t, proc.calls, 1)
}

func TestConsumerNacksWhileRecordLeaseHeld(t *testing.T) {
	h := newHarness(t, config.MailConfig{})
	app := h.seedApplication(t, "a@b.com")
	consumer := newConsumerOn(t, h.pipeline, h.store)
	msg := applicationMessage(t, uuid.NewString(), app.ID)
	ctx := context.Background()

	claimed, err := h.lease.Claim(ctx, enums.EventKindRecordCreated.String(), app.ID.String(), "redispatch")
	require.NoError(t, err)
	require.True(t, claimed)

	result := consumer.process(ctx, msg)
	assert.True(t, result.nack)
	assert.False(t, result.ack)

	// the holder fails without recording and lets go of the lease
	require.NoError(t, h.lease.Release(ctx, enums.EventKindRecordCreated.String(), app.ID.String(), "redispatch"))

	result = consumer.process(ctx, msg)
	assert.True(t, result.ack)
	assert.Equal(t, 1, h.transport.Calls())
	sent, err := h.writer.IsSent(ctx, enums.EventKindRecordCreated, app.ID.String())
	require.NoError(t, err)
	assert.True(t, sent)
}
