package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeConsumer struct {
	err     error
	started chan struct{}
	block   bool
}

func (f *fakeConsumer) Run(ctx context.Context) error {
	if f.started != nil {
		close(f.started)
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.err
}

func newTestService(t *testing.T, db, redis, ps pinger, consumer runner) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:   &config.Config{},
		Logger:   logger.Nop(),
		DB:       db,
		Redis:    redis,
		PubSub:   ps,
		Consumer: consumer,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceParams{}); err == nil {
		t.Fatalf("expected config error")
	}
	if _, err := NewService(ServiceParams{Config: &config.Config{}, Logger: logger.Nop(), DB: fakePinger{}, Redis: fakePinger{}, PubSub: fakePinger{}}); err == nil {
		t.Fatalf("expected consumer error")
	}
}

func TestRunFailsWhenDependencyDown(t *testing.T) {
	consumer := &fakeConsumer{started: make(chan struct{})}
	svc := newTestService(t, fakePinger{}, fakePinger{err: errors.New("connection refused")}, fakePinger{}, consumer)

	err := svc.Run(context.Background())
	if err == nil || err.Error() != "redis ping failed: connection refused" {
		t.Fatalf("unexpected error %v", err)
	}
	select {
	case <-consumer.started:
		t.Fatalf("consumer must not start before dependencies are ready")
	default:
	}
}

func TestRunReturnsConsumerError(t *testing.T) {
	boom := errors.New("subscription deleted")
	svc := newTestService(t, fakePinger{}, fakePinger{}, fakePinger{}, &fakeConsumer{err: boom})

	if err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected consumer error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	consumer := &fakeConsumer{started: make(chan struct{}), block: true}
	svc := newTestService(t, fakePinger{}, fakePinger{}, fakePinger{}, consumer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-consumer.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("dispatcher did not stop")
	}
}
