package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/gigflow-dispatch/internal/dispatch"
	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db"
	"github.com/angelmondragon/gigflow-dispatch/pkg/instance"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/metrics"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/idempotency"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/registry"
	"github.com/angelmondragon/gigflow-dispatch/pkg/pubsub"
	"github.com/angelmondragon/gigflow-dispatch/pkg/redis"
	"github.com/angelmondragon/gigflow-dispatch/pkg/sendgrid"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "dispatcher"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "dispatcher"

	logg = logger.ForService("dispatcher", cfg.App)

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.NeedsRecordsSubscription)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	subscription := pubsubClient.RecordsSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "records subscription", errors.New("subscription not configured"))
	}

	mailer, err := sendgrid.NewClient(cfg.Mail, logg)
	requireResource(ctx, logg, "sendgrid client", err)

	stack, err := dispatch.NewStack(dispatch.StackParams{
		DB:         dbClient.DB(),
		Store:      redisClient,
		Mailer:     mailer,
		Mail:       cfg.Mail,
		Dispatch:   cfg.Dispatch,
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logg,
	})
	requireResource(ctx, logg, "dispatch pipeline", err)

	marker, err := idempotency.NewMarker(redisClient, cfg.Dispatch.ProcessedTTL)
	requireResource(ctx, logg, "processed marker", err)

	consumer, err := dispatch.NewConsumer(dispatch.ConsumerParams{
		Pipeline:     stack.Pipeline,
		Subscription: subscription,
		Processed:    marker,
		Decoders:     registry.ForConsumer(),
		Name:         cfg.Dispatch.ConsumerName,
		Logger:       logg,
	})
	requireResource(ctx, logg, "dispatch consumer", err)

	service, err := NewService(ServiceParams{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		PubSub:   pubsubClient,
		Consumer: consumer,
	})
	requireResource(ctx, logg, "dispatcher service", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"consumer":    cfg.Dispatch.ConsumerName,
		"instance":    instance.GetID(),
	})
	metrics.Serve(runCtx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg)
	logg.Info(runCtx, "dispatcher ready")

	if err := service.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "dispatcher failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "dispatcher shutting down gracefully")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
