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

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db"
	"github.com/angelmondragon/gigflow-dispatch/pkg/instance"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/metrics"
	"github.com/angelmondragon/gigflow-dispatch/pkg/migrate"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox/registry"
	"github.com/angelmondragon/gigflow-dispatch/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg := logger.ForService(serviceKind, cfg.App)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "outbox relay stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "outbox relay shut down")
}

// run wires the relay and blocks until ctx is cancelled. Cancellation is a
// clean shutdown and returns nil.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.AutoMigrate(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg, pubsub.NeedsRecordsTopic)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer closeWith(ctx, logg, "pubsub client", pubsubClient.Close)

	catalog, err := registry.ForRelay(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("event catalog: %w", err)
	}

	relay, err := NewRelay(RelayParams{
		Outbox:      cfg.Outbox,
		Logger:      logg,
		DB:          dbClient,
		PubSub:      pubsubClient,
		Rows:        outbox.NewRepository(dbClient.DB()),
		Registry:    catalog,
		DeadLetters: outbox.NewDeadLetters(dbClient.DB()),
		Metrics:     metrics.NewJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("create relay: %w", err)
	}

	metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg)
	logg.Info(logg.WithField(ctx, "topic", cfg.PubSub.RecordsTopic), "starting outbox relay")

	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(logg.WithField(ctx, "resource", name), "close failed", err)
	}
}
