package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/gigflow-dispatch/api/routes"
	"github.com/angelmondragon/gigflow-dispatch/internal/applications"
	"github.com/angelmondragon/gigflow-dispatch/internal/dispatch"
	"github.com/angelmondragon/gigflow-dispatch/internal/payments"
	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db"
	"github.com/angelmondragon/gigflow-dispatch/pkg/instance"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/migrate"
	"github.com/angelmondragon/gigflow-dispatch/pkg/outbox"
	"github.com/angelmondragon/gigflow-dispatch/pkg/redis"
	"github.com/angelmondragon/gigflow-dispatch/pkg/sendgrid"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.ForService("api", cfg.App)

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.AutoMigrate(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	mailer, err := sendgrid.NewClient(cfg.Mail, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create sendgrid client", err)
		os.Exit(1)
	}

	stack, err := dispatch.NewStack(dispatch.StackParams{
		DB:         dbClient.DB(),
		Store:      redisClient,
		Mailer:     mailer,
		Mail:       cfg.Mail,
		Dispatch:   cfg.Dispatch,
		Registerer: prometheus.DefaultRegisterer,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire dispatch pipeline", err)
		os.Exit(1)
	}

	applicationsService, err := applications.NewService(applications.ServiceParams{
		Repo:     applications.NewRepository(dbClient.DB()),
		TxRunner: dbClient,
		Outbox:   outbox.NewEmitter(outbox.NewRepository(dbClient.DB()), logg),
		Pipeline: stack.Pipeline,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create applications service", err)
		os.Exit(1)
	}

	channel, err := paymentChannel(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment channel", err)
		os.Exit(1)
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(dbClient.DB()),
		Channel:  channel,
		Pipeline: stack.Pipeline,
		Lease:    stack.Lease,
		Currency: cfg.Payments.Currency,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":           cfg.App.Env,
		"addr":          addr,
		"payments_mode": channel.Mode(),
		"instance":      instance.GetID(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			prometheus.DefaultGatherer,
			applicationsService,
			paymentsService,
			stack.Writer,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shut down gracefully")
	}
}

// paymentChannel picks the checkout channel once, from configuration.
func paymentChannel(cfg *config.Config, logg *logger.Logger) (payments.PaymentChannel, error) {
	if cfg.Payments.IsLive() {
		return payments.NewLiveChannel(cfg.Payments, logg)
	}
	return payments.NewSimulatedChannel(cfg.Payments), nil
}
