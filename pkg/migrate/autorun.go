package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

// AutoMigrate applies the embedded migrations on boot when running in dev
// with GIGFLOW_AUTO_MIGRATE set. SQLite dev databases are skipped because the
// migration set targets Postgres.
func AutoMigrate(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.Dialect()})
	if client.Dialect() != "postgres" {
		logg.Warn(ctx, "skipping auto-migrate for non-postgres database")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	fsys, err := Source("")
	if err != nil {
		return err
	}
	runner, err := NewRunner(sqlDB, fsys, logg)
	if err != nil {
		return err
	}
	defer runner.Close()

	logg.Info(ctx, "auto-migrate starting")
	if err := runner.Up(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "auto-migrate finished")
	return nil
}
