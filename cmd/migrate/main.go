package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/db"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
	"github.com/angelmondragon/gigflow-dispatch/pkg/migrate"
)

const usage = `usage: migrate [-dir DIR] <command> [arg]

commands:
  up              apply all pending migrations
  down            roll back the latest migration
  status          list migrations and when they were applied
  to VERSION      migrate up or down to VERSION (YYYYMMDDHHMMSS)
  create NAME     write a new migration into -dir (default %s)
  validate        check migration files without touching the database

-dir defaults to the migrations compiled into this binary.
`

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	dir := flag.String("dir", "", "migrations directory on disk")
	flag.Usage = func() { fmt.Fprintf(flag.CommandLine.Output(), usage, migrate.DefaultDir) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, arg := flag.Arg(0), flag.Arg(1)
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": cmd, "dir": *dir})

	// create and validate never open a database.
	switch cmd {
	case "create":
		target := *dir
		if target == "" {
			target = migrate.DefaultDir
		}
		path, err := migrate.Create(target, arg, time.Now())
		requireResource(ctx, logg, "migration file", err)
		fmt.Println("created", path)
		return
	case "validate":
		fsys, err := migrate.Source(*dir)
		requireResource(ctx, logg, "migration source", err)
		requireResource(ctx, logg, "migration files", migrate.Validate(fsys))
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	logg = logger.ForService("migrate", cfg.App)
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	fsys, err := migrate.Source(*dir)
	requireResource(ctx, logg, "migration source", err)
	runner, err := migrate.NewRunner(sqlDB, fsys, logg)
	requireResource(ctx, logg, "migration runner", err)
	defer runner.Close()

	if err := run(ctx, runner, cmd, arg, os.Stdout); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, runner *migrate.Runner, cmd, arg string, out io.Writer) error {
	switch cmd {
	case "up":
		return runner.Up(ctx)
	case "down":
		return runner.Down(ctx)
	case "to":
		version, err := migrate.ParseVersion(arg)
		if err != nil {
			return err
		}
		return runner.To(ctx, version)
	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		return printStatus(out, statuses)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printStatus(out io.Writer, statuses []*goose.MigrationStatus) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tFILE")
	for _, st := range statuses {
		applied := "-"
		if !st.AppliedAt.IsZero() {
			applied = st.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", st.Source.Version, st.State, applied, filepath.Base(st.Source.Path))
	}
	return tw.Flush()
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
