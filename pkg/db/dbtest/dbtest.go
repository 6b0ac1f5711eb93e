// Package dbtest opens throwaway SQLite databases shaped like the Postgres
// schema in pkg/migrate/migrations.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/gigflow-dispatch/pkg/db"
)

var schema = []string{
	`CREATE TABLE applications (
		id text PRIMARY KEY,
		job_id text NOT NULL,
		job_name text,
		client_name text,
		freelancer_email text NOT NULL,
		freelancer_name text,
		salary text,
		duration text,
		cover_letter text,
		side_effect_sent boolean NOT NULL DEFAULT false,
		side_effect_sent_at datetime,
		side_effect_reference text,
		side_effect_error text,
		side_effect_error_at datetime,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE payment_orders (
		id text PRIMARY KEY,
		job_id text NOT NULL,
		milestone text NOT NULL,
		amount_minor integer NOT NULL,
		currency text NOT NULL DEFAULT 'USD',
		status text NOT NULL DEFAULT 'unpaid',
		payer_name text,
		payer_email text,
		payment_id text,
		is_mock boolean NOT NULL DEFAULT false,
		failure_reason text,
		side_effect_sent boolean NOT NULL DEFAULT false,
		side_effect_sent_at datetime,
		side_effect_reference text,
		side_effect_error text,
		side_effect_error_at datetime,
		created_at datetime,
		updated_at datetime
	)`,
	`CREATE TABLE outbox_events (
		id text PRIMARY KEY,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id text NOT NULL,
		payload blob NOT NULL,
		created_at datetime,
		published_at datetime,
		attempt_count integer NOT NULL DEFAULT 0,
		last_error text
	)`,
	`CREATE UNIQUE INDEX ux_outbox_events_event_aggregate ON outbox_events (event_type, aggregate_type, aggregate_id)`,
	`CREATE TABLE outbox_dlq (
		id text PRIMARY KEY,
		event_id text NOT NULL,
		event_type text NOT NULL,
		aggregate_type text NOT NULL,
		aggregate_id text NOT NULL,
		payload_json blob NOT NULL,
		error_reason text NOT NULL,
		error_message text,
		attempt_count integer NOT NULL DEFAULT 0,
		failed_at datetime,
		created_at datetime
	)`,
}

// Open returns a GORM handle on a private in-memory database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// a single connection keeps the shared in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in the application's db.Client.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.FromConn(Open(t))
}
