package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
)

func TestPrintStatusRendersTable(t *testing.T) {
	applied := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	statuses := []*goose.MigrationStatus{
		{Source: &goose.Source{Version: 20260302090000, Path: "20260302090000_create_applications.sql"}, State: goose.StateApplied, AppliedAt: applied},
		{Source: &goose.Source{Version: 20260302091000, Path: "20260302091000_create_outbox.sql"}, State: goose.StatePending},
	}

	var buf bytes.Buffer
	if err := printStatus(&buf, statuses); err != nil {
		t.Fatalf("print status: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"VERSION", "20260302090000", "2026-03-02T09:00:00Z", "create_outbox.sql"} {
		if !strings.Contains(out, want) {
			t.Fatalf("status output missing %q:\n%s", want, out)
		}
	}
	if lines := strings.Count(out, "\n"); lines != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", lines)
	}
}

func TestRunRejectsUnknownCommandAndBadVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := run(context.Background(), nil, "sideways", "", &buf); err == nil {
		t.Fatalf("expected unknown command error")
	}
	if err := run(context.Background(), nil, "to", "yesterday", &buf); err == nil {
		t.Fatalf("expected version parse error")
	}
}
