package instance

import "testing"

func TestGetIDPrefersExplicitValue(t *testing.T) {
	t.Setenv("GIGFLOW_INSTANCE_ID", "dispatcher-3")
	t.Setenv("DYNO", "web.1")
	if got := GetID(); got != "dispatcher-3" {
		t.Fatalf("expected explicit id, got %q", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("GIGFLOW_INSTANCE_ID", "")
	t.Setenv("DYNO", "worker.2")
	if got := GetID(); got != "worker.2" {
		t.Fatalf("expected dyno id, got %q", got)
	}
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv("GIGFLOW_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	if GetID() == "" {
		t.Fatalf("instance id should never be empty")
	}
}
