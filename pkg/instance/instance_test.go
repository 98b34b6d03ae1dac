package instance

import "testing"

func TestGetIDPrefersExplicitID(t *testing.T) {
	t.Setenv("LEDGERSYNC_INSTANCE_ID", "cron-1")
	t.Setenv("DYNO", "worker.1")
	if got := GetID(); got != "cron-1" {
		t.Fatalf("expected cron-1, got %q", got)
	}
}

func TestGetIDFallsBackToDyno(t *testing.T) {
	t.Setenv("LEDGERSYNC_INSTANCE_ID", "")
	t.Setenv("DYNO", "worker.1")
	if got := GetID(); got != "worker.1" {
		t.Fatalf("expected worker.1, got %q", got)
	}
}

func TestGetIDNeverEmpty(t *testing.T) {
	t.Setenv("LEDGERSYNC_INSTANCE_ID", "")
	t.Setenv("DYNO", "")
	if GetID() == "" {
		t.Fatal("expected a non-empty id")
	}
}
