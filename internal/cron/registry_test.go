package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry.Register(jobA)
	registry.Register(jobB)
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsNilAndDuplicates(t *testing.T) {
	registry := NewRegistry(nil, &stubJob{name: "ledger-sync"})
	if registry.Register(&stubJob{name: "ledger-sync"}) {
		t.Fatal("expected duplicate name to be rejected")
	}
	if registry.Register(nil) {
		t.Fatal("expected nil job to be rejected")
	}
	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}

	var zero Registry
	if !zero.Register(&stubJob{name: "x"}) {
		t.Fatal("zero registry should accept jobs")
	}
}
