package registry

import (
	"testing"
	"time"
)

func TestInsertIfAbsent_CoalescesDuplicateKey(t *testing.T) {
	r := New()

	first, created := r.InsertIfAbsent("1:1000:A>G")
	if !created {
		t.Fatalf("expected first insert to create a new entry")
	}
	if first.State != Queued {
		t.Fatalf("expected new entry to start Queued, got %s", first.State)
	}

	second, created := r.InsertIfAbsent("1:1000:A>G")
	if created {
		t.Fatalf("expected second insert to coalesce onto the existing entry")
	}
	if second.FirstEnqueuedAt != first.FirstEnqueuedAt {
		t.Fatalf("coalesced entry should share the original FirstEnqueuedAt")
	}
}

func TestGet_ReturnsClone(t *testing.T) {
	r := New()
	r.InsertIfAbsent("1:1000:A>G")

	got, ok := r.Get("1:1000:A>G")
	if !ok {
		t.Fatalf("expected entry to be found")
	}
	got.State = Failed

	again, _ := r.Get("1:1000:A>G")
	if again.State != Queued {
		t.Fatalf("mutating a returned entry must not affect the registry, got state %s", again.State)
	}
}

func TestGet_MissingKey(t *testing.T) {
	r := New()
	if _, ok := r.Get("1:1000:A>G"); ok {
		t.Fatalf("expected no entry for an unknown key")
	}
}

func TestTransition_UpdatesStateAndAttempts(t *testing.T) {
	r := New()
	r.InsertIfAbsent("1:1000:A>G")

	if err := r.Transition("1:1000:A>G", Processing, 1, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, _ := r.Get("1:1000:A>G")
	if entry.State != Processing {
		t.Fatalf("expected state Processing, got %s", entry.State)
	}
	if entry.Attempts != 1 {
		t.Fatalf("expected Attempts 1, got %d", entry.Attempts)
	}

	if err := r.Transition("1:1000:A>G", RetryAvailable, 0, nil, "vep timeout"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entry, _ = r.Get("1:1000:A>G")
	if entry.LastError != "vep timeout" {
		t.Fatalf("expected LastError to be recorded, got %q", entry.LastError)
	}
}

func TestTransition_UnknownKey(t *testing.T) {
	r := New()
	if err := r.Transition("nope", Failed, 1, nil, ""); err == nil {
		t.Fatalf("expected an error for a transition on an unknown key")
	}
}

func TestPopForResubmission_OnlyFromRetryAvailable(t *testing.T) {
	r := New()
	r.InsertIfAbsent("1:1000:A>G")

	if _, ok := r.PopForResubmission("1:1000:A>G"); ok {
		t.Fatalf("expected pop to fail while entry is still Queued")
	}

	if err := r.Transition("1:1000:A>G", RetryAvailable, 1, nil, "vep 503"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	popped, ok := r.PopForResubmission("1:1000:A>G")
	if !ok {
		t.Fatalf("expected pop to succeed once entry is RetryAvailable")
	}
	if popped.Attempts != 1 {
		t.Fatalf("expected popped entry to carry forward Attempts 1, got %d", popped.Attempts)
	}

	if _, ok := r.Get("1:1000:A>G"); ok {
		t.Fatalf("expected entry to be removed from the registry after popping")
	}
}

func TestSweepTerminal_EvictsOldTerminalEntriesOnly(t *testing.T) {
	r := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.InsertIfAbsent("done-old")
	r.InsertIfAbsent("done-new")
	r.InsertIfAbsent("still-queued")

	r.now = func() time.Time { return base }
	if err := r.Transition("done-old", Completed, 0, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.now = func() time.Time { return base.Add(time.Minute) }
	if err := r.Transition("done-new", Completed, 0, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.now = func() time.Time { return base.Add(2 * time.Minute) }
	swept := r.SweepTerminal(90 * time.Second)
	if swept != 1 {
		t.Fatalf("expected exactly 1 entry swept, got %d", swept)
	}

	if _, ok := r.Get("done-old"); ok {
		t.Fatalf("expected done-old to be swept")
	}
	if _, ok := r.Get("done-new"); !ok {
		t.Fatalf("expected done-new to survive, it is within the retention window")
	}
	if _, ok := r.Get("still-queued"); !ok {
		t.Fatalf("expected still-queued to survive, it is not terminal")
	}
}

func TestReEnqueue_CarriesAttemptsForward(t *testing.T) {
	r := New()
	r.InsertIfAbsent("1:1000:A>G")
	if err := r.Transition("1:1000:A>G", RetryAvailable, 2, nil, "vep 503"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	popped, ok := r.PopForResubmission("1:1000:A>G")
	if !ok {
		t.Fatalf("expected pop to succeed")
	}

	fresh := r.ReEnqueue("1:1000:A>G", popped.Attempts)
	if fresh.State != Queued {
		t.Fatalf("expected re-enqueued entry to be Queued, got %s", fresh.State)
	}
	if fresh.Attempts != 2 {
		t.Fatalf("expected attempts carried forward, got %d", fresh.Attempts)
	}
}

func TestCountByState(t *testing.T) {
	r := New()
	r.InsertIfAbsent("a")
	r.InsertIfAbsent("b")
	r.InsertIfAbsent("c")
	if err := r.Transition("a", Completed, 0, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Transition("b", Completed, 0, nil, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := r.CountByState(Queued, Completed, Failed)
	if counts[Completed] != 2 {
		t.Fatalf("expected 2 completed, got %d", counts[Completed])
	}
	if counts[Queued] != 1 {
		t.Fatalf("expected 1 queued, got %d", counts[Queued])
	}
	if counts[Failed] != 0 {
		t.Fatalf("expected 0 failed, got %d", counts[Failed])
	}
}
