// Package registry implements the concurrent pending-entry map described in
// spec §4.3: a single mutex-guarded map, constant-time amortized
// operations, readers may observe slightly stale state but never an
// inconsistent one. Global mutable state is avoided per the design notes —
// the processor and submission façade each hold an explicit *Registry
// rather than reaching for a package-level singleton.
package registry

import (
	"fmt"
	"sync"
	"time"
)

// Registry is a concurrent mapping from variant key to pending entry.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
	now     func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// InsertIfAbsent creates a queued entry for variantKey if none exists.
// Returns the entry that now exists in the registry (new or pre-existing)
// and whether this call created it. Concurrent submissions of the same key
// coalesce onto the entry from whichever call wins the race.
func (r *Registry) InsertIfAbsent(variantKey string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[variantKey]; ok {
		return existing.clone(), false
	}

	now := r.now()
	entry := &Entry{
		VariantKey:       variantKey,
		State:            Queued,
		Attempts:         0,
		FirstEnqueuedAt:  now,
		LastTransitionAt: now,
	}
	r.entries[variantKey] = entry
	return entry.clone(), true
}

// Get returns a snapshot of the entry for variantKey, if any.
func (r *Registry) Get(variantKey string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[variantKey]
	return entry.clone(), ok
}

// Transition moves variantKey's entry to newState, applying attemptsDelta
// to its attempt counter and optionally recording a result handle or error
// message. Returns an error if no entry exists for variantKey.
func (r *Registry) Transition(variantKey string, newState State, attemptsDelta int, resultRef any, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[variantKey]
	if !ok {
		return fmt.Errorf("registry: no pending entry for %s", variantKey)
	}

	entry.State = newState
	entry.Attempts += attemptsDelta
	entry.LastTransitionAt = r.now()
	if resultRef != nil {
		entry.ResultRef = resultRef
	}
	if lastError != "" {
		entry.LastError = lastError
	}

	return nil
}

// PopForResubmission removes and returns the entry for variantKey if, and
// only if, it is currently in RetryAvailable state. This backs the client
// resubmission flow of spec §4.2: the façade calls this, then creates a
// fresh queued entry carrying the returned attempt count forward.
func (r *Registry) PopForResubmission(variantKey string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[variantKey]
	if !ok || entry.State != RetryAvailable {
		return nil, false
	}

	delete(r.entries, variantKey)
	return entry, true
}

// ReEnqueue creates a fresh queued entry for variantKey carrying attempts
// forward. Callers must have already removed any prior entry via
// PopForResubmission — this does not check for an existing one.
func (r *Registry) ReEnqueue(variantKey string, attempts int) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry := &Entry{
		VariantKey:       variantKey,
		State:            Queued,
		Attempts:         attempts,
		FirstEnqueuedAt:  now,
		LastTransitionAt: now,
	}
	r.entries[variantKey] = entry
	return entry.clone()
}

// Remove deletes any entry for variantKey unconditionally.
func (r *Registry) Remove(variantKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, variantKey)
}

// SweepTerminal evicts terminal (completed/failed) entries whose last
// transition happened more than olderThan ago, so pollers have had a
// chance to observe the final state first. Returns the number evicted.
func (r *Registry) SweepTerminal(olderThan time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-olderThan)
	swept := 0
	for key, entry := range r.entries {
		if entry.State.IsTerminal() && entry.LastTransitionAt.Before(cutoff) {
			delete(r.entries, key)
			swept++
		}
	}
	return swept
}

// CountByState returns how many entries are currently in each of the given
// states, used by the /statistics endpoint.
func (r *Registry) CountByState(states ...State) map[State]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[State]int, len(states))
	wanted := make(map[State]bool, len(states))
	for _, s := range states {
		wanted[s] = true
		counts[s] = 0
	}

	for _, entry := range r.entries {
		if wanted[entry.State] {
			counts[entry.State]++
		}
	}
	return counts
}
