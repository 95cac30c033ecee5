// Package submission implements the thin entry point called by the HTTP
// layer (SPEC_FULL.md §4.1): check the cache, register a pending entry,
// enqueue. It owns none of the batching or persistence logic itself — it
// only orchestrates the store, the registry, and the processor, the way
// the teacher's job service orchestrates a repository and a state machine
// without implementing either.
package submission

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/vareng/annotator/internal/annotation/model"
	"github.com/vareng/annotator/internal/annotation/repository"
	"github.com/vareng/annotator/internal/registry"
	"github.com/vareng/annotator/internal/variantkey"
)

// Enqueuer is the batch processor's submission-facing surface. Defining it
// here, rather than depending on *batch.Processor directly, keeps this
// package testable without standing up a real queue and worker pool.
type Enqueuer interface {
	Enqueue(variantKey string)
}

// State is the outcome reported to the HTTP layer for one submission.
type State string

const (
	Cached         State = "cached"
	Accepted       State = "accepted"
	AlreadyPending State = "already_pending"
)

// ErrInvalidInput is returned when the submitted coordinates do not form a
// syntactically valid variant key.
var ErrInvalidInput = errors.New("submission: invalid input")

// ErrServiceUnavailable is returned when the store cannot be reached, or
// when the façade has been told to stop accepting new work.
var ErrServiceUnavailable = errors.New("submission: service unavailable")

// Outcome is the result of one Submit call.
type Outcome struct {
	State      State
	VariantKey string
	Record     *model.Record
}

// Facade is the submission entry point. It holds no state of its own
// beyond a shutdown flag; all durable and in-flight state lives in the
// store, the registry, and the processor it wraps.
type Facade struct {
	store     repository.Store
	registry  *registry.Registry
	processor Enqueuer

	// cacheLookup deduplicates concurrent GetAnnotation calls for the same
	// variant key, so a burst of identical submissions costs one cache
	// query rather than one per caller.
	cacheLookup singleflight.Group

	shuttingDown atomic.Bool
}

// New constructs a Facade over an already-started store, registry, and
// processor.
func New(store repository.Store, reg *registry.Registry, processor Enqueuer) *Facade {
	return &Facade{store: store, registry: reg, processor: processor}
}

// Shutdown marks the façade as no longer accepting new submissions. Poll
// and health continue to work; Submit starts returning
// ErrServiceUnavailable immediately.
func (f *Facade) Shutdown() {
	f.shuttingDown.Store(true)
}

// Submit implements the three-step contract of §4.1: cache check, pending
// check (with resubmission handling for retry_available), enqueue.
func (f *Facade) Submit(ctx context.Context, rawChrom string, pos int, ref, alt string) (Outcome, error) {
	if f.shuttingDown.Load() {
		return Outcome{}, ErrServiceUnavailable
	}

	key, err := variantkey.Normalize(rawChrom, pos, ref, alt)
	if err != nil {
		return Outcome{}, errors.Join(ErrInvalidInput, err)
	}

	cached, err, _ := f.cacheLookup.Do(key, func() (any, error) {
		return f.store.GetAnnotation(ctx, key)
	})
	if err != nil {
		return Outcome{}, errors.Join(ErrServiceUnavailable, err)
	}
	if ann, _ := cached.(*model.Annotation); ann != nil {
		record := ann.Record
		return Outcome{State: Cached, VariantKey: key, Record: &record}, nil
	}

	if popped, ok := f.registry.PopForResubmission(key); ok {
		f.registry.ReEnqueue(key, popped.Attempts)
		f.processor.Enqueue(key)
		return Outcome{State: Accepted, VariantKey: key}, nil
	}

	_, created := f.registry.InsertIfAbsent(key)
	if !created {
		return Outcome{State: AlreadyPending, VariantKey: key}, nil
	}

	f.processor.Enqueue(key)
	return Outcome{State: Accepted, VariantKey: key}, nil
}

// PollState is the outcome reported to the HTTP layer for one poll.
type PollState string

const (
	PollProcessing     PollState = "processing"
	PollCompleted      PollState = "completed"
	PollFailed         PollState = "failed"
	PollRetryAvailable PollState = "retry_available"
	PollNotFound       PollState = "not_found"
)

// PollResult is the outcome of one Poll call.
type PollResult struct {
	State    PollState
	Record   *model.Record
	Attempts int
}

// Poll reports the current lifecycle state for variantKey: first the
// registry (for anything still in flight or recently terminal), then the
// cache store (for anything the registry has already swept).
func (f *Facade) Poll(ctx context.Context, variantKey string) (PollResult, error) {
	if entry, ok := f.registry.Get(variantKey); ok {
		switch entry.State {
		case registry.Queued, registry.Processing:
			return PollResult{State: PollProcessing, Attempts: entry.Attempts}, nil
		case registry.RetryAvailable:
			return PollResult{State: PollRetryAvailable, Attempts: entry.Attempts}, nil
		case registry.Failed:
			return PollResult{State: PollFailed, Attempts: entry.Attempts}, nil
		case registry.Completed:
			if record, ok := entry.ResultRef.(model.Record); ok {
				return PollResult{State: PollCompleted, Record: &record, Attempts: entry.Attempts}, nil
			}
		}
	}

	ann, err := f.store.GetAnnotation(ctx, variantKey)
	if err != nil {
		return PollResult{}, errors.Join(ErrServiceUnavailable, err)
	}
	if ann != nil {
		record := ann.Record
		return PollResult{State: PollCompleted, Record: &record}, nil
	}

	return PollResult{State: PollNotFound}, nil
}
