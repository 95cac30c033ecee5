package registry

// State represents the lifecycle state of a pending variant annotation
// (spec §3). Unlike a job's state machine, a pending entry only exists
// in-memory and vanishes entirely once terminal — there is no "cancelled"
// state, and retry is driven by the entry being removed and recreated
// rather than by an in-place transition back to queued.
type State string

const (
	// Queued: created on submission, waiting for a flush to pick it up.
	Queued State = "queued"

	// Processing: a worker has claimed this entry as part of a batch.
	Processing State = "processing"

	// Completed: annotation persisted successfully. Terminal.
	Completed State = "completed"

	// Failed: attempts exhausted, or a non-retriable error occurred.
	// Terminal.
	Failed State = "failed"

	// RetryAvailable: a transient failure occurred and attempts remain.
	// The client is expected to resubmit.
	RetryAvailable State = "retry_available"
)

// IsTerminal reports whether the state requires no further processing.
// RetryAvailable is not terminal — the entry stays visible to pollers
// until an explicit resubmission removes it, but it is not being actively
// worked either. It is excluded here because pollers should keep observing
// it rather than have it swept as "done": the terminal-retention sweep
// never removes a RetryAvailable entry.
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed
}

// IsValid reports whether s is a recognized state.
func (s State) IsValid() bool {
	switch s {
	case Queued, Processing, Completed, Failed, RetryAvailable:
		return true
	default:
		return false
	}
}
