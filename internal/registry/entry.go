package registry

import "time"

// Entry is the in-memory lifecycle record for a variant key that is not
// yet terminally resolved (spec §3). Nothing here is persisted; durability
// begins at the database commit in the annotation store.
type Entry struct {
	VariantKey       string
	State            State
	Attempts         int
	FirstEnqueuedAt  time.Time
	LastTransitionAt time.Time

	// ResultRef is an opaque handle to the persisted annotation, set only
	// when State == Completed. The registry never interprets it; it is set
	// by whoever performs the persist step and read by whoever serves polls.
	ResultRef any

	// LastError records why the most recent attempt failed. It is kept on
	// the entry only; poll responses report the state and attempt count,
	// not this reason.
	LastError string
}

// clone returns a shallow copy so callers reading through Get cannot mutate
// registry-owned state through the returned pointer.
func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	copied := *e
	return &copied
}
