package feedsync

import "time"

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking: the store calls them
// while settling fetches and invalidations.
type Hooks interface {
	// A loader was started for key (the caller became the in-flight leader).
	FetchStarted(key string)

	// A caller attached to an already in-flight fetch instead of issuing its own.
	FetchDeduped(key string)

	// A loader settled. err is nil on success.
	FetchSettled(key string, err error, took time.Duration)

	// An entry was dropped by the store.
	// reason ∈ {"invalidated", "unsubscribed", "swept", "stale_settle"}
	EntryDiscarded(key, reason string)

	// Invalidate matched entries for pattern.
	Invalidated(pattern string, refetched, discarded int)

	// A mutation finished. err is nil on success.
	MutationSettled(op string, err error)

	// An optimistic toggle rolled back to its committed value.
	ToggleReverted(err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchStarted(string)                       {}
func (NopHooks) FetchDeduped(string)                       {}
func (NopHooks) FetchSettled(string, error, time.Duration) {}
func (NopHooks) EntryDiscarded(string, string)             {}
func (NopHooks) Invalidated(string, int, int)              {}
func (NopHooks) MutationSettled(string, error)             {}
func (NopHooks) ToggleReverted(error)                      {}
