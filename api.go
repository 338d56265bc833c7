package feedsync

import (
	"context"
	"time"
)

// Loader produces the value cached under a key. It runs at most once at a
// time per key; its context carries the store's fetch timeout and is not
// cancelled when the caller that started it goes away.
type Loader func(ctx context.Context) (any, error)

// Status is the lifecycle state of a cache entry.
type Status uint8

const (
	StatusIdle Status = iota
	StatusFetching
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusFetching:
		return "fetching"
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Entry is a point-in-time copy of a cached result.
type Entry struct {
	Key         Key
	Data        any // nil until the first successful fetch
	Status      Status
	Subscribers int
	Err         error // last fetch error; previous Data is kept
	Stale       bool  // invalidated and not yet refreshed
	UpdatedAt   time.Time
}

// Value returns e.Data as T.
func Value[T any](e Entry) (T, bool) {
	v, ok := e.Data.(T)
	return v, ok
}

// Options tune the Store. The zero value is ready to use.
type Options struct {
	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	FetchTimeout  time.Duration // per loader call; 0 => 30s
	SweepInterval time.Duration // orphan entry sweep; 0 => 1m
	DisableSweep  bool          // default false (sweep enabled)
}

// New returns a Store. Close it to stop the sweep loop.
func New(opts Options) *Store {
	return newStore(opts)
}
