// Package asynchook moves feedsync.Hooks calls onto worker goroutines so slow
// sinks never stall the store. Events are dropped when the queue is full.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{FetchEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000)
//	defer hooks.Close()
//
//	store := feedsync.New(feedsync.Options{Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/feedsync"
)

type Hooks struct {
	inner   feedsync.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ feedsync.Hooks = (*Hooks)(nil)

func New(inner feedsync.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or a closed hook.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) FetchStarted(k string) { h.try(func() { h.inner.FetchStarted(k) }) }
func (h *Hooks) FetchDeduped(k string) { h.try(func() { h.inner.FetchDeduped(k) }) }
func (h *Hooks) FetchSettled(k string, err error, took time.Duration) {
	h.try(func() { h.inner.FetchSettled(k, err, took) })
}
func (h *Hooks) EntryDiscarded(k, reason string) {
	h.try(func() { h.inner.EntryDiscarded(k, reason) })
}
func (h *Hooks) Invalidated(p string, refetched, discarded int) {
	h.try(func() { h.inner.Invalidated(p, refetched, discarded) })
}
func (h *Hooks) MutationSettled(op string, err error) {
	h.try(func() { h.inner.MutationSettled(op, err) })
}
func (h *Hooks) ToggleReverted(err error) { h.try(func() { h.inner.ToggleReverted(err) }) }
