package asynchook

import (
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/feedsync"
)

type blockingHooks struct {
	feedsync.NopHooks
	gate chan struct{}

	mu      sync.Mutex
	started []string
}

func (b *blockingHooks) FetchStarted(k string) {
	<-b.gate
	b.mu.Lock()
	b.started = append(b.started, k)
	b.mu.Unlock()
}

func TestEventsDeliveredInOrderAfterClose(t *testing.T) {
	inner := &blockingHooks{gate: make(chan struct{})}
	close(inner.gate)
	h := New(inner, 1, 16)
	for _, k := range []string{"a", "b", "c"} {
		h.FetchStarted(k)
	}
	h.Close()

	inner.mu.Lock()
	defer inner.mu.Unlock()
	if len(inner.started) != 3 || inner.started[0] != "a" || inner.started[2] != "c" {
		t.Fatalf("started=%v", inner.started)
	}
	if h.Dropped() != 0 {
		t.Fatalf("dropped=%d", h.Dropped())
	}
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	inner := &blockingHooks{gate: make(chan struct{})}
	h := New(inner, 1, 1)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.FetchStarted("k")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("hook call blocked on a full queue")
	}
	// one event held by the worker, one queued
	if h.Dropped() < 8 {
		t.Fatalf("dropped=%d want >= 8", h.Dropped())
	}
	close(inner.gate)
	h.Close()
	h.FetchStarted("late")
	if h.Dropped() < 9 {
		t.Fatalf("event after Close not counted as dropped")
	}
}
