package main

import (
	"time"

	"github.com/unkn0wn-root/feedsync"
)

// fanout delivers every event to each of its hooks in order.
type fanout []feedsync.Hooks

var _ feedsync.Hooks = fanout(nil)

func (f fanout) FetchStarted(k string) {
	for _, h := range f {
		h.FetchStarted(k)
	}
}

func (f fanout) FetchDeduped(k string) {
	for _, h := range f {
		h.FetchDeduped(k)
	}
}

func (f fanout) FetchSettled(k string, err error, took time.Duration) {
	for _, h := range f {
		h.FetchSettled(k, err, took)
	}
}

func (f fanout) EntryDiscarded(k, reason string) {
	for _, h := range f {
		h.EntryDiscarded(k, reason)
	}
}

func (f fanout) Invalidated(p string, refetched, discarded int) {
	for _, h := range f {
		h.Invalidated(p, refetched, discarded)
	}
}

func (f fanout) MutationSettled(op string, err error) {
	for _, h := range f {
		h.MutationSettled(op, err)
	}
}

func (f fanout) ToggleReverted(err error) {
	for _, h := range f {
		h.ToggleReverted(err)
	}
}
