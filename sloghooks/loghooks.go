// Package sloghooks reports feedsync.Hooks events through log/slog.
// Keys can carry user ids and search terms, so they are redacted by default.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/feedsync"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FetchEvery   uint64
	DiscardEvery uint64
	// Optional key redactor. Defaults to resource plus a SHA-256 prefix of
	// the parameters.
	Redact func(string) string
	// SlowFetch promotes settled fetches slower than this to Warn. 0 disables.
	SlowFetch time.Duration
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fetchCtr   atomic.Uint64
	discardCtr atomic.Uint64
}

var _ feedsync.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	res, params, ok := strings.Cut(k, ":")
	if !ok {
		return k
	}
	sum := sha256.Sum256([]byte(params))
	return res + ":" + hex.EncodeToString(sum[:6])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchStarted(key string) {
	if h.l == nil || !sample(h.opts.FetchEvery, &h.fetchCtr) {
		return
	}
	h.l.Debug("feedsync.fetch_started", "key", h.redact(key))
}

func (h *Hooks) FetchDeduped(key string) {
	if h.l == nil || !sample(h.opts.FetchEvery, &h.fetchCtr) {
		return
	}
	h.l.Debug("feedsync.fetch_deduped", "key", h.redact(key))
}

func (h *Hooks) FetchSettled(key string, err error, took time.Duration) {
	if h.l == nil {
		return
	}
	switch {
	case err != nil:
		h.l.Warn("feedsync.fetch_failed",
			"key", h.redact(key),
			"kind", feedsync.KindOf(err).String(),
			"took", took,
			"err", err)
	case h.opts.SlowFetch > 0 && took >= h.opts.SlowFetch:
		h.l.Warn("feedsync.fetch_slow", "key", h.redact(key), "took", took)
	default:
		if sample(h.opts.FetchEvery, &h.fetchCtr) {
			h.l.Debug("feedsync.fetch_settled", "key", h.redact(key), "took", took)
		}
	}
}

func (h *Hooks) EntryDiscarded(key, reason string) {
	if h.l == nil || !sample(h.opts.DiscardEvery, &h.discardCtr) {
		return
	}
	h.l.Debug("feedsync.entry_discarded",
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) Invalidated(pattern string, refetched, discarded int) {
	if h.l == nil {
		return
	}
	h.l.Info("feedsync.invalidated",
		"pattern", h.redact(pattern),
		"refetched", refetched,
		"discarded", discarded)
}

func (h *Hooks) MutationSettled(op string, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Warn("feedsync.mutation_failed",
			"op", op,
			"kind", feedsync.KindOf(err).String(),
			"err", err)
		return
	}
	h.l.Info("feedsync.mutation", "op", op)
}

func (h *Hooks) ToggleReverted(err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("feedsync.toggle_reverted", "err", err)
}
