package sloghooks

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/feedsync"
)

func newBuffered(opts Options) (*Hooks, *bytes.Buffer) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return New(l, opts), &buf
}

func TestRedactsKeyParameters(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.FetchStarted("searchPosts:search:my secret term")

	out := buf.String()
	if strings.Contains(out, "secret") {
		t.Fatalf("term leaked: %s", out)
	}
	if !strings.Contains(out, "key=searchPosts:") {
		t.Fatalf("resource missing: %s", out)
	}
	if got := h.redact("recentPosts"); got != "recentPosts" {
		t.Fatalf("bare resource redacted to %q", got)
	}
}

func TestFailuresCarryKind(t *testing.T) {
	h, buf := newBuffered(Options{})
	h.FetchSettled("posts", feedsync.NetworkError("fetchPage", "posts", errors.New("offline")), time.Millisecond)
	h.MutationSettled("likePost", feedsync.ValidationError("mutate:likePost", "posts", errors.New("bad")))

	out := buf.String()
	if !strings.Contains(out, "feedsync.fetch_failed") || !strings.Contains(out, "kind=network") {
		t.Fatalf("fetch failure not logged: %s", out)
	}
	if !strings.Contains(out, "feedsync.mutation_failed") || !strings.Contains(out, "kind=validation") {
		t.Fatalf("mutation failure not logged: %s", out)
	}
}

func TestSamplingAndSlowFetch(t *testing.T) {
	h, buf := newBuffered(Options{DiscardEvery: 3, SlowFetch: 10 * time.Millisecond})
	for i := 0; i < 6; i++ {
		h.EntryDiscarded("posts", "swept")
	}
	if n := strings.Count(buf.String(), "entry_discarded"); n != 2 {
		t.Fatalf("sampled discards=%d want 2", n)
	}
	h.FetchSettled("posts", nil, 20*time.Millisecond)
	if !strings.Contains(buf.String(), "feedsync.fetch_slow") {
		t.Fatalf("slow fetch not promoted: %s", buf.String())
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	h := New(nil, Options{})
	h.FetchStarted("k")
	h.Invalidated("k:*", 1, 1)
	h.ToggleReverted(errors.New("x"))
}
