package prom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/unkn0wn-root/feedsync"
)

func TestCountersByResourceAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(WithRegistry(reg), WithNamespace("test"))

	h.FetchSettled("userPosts:u1", nil, 5*time.Millisecond)
	h.FetchSettled("userPosts:u2", nil, 5*time.Millisecond)
	h.FetchSettled("postByID:p1", feedsync.NotFoundError("getById", "posts", "p1"), time.Millisecond)
	h.FetchDeduped("userPosts:u1")

	if got := testutil.ToFloat64(h.fetches.WithLabelValues("userPosts", "ok")); got != 2 {
		t.Fatalf("userPosts ok=%v want 2", got)
	}
	if got := testutil.ToFloat64(h.fetches.WithLabelValues("postByID", "not_found")); got != 1 {
		t.Fatalf("postByID not_found=%v want 1", got)
	}
	if got := testutil.ToFloat64(h.deduped.WithLabelValues("userPosts")); got != 1 {
		t.Fatalf("deduped=%v", got)
	}
	if n := testutil.CollectAndCount(h.fetchLatency); n != 2 {
		t.Fatalf("latency series=%d want 2", n)
	}
}

func TestInvalidationMutationAndToggle(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(WithRegistry(reg))

	h.Invalidated("recentPosts:*", 2, 3)
	h.Invalidated("posts:*", 1, 0)
	h.MutationSettled("likePost", nil)
	h.MutationSettled("likePost", feedsync.NetworkError("mutate:likePost", "posts", errors.New("offline")))
	h.ToggleReverted(errors.New("offline"))
	h.EntryDiscarded("posts", "swept")

	if got := testutil.ToFloat64(h.invalidated); got != 2 {
		t.Fatalf("invalidations=%v", got)
	}
	if got := testutil.ToFloat64(h.affected.WithLabelValues("refetched")); got != 3 {
		t.Fatalf("refetched=%v want 3", got)
	}
	if got := testutil.ToFloat64(h.affected.WithLabelValues("discarded")); got != 3 {
		t.Fatalf("discarded=%v want 3", got)
	}
	if got := testutil.ToFloat64(h.mutations.WithLabelValues("likePost", "network")); got != 1 {
		t.Fatalf("network mutations=%v", got)
	}
	if got := testutil.ToFloat64(h.reverts); got != 1 {
		t.Fatalf("reverts=%v", got)
	}
	if got := testutil.ToFloat64(h.discarded.WithLabelValues("swept")); got != 1 {
		t.Fatalf("swept=%v", got)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("gather: %v", err)
	}
}
