package feedsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recHooks records the events tests wait on.
type recHooks struct {
	NopHooks

	mu        sync.Mutex
	started   int
	deduped   chan string
	discarded chan string // "key|reason"
	settled   chan string
	mutations []string
	reverted  int
}

func newRecHooks() *recHooks {
	return &recHooks{
		deduped:   make(chan string, 64),
		discarded: make(chan string, 64),
		settled:   make(chan string, 64),
	}
}

func (h *recHooks) FetchStarted(string) {
	h.mu.Lock()
	h.started++
	h.mu.Unlock()
}
func (h *recHooks) FetchDeduped(key string) { offer(h.deduped, key) }
func (h *recHooks) FetchSettled(key string, _ error, _ time.Duration) {
	offer(h.settled, key)
}
func (h *recHooks) EntryDiscarded(key, reason string) { offer(h.discarded, key+"|"+reason) }
func (h *recHooks) MutationSettled(op string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		op += ":err"
	}
	h.mutations = append(h.mutations, op)
}
func (h *recHooks) ToggleReverted(error) {
	h.mu.Lock()
	h.reverted++
	h.mu.Unlock()
}

// offer never blocks the store on a full test channel.
func offer(ch chan string, v string) {
	select {
	case ch <- v:
	default:
	}
}

func (h *recHooks) startedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.started
}

func newTestStore(t *testing.T, hooks Hooks, optsOpt func(*Options)) *Store {
	t.Helper()
	opts := Options{Hooks: hooks, DisableSweep: true}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s := New(opts)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
	var zero T
	return zero
}

// entryRecorder subscribes to key and forwards every delivered Entry.
func entryRecorder(t *testing.T, s *Store, key Key) (<-chan Entry, *Subscription) {
	t.Helper()
	ch := make(chan Entry, 64)
	sub := s.Subscribe(key, func(e Entry) { ch <- e })
	t.Cleanup(sub.Unsubscribe)
	return ch, sub
}

func waitStatus(t *testing.T, ch <-chan Entry, want Status) Entry {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Status == want {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		}
	}
}

// ==============================
// Fetch / dedup
// ==============================

func TestFetchDedupSharesOneLoader(t *testing.T) {
	hooks := newRecHooks()
	s := newTestStore(t, hooks, nil)
	key := NewKey("posts", "p1")

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "post-1", nil
	}

	type res struct {
		v   any
		err error
	}
	out := make(chan res, 2)
	go func() {
		v, err := s.Fetch(context.Background(), key, loader)
		out <- res{v, err}
	}()
	<-started
	go func() {
		v, err := s.Fetch(context.Background(), key, loader)
		out <- res{v, err}
	}()

	if got := waitFor(t, hooks.deduped, "dedup"); got != key.String() {
		t.Fatalf("deduped key=%q want %q", got, key.String())
	}
	// let the second caller reach the in-flight group
	time.Sleep(50 * time.Millisecond)
	close(release)

	for i := 0; i < 2; i++ {
		r := waitFor(t, out, "fetch result")
		if r.err != nil || r.v != "post-1" {
			t.Fatalf("fetch %d = (%v, %v)", i, r.v, r.err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("loader calls=%d want 1", n)
	}
	if n := hooks.startedCount(); n != 1 {
		t.Fatalf("FetchStarted=%d want 1", n)
	}
}

func TestFetchNotifiesSubscribers(t *testing.T) {
	s := newTestStore(t, nil, nil)
	key := NewKey("posts", "p1")
	ch, _ := entryRecorder(t, s, key)

	v, err := s.Fetch(context.Background(), key, func(context.Context) (any, error) { return "v1", nil })
	if err != nil || v != "v1" {
		t.Fatalf("Fetch = (%v, %v)", v, err)
	}

	first := waitFor(t, ch, "fetching")
	if first.Status != StatusFetching {
		t.Fatalf("first status=%s want fetching", first.Status)
	}
	second := waitFor(t, ch, "ready")
	if second.Status != StatusReady || second.Data != "v1" || second.Subscribers != 1 {
		t.Fatalf("second=%+v", second)
	}
	if second.UpdatedAt.IsZero() {
		t.Fatalf("UpdatedAt not set")
	}
}

func TestFetchErrorKeepsPreviousData(t *testing.T) {
	s := newTestStore(t, nil, nil)
	key := NewKey("users", "u1")
	_, _ = entryRecorder(t, s, key)

	if _, err := s.Fetch(context.Background(), key, func(context.Context) (any, error) { return "alice", nil }); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	boom := NetworkError("getById", "users", errors.New("connection reset"))
	_, err := s.Fetch(context.Background(), key, func(context.Context) (any, error) { return nil, boom })
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("err=%v want ErrNetwork", err)
	}

	e := s.Read(key)
	if e.Status != StatusError {
		t.Fatalf("status=%s want error", e.Status)
	}
	if e.Data != "alice" {
		t.Fatalf("data=%v want previous value kept", e.Data)
	}
	if !errors.Is(e.Err, boom) {
		t.Fatalf("entry err=%v", e.Err)
	}
}

func TestFetchTimeoutIsNetworkError(t *testing.T) {
	s := newTestStore(t, nil, func(o *Options) { o.FetchTimeout = 20 * time.Millisecond })
	key := NewKey("posts")
	_, _ = entryRecorder(t, s, key)

	_, err := s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, ErrNetwork) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err=%v want network error wrapping deadline", err)
	}
	if st := s.Read(key).Status; st != StatusError {
		t.Fatalf("status=%s want error", st)
	}
}

func TestCallerCancelDoesNotAbortLoader(t *testing.T) {
	hooks := newRecHooks()
	s := newTestStore(t, hooks, nil)
	key := NewKey("bookings", "b1")

	release := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Fetch(ctx, key, func(lctx context.Context) (any, error) {
			<-release
			if lctx.Err() != nil {
				return nil, lctx.Err()
			}
			return "booking", nil
		})
		done <- err
	}()

	cancel()
	if err := waitFor(t, done, "cancelled caller"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
	close(release)
	waitFor(t, hooks.settled, "settle")

	e := s.Read(key)
	if e.Status != StatusReady || e.Data != "booking" {
		t.Fatalf("entry=%+v want ready booking", e)
	}
}

func TestTypedFetchAndValue(t *testing.T) {
	s := newTestStore(t, nil, nil)
	key := NewKey("posts")
	if _, err := s.Fetch(context.Background(), key, func(context.Context) (any, error) { return 42, nil }); err != nil {
		t.Fatal(err)
	}
	_, err := Fetch(context.Background(), s, key, func(context.Context) (int, error) { return 7, nil })
	if err != nil {
		t.Fatalf("typed fetch: %v", err)
	}
	if v, ok := Value[int](s.Read(key)); !ok || v != 7 {
		t.Fatalf("Value=%v,%v", v, ok)
	}
	if _, ok := Value[string](s.Read(key)); ok {
		t.Fatalf("Value[string] on int data should fail")
	}
}

// ==============================
// Invalidation
// ==============================

func TestInvalidatePropagation(t *testing.T) {
	hooks := newRecHooks()
	s := newTestStore(t, hooks, nil)
	subscribed := NewKey("recentPosts")
	orphan := NewKey("recentPosts", "20")
	other := NewKey("currentUser")

	var version atomic.Int32
	loader := func(context.Context) (any, error) { return int(version.Add(1)), nil }

	ch, _ := entryRecorder(t, s, subscribed)
	if _, err := s.Fetch(context.Background(), subscribed, loader); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, ch, StatusReady)
	if _, err := s.Fetch(context.Background(), orphan, loader); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Fetch(context.Background(), other, loader); err != nil {
		t.Fatal(err)
	}

	refetched, discarded := s.Invalidate(context.Background(), ResourcePattern("recentPosts"))
	if refetched != 1 || discarded != 1 {
		t.Fatalf("Invalidate = (%d, %d) want (1, 1)", refetched, discarded)
	}

	// the stale Fetching notification is delivered synchronously
	e := waitFor(t, ch, "stale notification")
	if e.Status != StatusFetching || !e.Stale {
		t.Fatalf("after invalidate=%+v want stale fetching", e)
	}
	if got := waitFor(t, hooks.discarded, "discard"); got != orphan.String()+"|invalidated" {
		t.Fatalf("discarded=%q", got)
	}

	e = waitStatus(t, ch, StatusReady)
	if e.Stale {
		t.Fatalf("refetched entry still stale")
	}
	if e.Data.(int) <= 1 {
		t.Fatalf("data=%v want a newer version", e.Data)
	}
	if s.Len() != 2 {
		t.Fatalf("Len=%d want 2 (subscribed + unmatched)", s.Len())
	}
	if st := s.Read(other).Status; st != StatusReady {
		t.Fatalf("unmatched key status=%s", st)
	}
}

func TestInvalidateDropsStaleSettlement(t *testing.T) {
	hooks := newRecHooks()
	s := newTestStore(t, hooks, nil)
	key := NewKey("postByID", "p1")
	ch, _ := entryRecorder(t, s, key)

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	loader := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "old", nil
		}
		return "new", nil
	}

	go func() { _, _ = s.Fetch(context.Background(), key, loader) }()
	<-started

	s.Invalidate(context.Background(), KeyPattern(key))
	e := waitStatus(t, ch, StatusReady)
	if e.Data != "new" {
		t.Fatalf("refetch data=%v want new", e.Data)
	}

	close(release)
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-hooks.discarded:
			if got != key.String()+"|stale_settle" {
				continue
			}
		case <-deadline:
			t.Fatalf("old settlement was not dropped")
		}
		break
	}
	if got := s.Read(key).Data; got != "new" {
		t.Fatalf("data=%v want new (old settlement must not overwrite)", got)
	}
}

func TestRefreshWaitsForRefetch(t *testing.T) {
	s := newTestStore(t, nil, nil)
	key := NewKey("userBookings", "u1")
	_, _ = entryRecorder(t, s, key)

	var version atomic.Int32
	loader := func(context.Context) (any, error) { return int(version.Add(1)), nil }
	if _, err := s.Fetch(context.Background(), key, loader); err != nil {
		t.Fatal(err)
	}
	if err := s.Refresh(context.Background(), ResourcePattern("userBookings")); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	e := s.Read(key)
	if e.Status != StatusReady || e.Data != 2 || e.Stale {
		t.Fatalf("after refresh=%+v", e)
	}
}

func TestRefreshReturnsRefetchError(t *testing.T) {
	s := newTestStore(t, nil, nil)
	key := NewKey("userBookings", "u1")
	_, _ = entryRecorder(t, s, key)

	var fail atomic.Bool
	loader := func(context.Context) (any, error) {
		if fail.Load() {
			return nil, NetworkError("fetch", "userBookings", errors.New("offline"))
		}
		return "ok", nil
	}
	if _, err := s.Fetch(context.Background(), key, loader); err != nil {
		t.Fatal(err)
	}
	fail.Store(true)
	if err := s.Refresh(context.Background(), ResourcePattern("userBookings")); !errors.Is(err, ErrNetwork) {
		t.Fatalf("Refresh err=%v want ErrNetwork", err)
	}
	if e := s.Read(key); e.Status != StatusError || e.Data != "ok" {
		t.Fatalf("entry=%+v want error status with old data", e)
	}
}

// ==============================
// Subscriptions / lifecycle
// ==============================

func TestLastUnsubscribeRemovesEntry(t *testing.T) {
	hooks := newRecHooks()
	s := newTestStore(t, hooks, nil)
	key := NewKey("currentUser")

	a := s.Subscribe(key, func(Entry) {})
	b := s.Subscribe(key, func(Entry) {})
	if n := s.Read(key).Subscribers; n != 2 {
		t.Fatalf("subscribers=%d want 2", n)
	}

	a.Unsubscribe()
	a.Unsubscribe() // idempotent
	if n := s.Read(key).Subscribers; n != 1 {
		t.Fatalf("subscribers=%d want 1", n)
	}

	b.Unsubscribe()
	if s.Len() != 0 {
		t.Fatalf("Len=%d want 0", s.Len())
	}
	if got := waitFor(t, hooks.discarded, "discard"); got != key.String()+"|unsubscribed" {
		t.Fatalf("discarded=%q", got)
	}
}

func TestUnsubscribeDuringFetchKeepsCallRunning(t *testing.T) {
	hooks := newRecHooks()
	s := newTestStore(t, hooks, nil)
	key := NewKey("posts", "p9")
	sub := s.Subscribe(key, func(Entry) {})

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan any, 1)
	go func() {
		v, _ := s.Fetch(context.Background(), key, func(context.Context) (any, error) {
			close(started)
			<-release
			return "late", nil
		})
		done <- v
	}()
	<-started
	sub.Unsubscribe()
	close(release)

	if v := waitFor(t, done, "fetch"); v != "late" {
		t.Fatalf("caller got %v want late", v)
	}
	if s.Len() != 0 {
		t.Fatalf("settlement recreated the entry: Len=%d", s.Len())
	}
}

func TestSweepRemovesOrphans(t *testing.T) {
	s := newTestStore(t, nil, nil)
	kept := NewKey("posts", "kept")
	orphan := NewKey("posts", "orphan")
	s.Subscribe(kept, func(Entry) {})
	_ = s.Read(orphan)

	s.sweep(time.Now().Add(time.Second))

	if s.Len() != 1 {
		t.Fatalf("Len=%d want 1", s.Len())
	}
	if n := s.Read(kept).Subscribers; n != 1 {
		t.Fatalf("subscribed entry swept")
	}
}

func TestCloseIdempotent(t *testing.T) {
	s := New(Options{SweepInterval: 10 * time.Millisecond})
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

// ==============================
// Keys / patterns
// ==============================

func TestPatternMatch(t *testing.T) {
	post := NewKey("postByID", "p1")
	tests := []struct {
		name string
		p    Pattern
		k    Key
		want bool
	}{
		{"resource matches bare key", ResourcePattern("posts"), NewKey("posts"), true},
		{"resource matches any params", ResourcePattern("posts"), NewKey("posts", "a", "b"), true},
		{"resource mismatch", ResourcePattern("posts"), NewKey("users"), false},
		{"key pattern exact", KeyPattern(post), post, true},
		{"key pattern extension", KeyPattern(post), post.With("comments"), true},
		{"key pattern sibling", KeyPattern(post), NewKey("postByID", "p2"), false},
		{"prefix longer than key", PrefixPattern("posts", "a", "b"), NewKey("posts", "a"), false},
		{"prefix param boundary", PrefixPattern("posts", "a"), NewKey("posts", "ab"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Match(tt.k); got != tt.want {
				t.Fatalf("%s.Match(%s)=%v want %v", tt.p, tt.k, got, tt.want)
			}
		})
	}
}

func TestKeyEqualityAndRendering(t *testing.T) {
	a := NewKey("searchPosts", "search", "cats")
	b := NewKey("searchPosts").With("search", "cats")
	if a != b {
		t.Fatalf("structurally equal keys differ: %#v vs %#v", a, b)
	}
	if a.String() != "searchPosts:search:cats" {
		t.Fatalf("String=%q", a.String())
	}
	if got := ResourcePattern("posts").String(); got != "posts:*" {
		t.Fatalf("pattern String=%q", got)
	}
	if p := NewKey("posts").Params(); p != nil {
		t.Fatalf("Params=%v want nil", p)
	}
}
