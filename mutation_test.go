package feedsync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func newTestExecutor(t *testing.T, s *Store, w Writer, hooks Hooks, optsOpt func(*ExecutorOptions)) *Executor {
	t.Helper()
	opts := ExecutorOptions{Writer: w, Hooks: hooks}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	x, err := NewExecutor(s, opts)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return x
}

// versioned subscribes to key, loads version 1 and returns the entry stream.
func versioned(t *testing.T, s *Store, key Key) (<-chan Entry, *atomic.Int32) {
	t.Helper()
	var version atomic.Int32
	ch, _ := entryRecorder(t, s, key)
	if _, err := s.Fetch(context.Background(), key, func(context.Context) (any, error) {
		return int(version.Add(1)), nil
	}); err != nil {
		t.Fatal(err)
	}
	waitStatus(t, ch, StatusReady)
	return ch, &version
}

func TestExecuteSuccessInvalidates(t *testing.T) {
	hooks := newRecHooks()
	s := newTestStore(t, hooks, nil)
	recent := NewKey("recentPosts")
	ch, _ := versioned(t, s, recent)

	var writes atomic.Int32
	w := WriterFunc(func(_ context.Context, m Mutation) (any, error) {
		writes.Add(1)
		return "post-" + m.Payload.(string), nil
	})
	x := newTestExecutor(t, s, w, hooks, nil)

	v, err := Exec[string](context.Background(), x, Mutation{
		Op:          "createPost",
		Resource:    "posts",
		Payload:     "42",
		Invalidates: []Pattern{ResourcePattern("recentPosts")},
	})
	if err != nil || v != "post-42" {
		t.Fatalf("Exec = (%q, %v)", v, err)
	}
	if writes.Load() != 1 {
		t.Fatalf("writes=%d want 1", writes.Load())
	}

	if e := waitFor(t, ch, "stale"); e.Status != StatusFetching || !e.Stale {
		t.Fatalf("subscriber saw %+v want stale fetching", e)
	}
	if e := waitStatus(t, ch, StatusReady); e.Data != 2 {
		t.Fatalf("refetched data=%v want 2", e.Data)
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.mutations) != 1 || hooks.mutations[0] != "createPost" {
		t.Fatalf("mutation hooks=%v", hooks.mutations)
	}
}

func TestExecuteFailureLeavesStoreUntouched(t *testing.T) {
	hooks := newRecHooks()
	s := newTestStore(t, hooks, nil)
	recent := NewKey("recentPosts")
	_, _ = versioned(t, s, recent)

	var writes atomic.Int32
	w := WriterFunc(func(context.Context, Mutation) (any, error) {
		writes.Add(1)
		return nil, ValidationError("mutate:createPost", "posts", errors.New("caption too long"))
	})
	x := newTestExecutor(t, s, w, hooks, nil)

	_, err := x.Execute(context.Background(), Mutation{
		Op:          "createPost",
		Resource:    "posts",
		Invalidates: []Pattern{ResourcePattern("recentPosts")},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
	if writes.Load() != 1 {
		t.Fatalf("writes=%d want exactly 1 (no retry)", writes.Load())
	}
	e := s.Read(recent)
	if e.Status != StatusReady || e.Stale || e.Data != 1 {
		t.Fatalf("entry=%+v want untouched", e)
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.mutations) != 1 || hooks.mutations[0] != "createPost:err" {
		t.Fatalf("mutation hooks=%v", hooks.mutations)
	}
}

func TestExecuteAwaitRefetch(t *testing.T) {
	s := newTestStore(t, nil, nil)
	user := NewKey("currentUser")
	_, _ = versioned(t, s, user)

	x := newTestExecutor(t, s, nil, nil, func(o *ExecutorOptions) { o.AwaitRefetch = true })
	_, err := x.Execute(context.Background(), Mutation{
		Op:          "likePost",
		Resource:    "posts",
		Do:          func(context.Context) (any, error) { return nil, nil },
		Invalidates: []Pattern{ResourcePattern("currentUser")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if e := s.Read(user); e.Status != StatusReady || e.Data != 2 {
		t.Fatalf("entry=%+v want refreshed before Execute returns", e)
	}
}

func TestExecuteTimeoutIsNetworkError(t *testing.T) {
	s := newTestStore(t, nil, nil)
	x := newTestExecutor(t, s, nil, nil, func(o *ExecutorOptions) { o.Timeout = 20 * time.Millisecond })
	_, err := x.Execute(context.Background(), Mutation{
		Op:       "attendBooking",
		Resource: "bookings",
		Do: func(ctx context.Context) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("err=%v want ErrNetwork", err)
	}
}

func TestExecuteWithoutWriter(t *testing.T) {
	s := newTestStore(t, nil, nil)
	x := newTestExecutor(t, s, nil, nil, nil)
	if _, err := x.Execute(context.Background(), Mutation{Op: "deletePost"}); err == nil {
		t.Fatalf("mutation without writer succeeded")
	}
	if _, err := NewExecutor(nil, ExecutorOptions{}); err == nil {
		t.Fatalf("nil store accepted")
	}
}

func TestExecTypeMismatch(t *testing.T) {
	s := newTestStore(t, nil, nil)
	x := newTestExecutor(t, s, nil, nil, nil)
	_, err := Exec[string](context.Background(), x, Mutation{
		Op: "updateUser",
		Do: func(context.Context) (any, error) { return 7, nil },
	})
	if err == nil {
		t.Fatalf("want type mismatch error")
	}
}
