package feedsync

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mutation is one remote write plus the cache keys it makes stale.
type Mutation struct {
	Op          string
	Resource    string
	Payload     any
	Invalidates []Pattern

	// Do replaces the executor's Writer for this call. Use it for writes
	// that need a read first (e.g. membership checks).
	Do func(ctx context.Context) (any, error)
}

// Writer performs remote writes.
type Writer interface {
	Write(ctx context.Context, m Mutation) (any, error)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, m Mutation) (any, error)

func (f WriterFunc) Write(ctx context.Context, m Mutation) (any, error) { return f(ctx, m) }

// ExecutorOptions tune an Executor.
type ExecutorOptions struct {
	Writer  Writer        // used when Mutation.Do is nil
	Logger  Logger        // if nil, NopLogger is used
	Hooks   Hooks         // if nil, NopHooks is used
	Timeout time.Duration // per write; 0 => 30s

	// AwaitRefetch makes Execute wait for re-fetches triggered by the
	// invalidation set. Re-fetch errors are logged, never returned.
	AwaitRefetch bool
}

// Executor runs remote writes and applies their invalidation sets.
// It never writes into cache entries: invalidation is the only way a write
// becomes visible to reads. Writes are not retried.
type Executor struct {
	store   *Store
	writer  Writer
	log     Logger
	hooks   Hooks
	timeout time.Duration
	await   bool
}

func NewExecutor(s *Store, opts ExecutorOptions) (*Executor, error) {
	if s == nil {
		return nil, errors.New("feedsync: executor needs a store")
	}
	return &Executor{
		store:   s,
		writer:  opts.Writer,
		log:     coalesce[Logger](opts.Logger, NopLogger{}),
		hooks:   coalesce[Hooks](opts.Hooks, NopHooks{}),
		timeout: coalesce(opts.Timeout, defaultFetchTimeout),
		await:   opts.AwaitRefetch,
	}, nil
}

// Execute performs m exactly once. On success every pattern in m.Invalidates
// is applied to the store; on failure the store is left untouched and the
// error is returned.
func (x *Executor) Execute(ctx context.Context, m Mutation) (any, error) {
	do := m.Do
	if do == nil {
		if x.writer == nil {
			return nil, fmt.Errorf("feedsync: no writer for mutation %q", m.Op)
		}
		do = func(ctx context.Context) (any, error) { return x.writer.Write(ctx, m) }
	}

	wctx, cancel := context.WithTimeout(ctx, x.timeout)
	v, err := do(wctx)
	cancel()
	if err != nil && errors.Is(err, context.DeadlineExceeded) && KindOf(err) == 0 {
		err = NetworkError("mutate:"+m.Op, m.Resource, err)
	}
	x.hooks.MutationSettled(m.Op, err)
	if err != nil {
		x.log.Warn("mutation failed", Fields{"op": m.Op, "resource": m.Resource, "err": err})
		return nil, err
	}

	for _, p := range m.Invalidates {
		if x.await {
			if rerr := x.store.Refresh(ctx, p); rerr != nil {
				x.log.Warn("refetch after mutation failed", Fields{"op": m.Op, "pattern": p.String(), "err": rerr})
			}
			continue
		}
		x.store.Invalidate(ctx, p)
	}
	x.log.Debug("mutation applied", Fields{"op": m.Op, "resource": m.Resource, "invalidated": len(m.Invalidates)})
	return v, nil
}

// Exec is the typed form of Executor.Execute.
func Exec[T any](ctx context.Context, x *Executor, m Mutation) (T, error) {
	var zero T
	v, err := x.Execute(ctx, m)
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("feedsync: mutation %q returned %T, want %T", m.Op, v, zero)
	}
	return t, nil
}
