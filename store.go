package feedsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type entry struct {
	key       Key
	data      any
	status    Status
	err       error
	stale     bool
	updatedAt time.Time
	touchedAt time.Time

	// gen is bumped on every invalidation. A fetch that settles with an
	// older gen than the entry's current one is discarded.
	gen    uint64
	loader Loader
	subs   map[uint64]func(Entry)
}

func (e *entry) snapshot() Entry {
	return Entry{
		Key:         e.key,
		Data:        e.data,
		Status:      e.status,
		Subscribers: len(e.subs),
		Err:         e.err,
		Stale:       e.stale,
		UpdatedAt:   e.updatedAt,
	}
}

// listeners returns subscriber callbacks in subscription order.
func (e *entry) listeners() []func(Entry) {
	if len(e.subs) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]func(Entry), len(ids))
	for i, id := range ids {
		out[i] = e.subs[id]
	}
	return out
}

// Store is a keyed store of query results with subscriber tracking and
// in-flight request deduplication. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSub uint64
	flights singleflight.Group

	log          Logger
	hooks        Hooks
	fetchTimeout time.Duration
	sweepEvery   time.Duration

	// background sweep of entries nobody subscribed to
	ticker    *time.Ticker
	stopCh    chan struct{}
	closeWg   sync.WaitGroup
	closeOnce sync.Once
}

func newStore(opts Options) *Store {
	s := &Store{
		entries: make(map[string]*entry),
	}
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.fetchTimeout = coalesce(opts.FetchTimeout, defaultFetchTimeout)
	s.sweepEvery = coalesce(opts.SweepInterval, defaultSweep)

	if !opts.DisableSweep {
		s.ticker = time.NewTicker(s.sweepEvery)
		s.stopCh = make(chan struct{})
		s.closeWg.Add(1)
		go s.sweepLoop()
	}
	return s
}

// Close stops the sweep loop. Safe to call multiple times.
func (s *Store) Close(context.Context) error {
	s.closeOnce.Do(func() {
		if s.stopCh != nil {
			close(s.stopCh)
			s.ticker.Stop()
			s.closeWg.Wait()
		}
	})
	return nil
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Read returns a copy of the entry for key, creating an Idle one if absent.
func (s *Store) Read(key Key) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreate(key).snapshot()
}

// must hold s.mu
func (s *Store) getOrCreate(key Key) *entry {
	id := key.id()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{key: key, subs: make(map[uint64]func(Entry))}
		s.entries[id] = e
	}
	e.touchedAt = time.Now()
	return e
}

// Fetch runs loader for key unless a fetch for key is already in flight, in
// which case the caller attaches to it and receives the same result.
// Subscribers are notified when the entry enters Fetching and again when it
// settles. A failed fetch keeps the previous data and records the error.
//
// Cancelling ctx releases the caller but does not abort the loader.
func (s *Store) Fetch(ctx context.Context, key Key, loader Loader) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("feedsync: nil loader for %s", key)
	}
	id := key.id()

	s.mu.Lock()
	e := s.getOrCreate(key)
	e.loader = loader
	// invalidation re-fetches enter Fetching before their flight starts
	inflight := e.status == StatusFetching && !e.stale
	s.mu.Unlock()
	if inflight {
		s.hooks.FetchDeduped(key.String())
	}

	ch := s.flights.DoChan(id, func() (any, error) {
		return s.run(context.WithoutCancel(ctx), key, loader)
	})
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Fetch is the typed form of Store.Fetch.
func Fetch[T any](ctx context.Context, s *Store, key Key, load func(context.Context) (T, error)) (T, error) {
	var zero T
	v, err := s.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok && v != nil {
		return zero, fmt.Errorf("feedsync: %s holds %T, want %T", key, v, zero)
	}
	return t, nil
}

// run is the body of one in-flight fetch.
func (s *Store) run(ctx context.Context, key Key, loader Loader) (any, error) {
	id := key.id()

	s.mu.Lock()
	e, ok := s.entries[id]
	var (
		gen       uint64
		notify    []func(Entry)
		snap      Entry
		announced bool
	)
	if ok {
		gen = e.gen
		if e.status != StatusFetching {
			e.status = StatusFetching
			notify = e.listeners()
			snap = e.snapshot()
			announced = true
		}
	}
	s.mu.Unlock()
	if announced {
		deliver(notify, snap)
	}

	s.hooks.FetchStarted(key.String())
	start := time.Now()

	lctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	v, err := loader(lctx)
	cancel()
	if err != nil && errors.Is(err, context.DeadlineExceeded) && KindOf(err) == 0 {
		err = NetworkError("fetch", key.Resource(), err)
	}
	took := time.Since(start)

	if ok {
		s.settle(key, gen, v, err)
	}
	s.hooks.FetchSettled(key.String(), err, took)
	return v, err
}

func (s *Store) settle(key Key, gen uint64, v any, err error) {
	s.mu.Lock()
	e, ok := s.entries[key.id()]
	if !ok || e.gen != gen {
		s.mu.Unlock()
		s.hooks.EntryDiscarded(key.String(), "stale_settle")
		s.log.Debug("fetch settled after invalidation; dropped", Fields{"key": key.String(), "gen": gen})
		return
	}
	if err != nil {
		e.status = StatusError
		e.err = err
	} else {
		e.data = v
		e.status = StatusReady
		e.err = nil
		e.stale = false
		e.updatedAt = time.Now()
	}
	notify := e.listeners()
	snap := e.snapshot()
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("fetch failed", Fields{"key": key.String(), "err": err})
	}
	deliver(notify, snap)
}

func deliver(fns []func(Entry), e Entry) {
	for _, fn := range fns {
		fn(e)
	}
}

// Subscription is returned by Subscribe.
type Subscription struct {
	s    *Store
	key  Key
	id   uint64
	once sync.Once
}

// Subscribe registers fn for change notifications on key. fn is called
// synchronously from the goroutine that changed the entry and must not block.
// The current state is not replayed; use Read for that.
func (s *Store) Subscribe(key Key, fn func(Entry)) *Subscription {
	s.mu.Lock()
	e := s.getOrCreate(key)
	s.nextSub++
	id := s.nextSub
	e.subs[id] = fn
	s.mu.Unlock()
	return &Subscription{s: s, key: key, id: id}
}

// Unsubscribe stops delivery to this subscription. The last unsubscribe for
// a key removes its entry; an in-flight fetch keeps running and its result is
// dropped. Safe to call multiple times.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		sub.s.unsubscribe(sub.key, sub.id)
	})
}

func (s *Store) unsubscribe(key Key, subID uint64) {
	id := key.id()
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(e.subs, subID)
	removed := len(e.subs) == 0
	if removed {
		delete(s.entries, id)
	}
	s.mu.Unlock()

	if removed {
		s.hooks.EntryDiscarded(key.String(), "unsubscribed")
	}
}

type refetch struct {
	key    Key
	loader Loader
}

// Invalidate marks every entry matching p as stale. Entries with subscribers
// move to Fetching and are re-fetched in the background with their last
// loader; entries without subscribers are discarded.
func (s *Store) Invalidate(ctx context.Context, p Pattern) (refetched, discarded int) {
	jobs, discarded := s.invalidate(p)
	for _, j := range jobs {
		j := j
		go func() {
			_, _ = s.Fetch(context.WithoutCancel(ctx), j.key, j.loader)
		}()
	}
	return len(jobs), discarded
}

// Refresh is Invalidate that waits for the triggered re-fetches and returns
// the first error among them.
func (s *Store) Refresh(ctx context.Context, p Pattern) error {
	jobs, _ := s.invalidate(p)
	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			_, err := s.Fetch(gctx, j.key, j.loader)
			return err
		})
	}
	return g.Wait()
}

// invalidate applies p and returns the entries that need a re-fetch along
// with the number of entries dropped.
func (s *Store) invalidate(p Pattern) ([]refetch, int) {
	type note struct {
		fns  []func(Entry)
		snap Entry
	}
	var (
		jobs      []refetch
		notes     []note
		discarded []string
	)

	s.mu.Lock()
	for id, e := range s.entries {
		if !p.Match(e.key) {
			continue
		}
		e.gen++
		s.flights.Forget(id)

		if len(e.subs) == 0 {
			delete(s.entries, id)
			discarded = append(discarded, e.key.String())
			continue
		}
		e.stale = true
		if e.loader != nil {
			e.status = StatusFetching
			jobs = append(jobs, refetch{key: e.key, loader: e.loader})
		}
		notes = append(notes, note{fns: e.listeners(), snap: e.snapshot()})
	}
	s.mu.Unlock()

	for _, k := range discarded {
		s.hooks.EntryDiscarded(k, "invalidated")
	}
	for _, n := range notes {
		deliver(n.fns, n.snap)
	}
	s.hooks.Invalidated(p.String(), len(jobs), len(discarded))
	s.log.Debug("invalidated", Fields{"pattern": p.String(), "refetched": len(jobs), "discarded": len(discarded)})
	return jobs, len(discarded)
}

func (s *Store) sweepLoop() {
	defer s.closeWg.Done()
	for {
		select {
		case <-s.ticker.C:
			s.sweep(time.Now().Add(-s.sweepEvery))
		case <-s.stopCh:
			return
		}
	}
}

// sweep removes unsubscribed, settled entries last touched before cutoff.
func (s *Store) sweep(cutoff time.Time) {
	var removed []string

	s.mu.Lock()
	for id, e := range s.entries {
		if len(e.subs) > 0 || e.status == StatusFetching {
			continue
		}
		if e.touchedAt.Before(cutoff) {
			delete(s.entries, id)
			removed = append(removed, e.key.String())
		}
	}
	s.mu.Unlock()

	for _, k := range removed {
		s.hooks.EntryDiscarded(k, "swept")
	}
	if len(removed) > 0 {
		s.log.Debug("sweep removed orphan entries", Fields{"removed": len(removed)})
	}
}
