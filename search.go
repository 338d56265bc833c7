package feedsync

import (
	"context"
	"errors"
	"sync"
	"time"
)

// SearchState is a copy of a Search's state.
type SearchState[T any] struct {
	Raw       string // updated on every keystroke
	Debounced string // Raw once it has been stable for the debounce window
	Active    bool   // Debounced != ""
	Loading   bool
	Results   []T
	Err       error
	NoResults bool // the query for Debounced finished with zero results
}

// SearchOptions configure a Search. Key and Query are required.
type SearchOptions[T any] struct {
	Key      Key // base key; queries extend it with the term
	Query    func(ctx context.Context, term string) ([]T, error)
	Debounce time.Duration // 0 => 500ms
	OnChange func(SearchState[T])
}

// Search is a debounced term query that overrides a feed's display while
// its debounced term is non-empty. Every SetTerm restarts the window, so a
// burst of edits issues a single query carrying the last term.
type Search[T any] struct {
	store    *Store
	key      Key
	query    func(ctx context.Context, term string) ([]T, error)
	window   time.Duration
	onChange func(SearchState[T])

	mu        sync.Mutex
	timer     *time.Timer
	raw       string
	debounced string
	loading   bool
	results   []T
	settled   bool
	err       error
	seq       uint64
	armed     uint64 // bumped on every SetTerm; a timer from an older window is stale
	closed    bool
}

func NewSearch[T any](s *Store, opts SearchOptions[T]) (*Search[T], error) {
	if s == nil {
		return nil, errors.New("feedsync: search needs a store")
	}
	if opts.Key.Resource() == "" {
		return nil, errors.New("feedsync: search key is required")
	}
	if opts.Query == nil {
		return nil, errors.New("feedsync: search query is required")
	}
	return &Search[T]{
		store:    s,
		key:      opts.Key,
		query:    opts.Query,
		window:   coalesce(opts.Debounce, defaultDebounce),
		onChange: opts.OnChange,
	}, nil
}

// SetTerm records term and restarts the debounce window.
func (s *Search[T]) SetTerm(term string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.raw = term
	if s.timer != nil {
		s.timer.Stop()
	}
	s.armed++
	armed := s.armed
	s.timer = time.AfterFunc(s.window, func() { s.fire(armed) })
	snap := s.stateLocked()
	s.mu.Unlock()
	s.emit(snap)
}

// fire runs when the debounce window armed by SetTerm elapses. A term equal
// to the debounced one is queried again only if its last query failed.
func (s *Search[T]) fire(armed uint64) {
	s.mu.Lock()
	if s.closed || armed != s.armed || (s.raw == s.debounced && s.err == nil) {
		s.mu.Unlock()
		return
	}
	term, seq, snap := s.beginLocked(s.raw)
	s.mu.Unlock()
	s.emit(snap)
	s.run(term, seq)
}

// Retry queries the debounced term again and blocks until it settles. It is
// a no-op while the search is inactive.
func (s *Search[T]) Retry() {
	s.mu.Lock()
	if s.closed || s.debounced == "" {
		s.mu.Unlock()
		return
	}
	term, seq, snap := s.beginLocked(s.debounced)
	s.mu.Unlock()
	s.emit(snap)
	s.run(term, seq)
}

func (s *Search[T]) beginLocked(term string) (string, uint64, SearchState[T]) {
	s.debounced = term
	s.seq++
	s.results = nil
	s.settled = false
	s.err = nil
	s.loading = term != ""
	return term, s.seq, s.stateLocked()
}

func (s *Search[T]) run(term string, seq uint64) {
	if term == "" {
		return
	}

	res, err := Fetch(context.Background(), s.store, s.key.With(term), func(ctx context.Context) ([]T, error) {
		return s.query(ctx, term)
	})

	s.mu.Lock()
	if seq != s.seq || s.closed {
		// a newer term took over
		s.mu.Unlock()
		return
	}
	s.loading = false
	if err != nil {
		s.err = err
	} else {
		s.results = res
		s.settled = true
	}
	snap := s.stateLocked()
	s.mu.Unlock()
	s.emit(snap)
}

// Active reports whether search results currently replace the feed.
func (s *Search[T]) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.debounced != ""
}

// NoResults reports whether the current term finished with an empty result
// set. It is false while loading.
func (s *Search[T]) NoResults() bool { return s.State().NoResults }

func (s *Search[T]) State() SearchState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Close stops the pending debounce timer. Later SetTerm calls are ignored.
func (s *Search[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Search[T]) stateLocked() SearchState[T] {
	return SearchState[T]{
		Raw:       s.raw,
		Debounced: s.debounced,
		Active:    s.debounced != "",
		Loading:   s.loading,
		Results:   append([]T(nil), s.results...),
		Err:       s.err,
		NoResults: s.debounced != "" && s.settled && len(s.results) == 0,
	}
}

func (s *Search[T]) emit(st SearchState[T]) {
	if s.onChange != nil {
		s.onChange(st)
	}
}
