package feedsync

import (
	"context"
	"errors"
)

// Mode says which source a Feed is displaying.
type Mode uint8

const (
	ModeFeed Mode = iota
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeSearch {
		return "search"
	}
	return "feed"
}

// View is what a Feed displays right now.
type View[T any] struct {
	Mode      Mode
	Term      string // debounced search term in ModeSearch
	Items     []T
	Loading   bool
	NoResults bool // ModeSearch only: the query returned nothing
	Exhausted bool // ModeFeed only: end of the collection
	Err       error
}

// Feed pairs a Pager with a Search. While the search is active the pager's
// end-of-list trigger is ignored and its pages are left alone; clearing the
// search shows those pages again without reloading them.
type Feed[T any] struct {
	pager  *Pager[T]
	search *Search[T]
}

func NewFeed[T any](p *Pager[T], s *Search[T]) (*Feed[T], error) {
	if p == nil || s == nil {
		return nil, errors.New("feedsync: feed needs a pager and a search")
	}
	return &Feed[T]{pager: p, search: s}, nil
}

func (f *Feed[T]) Pager() *Pager[T]   { return f.pager }
func (f *Feed[T]) Search() *Search[T] { return f.search }

// NearEnd is the end-of-list trigger. It loads the next page unless search
// results are being shown.
func (f *Feed[T]) NearEnd(ctx context.Context) error {
	if f.search.Active() {
		return nil
	}
	return f.pager.FetchNext(ctx)
}

// Retry reloads whatever failed in the current mode: the search query in
// ModeSearch, the next page in ModeFeed.
func (f *Feed[T]) Retry(ctx context.Context) error {
	if f.search.Active() {
		f.search.Retry()
		return nil
	}
	return f.pager.FetchNext(ctx)
}

// SetTerm forwards a keystroke to the search.
func (f *Feed[T]) SetTerm(term string) { f.search.SetTerm(term) }

func (f *Feed[T]) View() View[T] {
	ss := f.search.State()
	if ss.Active {
		return View[T]{
			Mode:      ModeSearch,
			Term:      ss.Debounced,
			Items:     ss.Results,
			Loading:   ss.Loading,
			NoResults: ss.NoResults,
			Err:       ss.Err,
		}
	}
	ps := f.pager.State()
	return View[T]{
		Mode:      ModeFeed,
		Items:     ps.Items(),
		Loading:   ps.Fetching,
		Exhausted: ps.Exhausted,
		Err:       ps.Err,
	}
}

// Close stops the search timer.
func (f *Feed[T]) Close() { f.search.Close() }
