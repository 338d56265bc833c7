package feedsync

import (
	"context"
	"errors"
	"sync"
)

// Cursor is an opaque pagination token.
type Cursor string

// NoCursor as a page's Next marks the end of the collection.
const NoCursor Cursor = ""

// Page is one slice of a cursor-paginated collection.
type Page[T any] struct {
	Items []T
	Next  Cursor
}

// PageLoader loads the page that starts at cursor.
type PageLoader[T any] func(ctx context.Context, cursor Cursor) (Page[T], error)

// PageState is a copy of a Pager's state.
type PageState[T any] struct {
	Pages     []Page[T]
	Fetching  bool
	Exhausted bool
	Err       error // last failed load; cleared by the next successful one
}

// PagerOptions configure a Pager. Key and Load are required.
type PagerOptions[T any] struct {
	Key      Key           // base key; page keys extend it with the cursor
	Load     PageLoader[T] // required
	Initial  Cursor        // cursor of the first page
	OnChange func(PageState[T])
}

// Pager is a cursor-driven infinite list. Pages are only ever appended, in
// arrival order; once the collection is exhausted no further load is issued.
type Pager[T any] struct {
	store    *Store
	key      Key
	load     PageLoader[T]
	initial  Cursor
	onChange func(PageState[T])

	mu        sync.Mutex
	pages     []Page[T]
	fetching  bool
	exhausted bool
	err       error
}

func NewPager[T any](s *Store, opts PagerOptions[T]) (*Pager[T], error) {
	if s == nil {
		return nil, errors.New("feedsync: pager needs a store")
	}
	if opts.Key.Resource() == "" {
		return nil, errors.New("feedsync: pager key is required")
	}
	if opts.Load == nil {
		return nil, errors.New("feedsync: pager loader is required")
	}
	return &Pager[T]{
		store:    s,
		key:      opts.Key,
		load:     opts.Load,
		initial:  opts.Initial,
		onChange: opts.OnChange,
	}, nil
}

// FetchNext loads the next page. It is a no-op while a load is in flight or
// after the collection is exhausted, so repeated end-of-list notifications
// collapse into one load. A failed load leaves pages untouched; calling
// FetchNext again retries the same cursor.
func (p *Pager[T]) FetchNext(ctx context.Context) error {
	p.mu.Lock()
	if p.fetching || p.exhausted {
		p.mu.Unlock()
		return nil
	}
	p.fetching = true
	cursor := p.initial
	if n := len(p.pages); n > 0 {
		cursor = p.pages[n-1].Next
	}
	snap := p.stateLocked()
	p.mu.Unlock()
	p.emit(snap)

	page, err := Fetch(ctx, p.store, p.key.With(string(cursor)), func(ctx context.Context) (Page[T], error) {
		return p.load(ctx, cursor)
	})

	p.mu.Lock()
	p.fetching = false
	if err != nil {
		p.err = err
	} else {
		p.pages = append(p.pages, page)
		p.exhausted = page.Next == NoCursor
		p.err = nil
	}
	snap = p.stateLocked()
	p.mu.Unlock()
	p.emit(snap)
	return err
}

// NearEnd is the end-of-list trigger. Notifications that arrive while a
// load is in flight collapse into it.
func (p *Pager[T]) NearEnd(ctx context.Context) error { return p.FetchNext(ctx) }

// State returns a copy of the pager state.
func (p *Pager[T]) State() PageState[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

// Items returns every loaded item in page order.
func (p *Pager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return flatten(p.pages)
}

// HasNext reports whether another page may exist.
func (p *Pager[T]) HasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.exhausted
}

func (p *Pager[T]) stateLocked() PageState[T] {
	return PageState[T]{
		Pages:     append([]Page[T](nil), p.pages...),
		Fetching:  p.fetching,
		Exhausted: p.exhausted,
		Err:       p.err,
	}
}

// Items returns the state's items in page order.
func (st PageState[T]) Items() []T { return flatten(st.Pages) }

func flatten[T any](pages []Page[T]) []T {
	n := 0
	for _, pg := range pages {
		n += len(pg.Items)
	}
	out := make([]T, 0, n)
	for _, pg := range pages {
		out = append(out, pg.Items...)
	}
	return out
}

func (p *Pager[T]) emit(st PageState[T]) {
	if p.onChange != nil {
		p.onChange(st)
	}
}
