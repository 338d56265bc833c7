package feedsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// pagedSource serves fixed pages keyed by cursor and counts loads.
type pagedSource struct {
	pages map[Cursor]Page[string]
	calls atomic.Int32

	mu      sync.Mutex
	cursors []Cursor
	fail    error
	gate    chan struct{} // if set, each load waits on it
}

func (p *pagedSource) load(ctx context.Context, c Cursor) (Page[string], error) {
	p.calls.Add(1)
	p.mu.Lock()
	p.cursors = append(p.cursors, c)
	fail, gate := p.fail, p.gate
	p.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fail != nil {
		return Page[string]{}, fail
	}
	pg, ok := p.pages[c]
	if !ok {
		return Page[string]{}, NotFoundError("fetchPage", "posts", string(c))
	}
	return pg, nil
}

// twoTwoOne is the A,B | C,D | E collection.
func twoTwoOne() *pagedSource {
	return &pagedSource{pages: map[Cursor]Page[string]{
		"":   {Items: []string{"A", "B"}, Next: "c1"},
		"c1": {Items: []string{"C", "D"}, Next: "c2"},
		"c2": {Items: []string{"E"}, Next: NoCursor},
	}}
}

func newTestPager(t *testing.T, src *pagedSource, onChange func(PageState[string])) *Pager[string] {
	t.Helper()
	s := newTestStore(t, nil, nil)
	p, err := NewPager(s, PagerOptions[string]{
		Key:      NewKey("infinitePosts"),
		Load:     src.load,
		OnChange: onChange,
	})
	if err != nil {
		t.Fatalf("NewPager: %v", err)
	}
	return p
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ==============================
// Pagination
// ==============================

func TestPagerTwoTwoOne(t *testing.T) {
	src := twoTwoOne()
	p := newTestPager(t, src, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := p.FetchNext(ctx); err != nil {
			t.Fatalf("FetchNext %d: %v", i, err)
		}
	}
	if got := p.Items(); !equalStrings(got, []string{"A", "B", "C", "D", "E"}) {
		t.Fatalf("items=%v", got)
	}
	st := p.State()
	if !st.Exhausted || len(st.Pages) != 3 || p.HasNext() {
		t.Fatalf("state=%+v want 3 pages exhausted", st)
	}

	if err := p.FetchNext(ctx); err != nil {
		t.Fatalf("FetchNext after exhaustion: %v", err)
	}
	if n := src.calls.Load(); n != 3 {
		t.Fatalf("loads=%d want 3 (no load after exhaustion)", n)
	}
	if !equalStrings([]string{string(src.cursors[0]), string(src.cursors[1]), string(src.cursors[2])}, []string{"", "c1", "c2"}) {
		t.Fatalf("cursors=%v", src.cursors)
	}
}

func TestPagerPagesOnlyGrow(t *testing.T) {
	src := twoTwoOne()
	var (
		mu      sync.Mutex
		lengths []int
	)
	p := newTestPager(t, src, func(st PageState[string]) {
		mu.Lock()
		lengths = append(lengths, len(st.Pages))
		mu.Unlock()
	})
	for i := 0; i < 4; i++ {
		_ = p.FetchNext(context.Background())
	}
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(lengths); i++ {
		if lengths[i] < lengths[i-1] {
			t.Fatalf("page count shrank: %v", lengths)
		}
	}
	if lengths[len(lengths)-1] != 3 {
		t.Fatalf("final pages=%d want 3", lengths[len(lengths)-1])
	}
}

func TestPagerNearEndCollapsesWhileFetching(t *testing.T) {
	src := twoTwoOne()
	src.gate = make(chan struct{})
	p := newTestPager(t, src, nil)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- p.NearEnd(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !p.State().Fetching {
		if time.Now().After(deadline) {
			t.Fatalf("pager never entered fetching")
		}
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 10; i++ {
		if err := p.NearEnd(ctx); err != nil {
			t.Fatalf("NearEnd while fetching: %v", err)
		}
	}
	close(src.gate)
	if err := waitFor(t, first, "first page"); err != nil {
		t.Fatal(err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("loads=%d want 1", n)
	}
	if got := p.Items(); !equalStrings(got, []string{"A", "B"}) {
		t.Fatalf("items=%v", got)
	}
}

func TestPagerEmptyPageWithCursorIsNotTerminal(t *testing.T) {
	src := &pagedSource{pages: map[Cursor]Page[string]{
		"":   {Items: nil, Next: "c1"},
		"c1": {Items: []string{"A"}, Next: NoCursor},
	}}
	p := newTestPager(t, src, nil)
	ctx := context.Background()

	if err := p.FetchNext(ctx); err != nil {
		t.Fatal(err)
	}
	if p.State().Exhausted {
		t.Fatalf("empty page with cursor must not exhaust")
	}
	if err := p.FetchNext(ctx); err != nil {
		t.Fatal(err)
	}
	if !p.State().Exhausted || !equalStrings(p.Items(), []string{"A"}) {
		t.Fatalf("state=%+v items=%v", p.State(), p.Items())
	}
}

func TestPagerFailureKeepsPagesAndRetries(t *testing.T) {
	src := twoTwoOne()
	p := newTestPager(t, src, nil)
	ctx := context.Background()

	if err := p.FetchNext(ctx); err != nil {
		t.Fatal(err)
	}
	src.mu.Lock()
	src.fail = NetworkError("fetchPage", "posts", errors.New("offline"))
	src.mu.Unlock()

	if err := p.FetchNext(ctx); !errors.Is(err, ErrNetwork) {
		t.Fatalf("err=%v want ErrNetwork", err)
	}
	st := p.State()
	if len(st.Pages) != 1 || st.Fetching || !errors.Is(st.Err, ErrNetwork) {
		t.Fatalf("state after failure=%+v", st)
	}

	src.mu.Lock()
	src.fail = nil
	src.mu.Unlock()
	if err := p.FetchNext(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	st = p.State()
	if st.Err != nil || len(st.Pages) != 2 {
		t.Fatalf("state after retry=%+v", st)
	}
	if src.cursors[1] != "c1" || src.cursors[2] != "c1" {
		t.Fatalf("retry used cursor %q want c1", src.cursors[2])
	}
}

func TestNewPagerValidates(t *testing.T) {
	s := newTestStore(t, nil, nil)
	load := func(context.Context, Cursor) (Page[string], error) { return Page[string]{}, nil }
	if _, err := NewPager[string](nil, PagerOptions[string]{Key: NewKey("posts"), Load: load}); err == nil {
		t.Fatalf("nil store accepted")
	}
	if _, err := NewPager(s, PagerOptions[string]{Load: load}); err == nil {
		t.Fatalf("missing key accepted")
	}
	if _, err := NewPager(s, PagerOptions[string]{Key: NewKey("posts")}); err == nil {
		t.Fatalf("missing loader accepted")
	}
}

func TestPageStateItemsMatchesSnapshot(t *testing.T) {
	src := twoTwoOne()
	p := newTestPager(t, src, nil)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := p.FetchNext(ctx); err != nil {
			t.Fatal(err)
		}
	}
	st := p.State()
	if got := st.Items(); !equalStrings(got, []string{"A", "B", "C", "D"}) {
		t.Fatalf("state items=%v", got)
	}
	if err := p.FetchNext(ctx); err != nil {
		t.Fatal(err)
	}
	// the earlier snapshot is unaffected by later pages
	if got := st.Items(); len(got) != 4 {
		t.Fatalf("snapshot items changed: %v", got)
	}
	if got := p.Items(); !equalStrings(got, []string{"A", "B", "C", "D", "E"}) {
		t.Fatalf("pager items=%v", got)
	}
}
