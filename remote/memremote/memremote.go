// Package memremote is an in-process remote.Client. It backs the CLI demo
// mode and the tests of every layer above the remote boundary.
package memremote

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sahilm/fuzzy"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

// Methods, for Calls and FailNext.
const (
	MethodFetchPage = "FetchPage"
	MethodSearch    = "Search"
	MethodWhere     = "Where"
	MethodMutate    = "Mutate"
	MethodGetByID   = "GetByID"
)

// Options tune the fake service. The zero value is ready to use.
type Options struct {
	Latency time.Duration    // added to every call; honours ctx
	Now     func() time.Time // nil => time.Now
}

type record struct {
	doc remote.Document
	seq uint64 // write order; newest first in pages
}

// Client is a goroutine-safe in-memory collection service.
type Client struct {
	latency time.Duration
	now     func() time.Time

	mu      sync.Mutex
	cols    map[string]map[string]*record
	seq     uint64
	entropy *ulid.MonotonicEntropy
	calls   map[string]int
	fail    map[string][]error
}

var _ remote.Client = (*Client)(nil)

func New(opts Options) *Client {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		latency: opts.Latency,
		now:     now,
		cols:    make(map[string]map[string]*record),
		entropy: ulid.Monotonic(rand.Reader, 0),
		calls:   make(map[string]int),
		fail:    make(map[string][]error),
	}
}

// Seed inserts docs as they are. Documents without an $id get one.
func (c *Client) Seed(resource string, docs ...remote.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range docs {
		nd, err := remote.Normalize(d)
		if err != nil {
			return err
		}
		if nd.ID() == "" {
			nd[remote.FieldID] = c.newIDLocked()
		}
		ts := c.now().UTC().Format(time.RFC3339Nano)
		if _, ok := nd[remote.FieldCreatedAt]; !ok {
			nd[remote.FieldCreatedAt] = ts
		}
		if _, ok := nd[remote.FieldUpdatedAt]; !ok {
			nd[remote.FieldUpdatedAt] = ts
		}
		c.putLocked(resource, nd)
	}
	return nil
}

// FailNext makes the next call of method return err. Calls queue up.
func (c *Client) FailNext(method string, err error) {
	c.mu.Lock()
	c.fail[method] = append(c.fail[method], err)
	c.mu.Unlock()
}

// Calls returns how many times method was invoked.
func (c *Client) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// Len returns the number of documents in resource.
func (c *Client) Len(resource string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cols[resource])
}

func (c *Client) FetchPage(ctx context.Context, resource string, cursor feedsync.Cursor, pageSize int) (feedsync.Page[remote.Document], error) {
	if err := c.enter(ctx, MethodFetchPage, "fetchPage", resource); err != nil {
		return feedsync.Page[remote.Document]{}, err
	}
	if pageSize <= 0 {
		return feedsync.Page[remote.Document]{}, feedsync.ValidationError("fetchPage", resource, fmt.Errorf("page size %d", pageSize))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	recs := c.sortedLocked(resource)
	start := 0
	if cursor != feedsync.NoCursor {
		start = -1
		for i, r := range recs {
			if r.doc.ID() == string(cursor) {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return feedsync.Page[remote.Document]{}, feedsync.ValidationError("fetchPage", resource, fmt.Errorf("unknown cursor %q", cursor))
		}
	}
	end := min(start+pageSize, len(recs))

	pg := feedsync.Page[remote.Document]{Items: make([]remote.Document, 0, end-start)}
	for _, r := range recs[start:end] {
		pg.Items = append(pg.Items, r.doc.Clone())
	}
	if end < len(recs) {
		pg.Next = feedsync.Cursor(recs[end-1].doc.ID())
	}
	return pg, nil
}

// contentSource adapts documents to fuzzy.Source over their content field.
type contentSource []*record

func (s contentSource) String(i int) string {
	v, _ := s[i].doc["content"].(string)
	return v
}
func (s contentSource) Len() int { return len(s) }

func (c *Client) Search(ctx context.Context, resource, term string) ([]remote.Document, error) {
	if err := c.enter(ctx, MethodSearch, "search", resource); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	recs := contentSource(c.sortedLocked(resource))
	matches := fuzzy.FindFrom(term, recs)
	out := make([]remote.Document, 0, len(matches))
	for _, m := range matches {
		out = append(out, recs[m.Index].doc.Clone())
	}
	return out, nil
}

func (c *Client) Where(ctx context.Context, resource, field, value string) ([]remote.Document, error) {
	if err := c.enter(ctx, MethodWhere, "where", resource); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []remote.Document
	for _, r := range c.sortedLocked(resource) {
		if matchField(r.doc[field], value) {
			out = append(out, r.doc.Clone())
		}
	}
	return out, nil
}

func matchField(v any, want string) bool {
	switch vv := v.(type) {
	case string:
		return vv == want
	case []any:
		for _, x := range vv {
			if s, ok := x.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func (c *Client) GetByID(ctx context.Context, resource, id string) (remote.Document, error) {
	if err := c.enter(ctx, MethodGetByID, "getById", resource); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.cols[resource][id]
	if !ok {
		return nil, feedsync.NotFoundError("getById", resource, id)
	}
	return r.doc.Clone(), nil
}

func (c *Client) Mutate(ctx context.Context, resource, op string, payload remote.Document) (remote.Document, error) {
	mop := "mutate:" + op
	if err := c.enter(ctx, MethodMutate, mop, resource); err != nil {
		return nil, err
	}
	nd, err := remote.Normalize(payload)
	if err != nil {
		return nil, feedsync.ValidationError(mop, resource, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now().UTC().Format(time.RFC3339Nano)

	switch op {
	case remote.OpCreate:
		if err := checkCreate(resource, nd); err != nil {
			return nil, feedsync.ValidationError(mop, resource, err)
		}
		nd[remote.FieldID] = c.newIDLocked()
		nd[remote.FieldCreatedAt] = ts
		nd[remote.FieldUpdatedAt] = ts
		c.putLocked(resource, nd)
		return nd.Clone(), nil

	case remote.OpUpdate:
		id := nd.ID()
		r, ok := c.cols[resource][id]
		if !ok {
			return nil, feedsync.NotFoundError(mop, resource, id)
		}
		merged := r.doc.Clone()
		for k, v := range nd {
			if k == remote.FieldCreatedAt {
				continue
			}
			merged[k] = v
		}
		merged[remote.FieldUpdatedAt] = ts
		c.putLocked(resource, merged)
		return merged.Clone(), nil

	case remote.OpDelete:
		id := nd.ID()
		if _, ok := c.cols[resource][id]; !ok {
			return nil, feedsync.NotFoundError(mop, resource, id)
		}
		delete(c.cols[resource], id)
		return remote.Document{remote.FieldID: id, "status": "ok"}, nil

	default:
		return nil, feedsync.ValidationError(mop, resource, fmt.Errorf("unknown op %q", op))
	}
}

// checkCreate enforces the fields the service requires on insert.
func checkCreate(resource string, d remote.Document) error {
	var required []string
	switch resource {
	case remote.Posts, remote.Bookings:
		required = []string{"creator"}
	case remote.Saves:
		required = []string{"user", "post"}
	case remote.Users:
		required = []string{"username"}
	}
	for _, f := range required {
		if s, _ := d[f].(string); s == "" {
			return fmt.Errorf("%s is required", f)
		}
	}
	return nil
}

// enter counts the call, applies latency and any queued failure.
func (c *Client) enter(ctx context.Context, method, op, resource string) error {
	c.mu.Lock()
	c.calls[method]++
	var injected error
	if q := c.fail[method]; len(q) > 0 {
		injected, c.fail[method] = q[0], q[1:]
	}
	c.mu.Unlock()

	if c.latency > 0 {
		t := time.NewTimer(c.latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return feedsync.NetworkError(op, resource, ctx.Err())
		}
	} else if err := ctx.Err(); err != nil {
		return feedsync.NetworkError(op, resource, err)
	}

	if injected != nil {
		if feedsync.KindOf(injected) == 0 {
			return feedsync.NetworkError(op, resource, injected)
		}
		return injected
	}
	return nil
}

func (c *Client) putLocked(resource string, d remote.Document) {
	col, ok := c.cols[resource]
	if !ok {
		col = make(map[string]*record)
		c.cols[resource] = col
	}
	c.seq++
	col[d.ID()] = &record{doc: d, seq: c.seq}
}

// sortedLocked returns resource's records, most recently written first.
func (c *Client) sortedLocked(resource string) []*record {
	col := c.cols[resource]
	out := make([]*record, 0, len(col))
	for _, r := range col {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq > out[j].seq })
	return out
}

func (c *Client) newIDLocked() string {
	return ulid.MustNew(ulid.Timestamp(c.now()), c.entropy).String()
}
