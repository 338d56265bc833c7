package httpremote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/assert/v2"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
	"github.com/unkn0wn-root/feedsync/remote/memremote"
)

func newPair(t *testing.T, opts memremote.Options) (*Client, *memremote.Client) {
	t.Helper()
	mem := memremote.New(opts)
	srv := httptest.NewServer(Handler(mem))
	t.Cleanup(srv.Close)
	c, err := New(Options{BaseURL: srv.URL + "/"})
	assert.Equal(t, err, nil)
	return c, mem
}

func TestPagesOverHTTP(t *testing.T) {
	c, mem := newPair(t, memremote.Options{})
	for _, content := range []string{"one", "two", "three"} {
		assert.Equal(t, mem.Seed(remote.Posts, remote.Document{"creator": "u1", "content": content}), nil)
	}
	ctx := context.Background()

	pg, err := c.FetchPage(ctx, remote.Posts, feedsync.NoCursor, 2)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(pg.Items), 2)
	assert.Equal(t, pg.Items[0]["content"], "three")
	assert.NotEqual(t, pg.Next, feedsync.NoCursor)

	pg, err = c.FetchPage(ctx, remote.Posts, pg.Next, 2)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(pg.Items), 1)
	assert.Equal(t, pg.Next, feedsync.NoCursor)
}

func TestMutateAndGetOverHTTP(t *testing.T) {
	c, _ := newPair(t, memremote.Options{})
	ctx := context.Background()

	created, err := c.Mutate(ctx, remote.Users, remote.OpCreate, remote.Document{"username": "alice", "name": "Alice"})
	assert.Equal(t, err, nil)
	id := created.ID()
	assert.NotEqual(t, id, "")

	_, err = c.Mutate(ctx, remote.Users, remote.OpUpdate, remote.Document{"$id": id, "bio": "hi"})
	assert.Equal(t, err, nil)

	got, err := c.GetByID(ctx, remote.Users, id)
	assert.Equal(t, err, nil)
	assert.Equal(t, got["bio"], "hi")
	assert.Equal(t, got["username"], "alice")

	found, err := c.Where(ctx, remote.Users, "username", "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(found), 1)

	res, err := c.Search(ctx, remote.Users, "nobody")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(res), 0)

	_, err = c.Mutate(ctx, remote.Users, remote.OpDelete, remote.Document{"$id": id})
	assert.Equal(t, err, nil)
	_, err = c.GetByID(ctx, remote.Users, id)
	assert.Equal(t, errors.Is(err, feedsync.ErrNotFound), true)
}

func TestErrorKindsSurviveTransport(t *testing.T) {
	c, mem := newPair(t, memremote.Options{})
	ctx := context.Background()

	_, err := c.Mutate(ctx, remote.Saves, remote.OpCreate, remote.Document{"user": "u1"})
	assert.Equal(t, errors.Is(err, feedsync.ErrValidation), true)

	mem.FailNext(memremote.MethodMutate, feedsync.StaleWriteError("mutate:update", remote.Bookings, "b1", nil))
	_, err = c.Mutate(ctx, remote.Bookings, remote.OpUpdate, remote.Document{"$id": "b1"})
	assert.Equal(t, errors.Is(err, feedsync.ErrStaleWrite), true)

	mem.FailNext(memremote.MethodSearch, errors.New("index offline"))
	_, err = c.Search(ctx, remote.Posts, "x")
	assert.Equal(t, errors.Is(err, feedsync.ErrNetwork), true)

	_, err = c.Mutate(ctx, remote.Posts, remote.OpDelete, remote.Document{})
	assert.Equal(t, errors.Is(err, feedsync.ErrValidation), true)
}

func TestHeadersAndStatusFallback(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/{resource}/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	anon, err := New(Options{BaseURL: srv.URL})
	assert.Equal(t, err, nil)
	_, err = anon.GetByID(context.Background(), remote.Users, "u1")
	assert.Equal(t, errors.Is(err, feedsync.ErrValidation), true)

	keyed, err := New(Options{BaseURL: srv.URL, Header: http.Header{"X-Api-Key": {"secret"}}})
	assert.Equal(t, err, nil)
	_, err = keyed.GetByID(context.Background(), remote.Users, "u1")
	assert.Equal(t, errors.Is(err, feedsync.ErrNetwork), true)
}

func TestContextDeadlineIsNetworkError(t *testing.T) {
	c, _ := newPair(t, memremote.Options{Latency: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.GetByID(ctx, remote.Users, "u1")
	assert.Equal(t, errors.Is(err, feedsync.ErrNetwork), true)
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Options{})
	assert.NotEqual(t, err, nil)
}
