// Package social binds the feedsync store to the posts, users and bookings
// collections: typed reads under well-known keys, writes carrying their
// invalidation sets, and optimistic toggles for like, save and attend.
package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/remote"
)

// Session identifies the signed-in user. It is passed in explicitly; the
// package keeps no global session state.
type Session struct {
	UserID   string
	Username string
}

func (s Session) valid() bool { return s.UserID != "" && s.Username != "" }

type Options struct {
	Remote  remote.Client   // required
	Store   *feedsync.Store // required
	Session Session

	Logger feedsync.Logger
	Hooks  feedsync.Hooks

	Debounce     time.Duration // search window; 0 => 500ms
	WriteTimeout time.Duration // 0 => 30s
	AwaitRefetch bool          // writes return after invalidated reads refresh
}

// Client is the data layer for one signed-in user.
type Client struct {
	remote   remote.Client
	store    *feedsync.Store
	exec     *feedsync.Executor
	session  Session
	log      feedsync.Logger
	hooks    feedsync.Hooks
	debounce time.Duration
}

func New(opts Options) (*Client, error) {
	if opts.Remote == nil {
		return nil, errors.New("feedsync: social: remote client is required")
	}
	if opts.Store == nil {
		return nil, errors.New("feedsync: social: store is required")
	}
	c := &Client{
		remote:   opts.Remote,
		store:    opts.Store,
		session:  opts.Session,
		log:      opts.Logger,
		hooks:    opts.Hooks,
		debounce: opts.Debounce,
	}
	if c.log == nil {
		c.log = feedsync.NopLogger{}
	}
	if c.hooks == nil {
		c.hooks = feedsync.NopHooks{}
	}
	exec, err := feedsync.NewExecutor(opts.Store, feedsync.ExecutorOptions{
		Writer:       feedsync.WriterFunc(c.write),
		Logger:       c.log,
		Hooks:        c.hooks,
		Timeout:      opts.WriteTimeout,
		AwaitRefetch: opts.AwaitRefetch,
	})
	if err != nil {
		return nil, err
	}
	c.exec = exec
	return c, nil
}

func (c *Client) Store() *feedsync.Store { return c.store }
func (c *Client) Session() Session       { return c.session }

// call is the payload of a plain remote write.
type call struct {
	op  string
	doc remote.Document
}

// write is the executor's Writer: one remote.Mutate per mutation.
func (c *Client) write(ctx context.Context, m feedsync.Mutation) (any, error) {
	cl, ok := m.Payload.(call)
	if !ok {
		return nil, fmt.Errorf("feedsync: social: mutation %q has payload %T", m.Op, m.Payload)
	}
	return c.remote.Mutate(ctx, m.Resource, cl.op, cl.doc)
}

func (c *Client) requireSession(op string) error {
	if !c.session.valid() {
		return feedsync.ValidationError(op, "", errors.New("no signed-in user"))
	}
	return nil
}

// load serves a subscribed, settled and fresh entry as is, and fetches
// otherwise. Subscribed entries are kept current by invalidation.
func load[T any](ctx context.Context, c *Client, key feedsync.Key, fetch func(context.Context) (T, error)) (T, error) {
	e := c.store.Read(key)
	if e.Subscribers > 0 && e.Status == feedsync.StatusReady && !e.Stale {
		if v, ok := feedsync.Value[T](e); ok {
			return v, nil
		}
	}
	return feedsync.Fetch(ctx, c.store, key, fetch)
}
