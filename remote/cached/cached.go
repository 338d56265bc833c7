// Package cached puts a generation-checked record cache in front of a
// remote.Client.
//
// GetByID and GetMany read through the cache. Every cached record is framed
// with the generation it was read at; a write through Mutate (or an explicit
// Invalidate) bumps the record's generation, so values read before the write
// can neither be served nor stored afterwards. Pages, searches and filters
// always go to the remote.
package cached

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/feedsync"
	"github.com/unkn0wn-root/feedsync/codec"
	"github.com/unkn0wn-root/feedsync/genstore"
	"github.com/unkn0wn-root/feedsync/internal/util"
	"github.com/unkn0wn-root/feedsync/internal/wire"
	"github.com/unkn0wn-root/feedsync/provider"
	"github.com/unkn0wn-root/feedsync/remote"
)

const (
	defaultNamespace    = "feedsync"
	defaultTTL          = 10 * time.Minute
	defaultGenSweep     = time.Hour
	defaultGenRetention = 30 * 24 * time.Hour
)

// SetCostFunc weighs a value for cost-aware providers (ristretto).
// many is true for GetMany frames holding n records.
type SetCostFunc func(key string, raw []byte, many bool, n int) int64

type Options struct {
	// Namespace isolates keys when several caches share one provider.
	Namespace string

	Provider provider.Provider // required

	// Codec encodes documents inside frames. Default codec.JSON.
	Codec codec.Codec[remote.Document]

	// GenStore holds record generations. Default an in-process genstore.Local
	// owned (and closed) by the Client. Use genstore.Redis when several
	// processes share a redis provider.
	GenStore genstore.Store

	Logger feedsync.Logger

	DefaultTTL time.Duration // single records; default 10m
	ManyTTL    time.Duration // GetMany frames; default 10m

	ComputeSetCost SetCostFunc // default: len(raw)

	// Resources lists the cacheable collections. Default users, posts, bookings.
	Resources []string

	// DisableMany stores GetMany results as single records only.
	DisableMany bool
}

// Client is a caching remote.Client.
type Client struct {
	inner    remote.Client
	ns       string
	provider provider.Provider
	codec    codec.Codec[remote.Document]
	gens     genstore.Store
	ownGens  bool
	log      feedsync.Logger

	defaultTTL time.Duration
	manyTTL    time.Duration
	cost       SetCostFunc
	resources  map[string]bool
	many       bool
}

var (
	_ remote.Client      = (*Client)(nil)
	_ remote.BatchGetter = (*Client)(nil)
)

func New(inner remote.Client, opts Options) (*Client, error) {
	if inner == nil {
		return nil, errors.New("feedsync: cached: inner client is required")
	}
	if opts.Provider == nil {
		return nil, errors.New("feedsync: cached: provider is required")
	}
	c := &Client{
		inner:      inner,
		ns:         opts.Namespace,
		provider:   opts.Provider,
		codec:      opts.Codec,
		gens:       opts.GenStore,
		log:        opts.Logger,
		defaultTTL: opts.DefaultTTL,
		manyTTL:    opts.ManyTTL,
		cost:       opts.ComputeSetCost,
		many:       !opts.DisableMany,
	}
	if c.ns == "" {
		c.ns = defaultNamespace
	}
	if c.codec == nil {
		c.codec = codec.JSON[remote.Document]{}
	}
	if c.gens == nil {
		c.gens = genstore.NewLocal(defaultGenSweep, defaultGenRetention)
		c.ownGens = true
	}
	if c.log == nil {
		c.log = feedsync.NopLogger{}
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = defaultTTL
	}
	if c.manyTTL <= 0 {
		c.manyTTL = defaultTTL
	}
	if c.cost == nil {
		c.cost = func(_ string, raw []byte, _ bool, _ int) int64 { return int64(len(raw)) }
	}
	res := opts.Resources
	if len(res) == 0 {
		res = []string{remote.Users, remote.Posts, remote.Bookings}
	}
	c.resources = make(map[string]bool, len(res))
	for _, r := range res {
		c.resources[r] = true
	}
	return c, nil
}

// Close releases the provider and, when the Client created it, the gen store.
func (c *Client) Close(ctx context.Context) error {
	var errs []error
	if c.ownGens {
		errs = append(errs, c.gens.Close(ctx))
	}
	errs = append(errs, c.provider.Close(ctx))
	return errors.Join(errs...)
}

// ==============================
// remote.Client
// ==============================

func (c *Client) GetByID(ctx context.Context, resource, id string) (remote.Document, error) {
	if !c.resources[resource] || id == "" {
		return c.inner.GetByID(ctx, resource, id)
	}
	k := c.recKey(resource, id)
	obs := c.snapshot(ctx, k)
	if d, ok := c.get(ctx, k, obs); ok {
		return d, nil
	}
	d, err := c.inner.GetByID(ctx, resource, id)
	if err != nil {
		return nil, err
	}
	c.setWithGen(ctx, k, d, obs)
	return d, nil
}

// GetMany serves ids from a GetMany frame, then single records, and loads
// the rest through the inner client.
func (c *Client) GetMany(ctx context.Context, resource string, ids []string) (map[string]remote.Document, error) {
	if !c.resources[resource] {
		return remote.GetMany(ctx, c.inner, resource, ids)
	}
	ids = util.SortedUnique(ids)
	if len(ids) > 0 && ids[0] == "" {
		ids = ids[1:]
	}
	out := make(map[string]remote.Document, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.recKey(resource, id)
	}
	obs, err := c.gens.SnapshotMany(ctx, keys)
	if err != nil {
		c.log.Warn("gen snapshot failed; bypassing cache", feedsync.Fields{"resource": resource, "err": err})
		return remote.GetMany(ctx, c.inner, resource, ids)
	}

	mk := c.manyKey(resource, ids)
	if c.many && c.getMany(ctx, mk, resource, obs, out) {
		return out, nil
	}

	var missing []string
	for i, id := range ids {
		if d, ok := c.get(ctx, keys[i], obs[keys[i]]); ok {
			out[id] = d
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		c.setMany(ctx, mk, resource, ids, out, obs)
		return out, nil
	}

	loaded, err := remote.GetMany(ctx, c.inner, resource, missing)
	for id, d := range loaded {
		out[id] = d
		k := c.recKey(resource, id)
		c.setWithGen(ctx, k, d, obs[k])
	}
	if err == nil {
		c.setMany(ctx, mk, resource, ids, out, obs)
	}
	return out, err
}

// FetchPage is not cached. Page records carry no generation observed before
// the load, so storing them could resurrect a value a concurrent write replaced.
func (c *Client) FetchPage(ctx context.Context, resource string, cursor feedsync.Cursor, pageSize int) (feedsync.Page[remote.Document], error) {
	return c.inner.FetchPage(ctx, resource, cursor, pageSize)
}

func (c *Client) Search(ctx context.Context, resource, term string) ([]remote.Document, error) {
	return c.inner.Search(ctx, resource, term)
}

func (c *Client) Where(ctx context.Context, resource, field, value string) ([]remote.Document, error) {
	return c.inner.Where(ctx, resource, field, value)
}

// Mutate forwards the write and invalidates the addressed record whether or
// not the call reported success; a failed call may still have landed.
func (c *Client) Mutate(ctx context.Context, resource, op string, payload remote.Document) (remote.Document, error) {
	d, err := c.inner.Mutate(ctx, resource, op, payload)
	if c.resources[resource] && op != remote.OpCreate {
		if id := payload.ID(); id != "" {
			c.Invalidate(ctx, resource, id)
		}
	}
	return d, err
}

// Invalidate drops the cached record and rejects in-flight reads of it.
func (c *Client) Invalidate(ctx context.Context, resource, id string) {
	k := c.recKey(resource, id)
	gen, err := c.gens.Bump(ctx, k)
	if err != nil {
		c.log.Error("gen bump failed", feedsync.Fields{"key": k, "err": err})
	}
	if err := c.provider.Del(ctx, k); err != nil {
		c.log.Warn("cache delete failed", feedsync.Fields{"key": k, "err": err})
	}
	c.log.Debug("record invalidated", feedsync.Fields{"key": k, "gen": gen})
}

// ==============================
// frames
// ==============================

func (c *Client) recKey(resource, id string) string {
	return "rec:" + c.ns + ":" + resource + ":" + id
}

func (c *Client) manyKey(resource string, sortedIDs []string) string {
	return util.ManyKeySorted("many:"+c.ns+":"+resource, sortedIDs)
}

func (c *Client) snapshot(ctx context.Context, k string) uint64 {
	g, err := c.gens.Snapshot(ctx, k)
	if err != nil {
		// 0 never matches a bumped record, so reads miss and writes are skipped
		c.log.Warn("gen snapshot failed", feedsync.Fields{"key": k, "err": err})
		return 0
	}
	return g
}

// get returns the record under k if its frame carries generation cur.
// Corrupt or stale frames are deleted.
func (c *Client) get(ctx context.Context, k string, cur uint64) (remote.Document, bool) {
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		c.log.Warn("cache get failed", feedsync.Fields{"key": k, "err": err})
		return nil, false
	}
	if !ok {
		return nil, false
	}
	gen, payload, err := wire.DecodeSingle(raw)
	if err != nil || gen != cur {
		_ = c.provider.Del(ctx, k)
		return nil, false
	}
	d, err := c.codec.Decode(payload)
	if err != nil {
		c.log.Debug("cache decode failed", feedsync.Fields{"key": k, "err": err})
		_ = c.provider.Del(ctx, k)
		return nil, false
	}
	return d, true
}

// setWithGen stores d only if k's generation is still obs.
func (c *Client) setWithGen(ctx context.Context, k string, d remote.Document, obs uint64) {
	if c.snapshot(ctx, k) != obs {
		c.log.Debug("cache write skipped (gen moved)", feedsync.Fields{"key": k, "obs": obs})
		return
	}
	payload, err := c.codec.Encode(d)
	if err != nil {
		c.log.Warn("cache encode failed", feedsync.Fields{"key": k, "err": err})
		return
	}
	raw := wire.EncodeSingle(obs, payload)
	ok, err := c.provider.Set(ctx, k, raw, c.cost(k, raw, false, 1), c.defaultTTL)
	if err != nil {
		c.log.Warn("cache set failed", feedsync.Fields{"key": k, "err": err})
		return
	}
	if !ok {
		c.log.Debug("cache set rejected by provider", feedsync.Fields{"key": k})
	}
}

// getMany fills out from the GetMany frame mk when every record in it is
// still at its observed generation.
func (c *Client) getMany(ctx context.Context, mk, resource string, obs map[string]uint64, out map[string]remote.Document) bool {
	raw, ok, err := c.provider.Get(ctx, mk)
	if err != nil || !ok {
		return false
	}
	items, err := wire.DecodeBulk(raw)
	if err != nil || len(items) != len(obs) {
		_ = c.provider.Del(ctx, mk)
		return false
	}
	got := make(map[string]remote.Document, len(items))
	for _, it := range items {
		cur, known := obs[c.recKey(resource, it.Key)]
		if !known || cur != it.Gen {
			_ = c.provider.Del(ctx, mk)
			return false
		}
		d, err := c.codec.Decode(it.Payload)
		if err != nil {
			_ = c.provider.Del(ctx, mk)
			return false
		}
		got[it.Key] = d
	}
	for id, d := range got {
		out[id] = d
	}
	return true
}

// setMany stores a frame for the full id set when every id resolved and no
// generation moved since obs was taken.
func (c *Client) setMany(ctx context.Context, mk, resource string, ids []string, docs map[string]remote.Document, obs map[string]uint64) {
	if !c.many || len(docs) != len(ids) {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.recKey(resource, id)
	}
	now, err := c.gens.SnapshotMany(ctx, keys)
	if err != nil {
		return
	}
	items := make([]wire.BulkItem, 0, len(ids))
	for i, id := range ids {
		if now[keys[i]] != obs[keys[i]] {
			c.log.Debug("many frame skipped (gen moved)", feedsync.Fields{"key": keys[i]})
			return
		}
		payload, err := c.codec.Encode(docs[id])
		if err != nil {
			return
		}
		items = append(items, wire.BulkItem{Key: id, Gen: obs[keys[i]], Payload: payload})
	}
	raw, err := wire.EncodeBulk(items)
	if err != nil {
		c.log.Warn("many frame encode failed", feedsync.Fields{"key": mk, "err": err})
		return
	}
	if _, err := c.provider.Set(ctx, mk, raw, c.cost(mk, raw, true, len(items)), c.manyTTL); err != nil {
		c.log.Warn("many frame set failed", feedsync.Fields{"key": mk, "err": err})
	}
}
