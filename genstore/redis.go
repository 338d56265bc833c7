package genstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares per-record generations across processes. With a TTL, idle
// counters expire and read as 0; cached values then miss and refill.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed store. ttl <= 0 disables expiry.
func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return "gen:" + s.ns + ":" + k }

func (s *Redis) Snapshot(ctx context.Context, k string) (uint64, error) {
	res, err := s.rdb.Get(ctx, s.key(k)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	u, err := strconv.ParseUint(res, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("genstore: parse %s: %w", k, err)
	}
	return u, nil
}

func (s *Redis) SnapshotMany(ctx context.Context, ks []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(ks))
	if len(ks) == 0 {
		return out, nil
	}
	keys := make([]string, len(ks))
	for i, k := range ks {
		keys[i] = s.key(k)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		if v == nil {
			out[ks[i]] = 0
			continue
		}
		u, err := strconv.ParseUint(fmt.Sprint(v), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("genstore: parse %s: %w", ks[i], err)
		}
		out[ks[i]] = u
	}
	return out, nil
}

// Bump pipelines INCR and EXPIRE in one round-trip when a TTL is set.
func (s *Redis) Bump(ctx context.Context, k string) (uint64, error) {
	key := s.key(k)
	if s.ttl <= 0 {
		v, err := s.rdb.Incr(ctx, key).Result()
		if err != nil {
			return 0, err
		}
		return uint64(v), nil
	}
	var incr *redis.IntCmd
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return uint64(incr.Val()), nil
}

func (s *Redis) Cleanup(time.Duration) {}

// Close does not close the client; its owner does.
func (s *Redis) Close(context.Context) error { return nil }
