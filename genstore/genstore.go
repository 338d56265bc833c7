// Package genstore holds the per-record generation counters that let the
// entity cache reject values read before a write.
package genstore

import (
	"context"
	"time"
)

// Store abstracts where generations live. Local keeps them in-process;
// Redis shares them across processes.
type Store interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// SnapshotMany returns generations for many keys; missing => 0.
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes counters not bumped within retention (no-op for Redis).
	Cleanup(retention time.Duration)
	Close(context.Context) error
}
