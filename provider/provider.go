// Package provider defines the byte store behind the remote/cached entity cache.
//
// Implementations must be byte-for-byte transparent: Get returns exactly the
// []byte previously passed to Set for a key. The keyspaces "rec:<ns>:" and
// "many:<ns>:" belong to remote/cached; values written there by other code are
// treated as corrupt and deleted.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs, safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl. Stores that do not weigh entries ignore cost.
	// ok=false means the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
