package cache

import (
	"context"
	"time"
)

// Store is a key-value store with per-entry expiry. Implementations must be
// safe for concurrent use; concurrent Sets of one key are last-writer-wins.
// Entries are never removed explicitly: keys rotate with the time window and
// expired entries are dropped by a Purger.
type Store interface {
	// Get returns the value for key, or false if it is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Purger is implemented by stores that need expired entries removed
// periodically.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}
