// Package cache provides a small key-value cache used for fast presence
// lookups. The database stays authoritative; cache entries are advisory
// and carry a TTL.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when the key is absent or has expired.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a minimal string cache with per-entry expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
