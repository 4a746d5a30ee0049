// Package presence tracks which users currently hold a live realtime
// connection. A user has at most one active connection; a newer login
// replaces the older one rather than sharing delivery with it.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/aturbins/hushwire/internal/server/cache"
)

// Conn is the registry's view of a realtime connection. Implementations
// must make Send and Close safe for concurrent use.
type Conn interface {
	// ID identifies this particular connection, not the user.
	ID() string
	// Send queues the value for delivery to the peer.
	Send(v any) error
	// Close tears the connection down.
	Close()
}

const cacheKeyPrefix = "presence:"

// Registry maps user ids to their single active connection. All checks and
// swaps happen under one mutex, so replace and remove cannot interleave.
type Registry struct {
	mu    sync.Mutex
	conns map[string]Conn

	cache    cache.Cache
	cacheTTL time.Duration
}

func NewRegistry(c cache.Cache, cacheTTL time.Duration) *Registry {
	return &Registry{
		conns:    make(map[string]Conn),
		cache:    c,
		cacheTTL: cacheTTL,
	}
}

// Register installs conn as the user's active connection and returns the
// connection it displaced, if any. The caller closes the displaced one so
// its teardown runs outside the registry lock.
func (r *Registry) Register(ctx context.Context, userID string, conn Conn) Conn {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = conn
	r.mu.Unlock()

	r.cache.Set(ctx, cacheKeyPrefix+userID, conn.ID(), r.cacheTTL)

	if old != nil && old.ID() == conn.ID() {
		return nil
	}
	return old
}

// Unregister removes the mapping only if conn is still the user's active
// connection. A disconnect that raced with a replacement is a no-op, so the
// replacement's registration survives.
func (r *Registry) Unregister(ctx context.Context, userID string, conn Conn) bool {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if !ok || current.ID() != conn.ID() {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, userID)
	r.mu.Unlock()

	r.cache.Delete(ctx, cacheKeyPrefix+userID)
	return true
}

// Get returns the user's active connection, if any.
func (r *Registry) Get(userID string) (Conn, bool) {
	r.mu.Lock()
	conn, ok := r.conns[userID]
	r.mu.Unlock()
	return conn, ok
}

// IsOnline reports whether the user has an active connection.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Get(userID)
	return ok
}

// Touch refreshes the cache TTL for a user that is still connected. Called
// from the connection's ping loop.
func (r *Registry) Touch(ctx context.Context, userID string, conn Conn) {
	r.mu.Lock()
	current, ok := r.conns[userID]
	r.mu.Unlock()
	if ok && current.ID() == conn.ID() {
		r.cache.Set(ctx, cacheKeyPrefix+userID, conn.ID(), r.cacheTTL)
	}
}
