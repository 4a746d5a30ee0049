// Package loginstates declares the repository contract for ephemeral
// login-protocol state rows.
package loginstates

import (
	"context"
	"time"

	"github.com/aturbins/hushwire/internal/server/models"
)

// Repository manages LoginState rows. At most one row may exist per
// (username, email) pair at any time.
type Repository interface {
	// Create inserts a new login state. If a row already exists for the
	// pair it returns common.ErrLoginInProgress and leaves the existing
	// row untouched.
	Create(ctx context.Context, state *models.LoginState) error

	// Consume atomically deletes and returns the row for the pair. A
	// missing row yields common.ErrLoginStateMissing. The caller is
	// responsible for the TTL check; a consumed-but-expired state must be
	// treated as absent.
	Consume(ctx context.Context, username, email string) (*models.LoginState, error)

	// DeleteExpired removes rows created before the cutoff and returns
	// how many were reaped.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
