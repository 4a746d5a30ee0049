// Package users declares the server-side repository contract for user rows.
package users

import (
	"context"

	"github.com/aturbins/hushwire/internal/server/models"
)

// Repository defines persistence operations for users. Users are write-once
// apart from the profile photo URL.
type Repository interface {
	// Create inserts a new user. A username or email collision returns
	// common.ErrDuplicateIdentity.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByID returns the user with the given id, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByIdentifier looks a user up by username or email
	// (whichever matches), or returns common.ErrorNotFound.
	GetByIdentifier(ctx context.Context, identifier string) (*models.User, error)

	// ExistsByUsernameOrEmail reports whether either value is taken.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	// UpdatePhotoURL sets the only mutable user field.
	UpdatePhotoURL(ctx context.Context, id, photoURL string) error
}
