// Package messages declares the repository contract for stored message
// envelopes. The server never sees plaintext; rows hold ciphertext only.
package messages

import (
	"context"

	"github.com/aturbins/hushwire/internal/server/models"
)

// Repository persists encrypted message envelopes.
type Repository interface {
	// Create inserts the envelope and fills in the generated id and
	// created_at.
	Create(ctx context.Context, msg *models.Message) (*models.Message, error)

	// ListByChat returns the most recent limit messages of the chat in
	// ascending send order.
	ListByChat(ctx context.Context, chatID string, limit int) ([]*models.Message, error)
}
