// Package chats declares the repository contract for chats and their
// per-user unread counters.
package chats

import (
	"context"

	"github.com/aturbins/hushwire/internal/server/models"
)

// Repository manages chat rows and unread counters. Counter mutations are
// single atomic statements, never read-modify-write.
type Repository interface {
	// GetOrCreate returns the chat between the two users, creating it on
	// first contact. Creation is commutative in participant order: (A,B)
	// and (B,A) always resolve to the same row.
	GetOrCreate(ctx context.Context, userA, userB string) (*models.Chat, error)

	// GetByID returns the chat, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.Chat, error)

	// ListForUser returns all chats the user participates in.
	ListForUser(ctx context.Context, userID string) ([]*models.Chat, error)

	// IncrementUnread atomically adds one to the user's unread counter
	// for the chat.
	IncrementUnread(ctx context.Context, chatID, userID string) error

	// ResetUnread atomically sets the user's unread counter for the chat
	// to zero.
	ResetUnread(ctx context.Context, chatID, userID string) error

	// GetUnread returns the user's unread count for the chat.
	GetUnread(ctx context.Context, chatID, userID string) (int64, error)
}
