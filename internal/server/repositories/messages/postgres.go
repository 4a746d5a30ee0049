// Package messages provides a PostgreSQL-backed repository for message
// envelopes.
package messages

import (
	"context"
	"fmt"

	"github.com/aturbins/hushwire/internal/dbx"
	"github.com/aturbins/hushwire/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const messageColumns = `id, chat_id, sender_id, receiver_id,
	ciphertext, nonce, signature,
	sender_identity_key, receiver_identity_key, sender_signing_key,
	sent_at, created_at`

func (r *PostgresRepository) Create(ctx context.Context, msg *models.Message) (*models.Message, error) {
	query := `
		INSERT INTO messages (chat_id, sender_id, receiver_id,
			ciphertext, nonce, signature,
			sender_identity_key, receiver_identity_key, sender_signing_key,
			sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		msg.ChatID, msg.SenderID, msg.ReceiverID,
		msg.Ciphertext, msg.Nonce, msg.Signature,
		msg.SenderIdentityKey, msg.ReceiverIdentityKey, msg.SenderSigningKey,
		msg.SentAt,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return msg, nil
}

// ListByChat selects the newest limit rows then flips them to ascending
// order, so clients always append history chronologically.
func (r *PostgresRepository) ListByChat(ctx context.Context, chatID string, limit int) ([]*models.Message, error) {
	query := `
		SELECT ` + messageColumns + ` FROM (
			SELECT ` + messageColumns + ` FROM messages
			WHERE chat_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		m := &models.Message{}
		err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.ReceiverID,
			&m.Ciphertext, &m.Nonce, &m.Signature,
			&m.SenderIdentityKey, &m.ReceiverIdentityKey, &m.SenderSigningKey,
			&m.SentAt, &m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return msgs, nil
}
