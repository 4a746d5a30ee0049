// Package chats provides a PostgreSQL-backed repository for chats and
// unread counters.
package chats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/dbx"
	"github.com/aturbins/hushwire/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate normalises the pair and upserts. The DO UPDATE no-op makes
// RETURNING yield the row in both the insert and the conflict case, so a
// (B,A) attempt after (A,B) returns the existing chat instead of a second
// row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, userA, userB string) (*models.Chat, error) {
	if userA == userB {
		return nil, common.ErrorValidation
	}
	lo, hi := models.NormalizePair(userA, userB)

	query := `
		INSERT INTO chats (user_lo, user_hi)
		VALUES ($1, $2)
		ON CONFLICT (user_lo, user_hi) DO UPDATE SET user_lo = EXCLUDED.user_lo
		RETURNING id, user_lo, user_hi, created_at
	`
	c := &models.Chat{}
	err := r.db.QueryRowContext(ctx, query, lo, hi).
		Scan(&c.ID, &c.UserLo, &c.UserHi, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	// Counter rows exist from chat creation so increments never race with
	// row creation.
	counters := `
		INSERT INTO chat_counters (chat_id, user_id)
		VALUES ($1, $2), ($1, $3)
		ON CONFLICT (chat_id, user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, counters, c.ID, lo, hi); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	query := `SELECT id, user_lo, user_hi, created_at FROM chats WHERE id = $1`
	c := &models.Chat{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.UserLo, &c.UserHi, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) ListForUser(ctx context.Context, userID string) ([]*models.Chat, error) {
	query := `
		SELECT id, user_lo, user_hi, created_at FROM chats
		WHERE user_lo = $1 OR user_hi = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var chats []*models.Chat
	for rows.Next() {
		c := &models.Chat{}
		if err := rows.Scan(&c.ID, &c.UserLo, &c.UserHi, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return chats, nil
}

// IncrementUnread is a single UPDATE against the stored value; concurrent
// increments serialize on the row and none is lost.
func (r *PostgresRepository) IncrementUnread(ctx context.Context, chatID, userID string) error {
	query := `UPDATE chat_counters SET unread = unread + 1 WHERE chat_id = $1 AND user_id = $2`
	return r.execCounter(ctx, query, chatID, userID)
}

// ResetUnread atomically zeroes the counter.
func (r *PostgresRepository) ResetUnread(ctx context.Context, chatID, userID string) error {
	query := `UPDATE chat_counters SET unread = 0 WHERE chat_id = $1 AND user_id = $2`
	return r.execCounter(ctx, query, chatID, userID)
}

func (r *PostgresRepository) execCounter(ctx context.Context, query, chatID, userID string) error {
	res, err := r.db.ExecContext(ctx, query, chatID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) GetUnread(ctx context.Context, chatID, userID string) (int64, error) {
	query := `SELECT unread FROM chat_counters WHERE chat_id = $1 AND user_id = $2`
	var unread int64
	err := r.db.QueryRowContext(ctx, query, chatID, userID).Scan(&unread)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return unread, nil
}
