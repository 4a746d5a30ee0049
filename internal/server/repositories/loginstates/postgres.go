// Package loginstates provides a PostgreSQL-backed repository for login
// protocol state with single-row-per-identity semantics.
package loginstates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

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

// Create relies on the UNIQUE (username, email) constraint: a concurrent
// second login-start loses the race and gets ErrLoginInProgress instead of
// overwriting the first attempt's state.
func (r *PostgresRepository) Create(ctx context.Context, state *models.LoginState) error {
	query := `
		INSERT INTO login_states (username, email, state)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, state.Username, state.Email, state.State).
		Scan(&state.ID, &state.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return common.ErrLoginInProgress
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Consume deletes the row and returns it in one statement, so two
// concurrent finish requests cannot both validate against the same state.
func (r *PostgresRepository) Consume(ctx context.Context, username, email string) (*models.LoginState, error) {
	query := `
		DELETE FROM login_states
		WHERE username = $1 AND email = $2
		RETURNING id, username, email, state, created_at
	`
	s := &models.LoginState{}
	err := r.db.QueryRowContext(ctx, query, username, email).
		Scan(&s.ID, &s.Username, &s.Email, &s.State, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrLoginStateMissing
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

// DeleteExpired reaps rows older than the cutoff.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM login_states WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
