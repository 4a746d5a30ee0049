// Package users provides a PostgreSQL-backed repository for user rows.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/dbx"
	"github.com/aturbins/hushwire/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, email, opaque_record,
	pub_identity_key, pub_signing_key,
	wrapped_identity_key, identity_nonce, identity_salt,
	wrapped_signing_key, signing_nonce, signing_salt,
	photo_url, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.OpaqueRecord,
		&u.PublicIdentityKey, &u.PublicSigningKey,
		&u.WrappedIdentityKey, &u.IdentityNonce, &u.IdentitySalt,
		&u.WrappedSigningKey, &u.SigningNonce, &u.SigningSalt,
		&u.PhotoURL, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

// Create inserts a new user row; the registration record is stored verbatim
// and never updated afterwards.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, opaque_record,
			pub_identity_key, pub_signing_key,
			wrapped_identity_key, identity_nonce, identity_salt,
			wrapped_signing_key, signing_nonce, signing_salt)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.OpaqueRecord,
		user.PublicIdentityKey, user.PublicSigningKey,
		user.WrappedIdentityKey, user.IdentityNonce, user.IdentitySalt,
		user.WrappedSigningKey, user.SigningNonce, user.SigningSalt,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, common.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}

// GetByID returns the user with the given id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByIdentifier returns the user whose username or email matches.
func (r *PostgresRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, identifier))
}

// ExistsByUsernameOrEmail reports whether either value is already taken.
func (r *PostgresRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// UpdatePhotoURL sets the profile photo URL, the only mutable user field.
func (r *PostgresRepository) UpdatePhotoURL(ctx context.Context, id, photoURL string) error {
	query := `UPDATE users SET photo_url = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, photoURL)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
