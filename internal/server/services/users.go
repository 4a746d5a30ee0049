package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/logging"
	"github.com/aturbins/hushwire/internal/opaque"
	"github.com/aturbins/hushwire/internal/server/auth"
	"github.com/aturbins/hushwire/internal/server/config"
	"github.com/aturbins/hushwire/internal/server/models"
	"github.com/aturbins/hushwire/internal/server/repositories/repomanager"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is what a completed login hands back: the session credentials
// plus the user row, whose wrapped private keys the client needs to unlock
// its key ring locally.
type LoginResult struct {
	User       *models.User
	Tokens     *TokenPair
	SessionKey []byte
}

// RegisterFinishParams carries everything the client uploads at
// registration-finish. All key material is either public or wrapped.
type RegisterFinishParams struct {
	Username string
	Email    string
	Record   []byte

	PublicIdentityKey []byte
	PublicSigningKey  []byte

	WrappedIdentityKey []byte
	IdentityNonce      []byte
	IdentitySalt       []byte

	WrappedSigningKey []byte
	SigningNonce      []byte
	SigningSalt       []byte
}

type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	opaque                       *opaque.Server
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	loginStateTTL                time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		opaque:                       opaque.NewServer([]byte(cfg.SetupSecret)),
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		loginStateTTL:                cfg.LoginStateTTL,
	}
}

// RegisterStart answers the blinded registration request. The identity is
// reserved only at finish; start merely rejects pairs that are already taken.
func (s *UserService) RegisterStart(ctx context.Context, username, email string, req *opaque.RegistrationRequest) (*opaque.RegistrationResponse, error) {
	if username == "" || email == "" {
		return nil, common.ErrorValidation
	}

	repo := s.repomanager.Users(s.db)

	taken, err := repo.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		return nil, fmt.Errorf("error checking identity: %w", err)
	}
	if taken {
		return nil, common.ErrDuplicateIdentity
	}

	resp, err := s.opaque.RespondRegistration(email, req)
	if err != nil {
		return nil, common.ErrorValidation
	}
	return resp, nil
}

// RegisterFinish stores the registration record and key bundle verbatim.
func (s *UserService) RegisterFinish(ctx context.Context, p *RegisterFinishParams) (*models.User, error) {
	if p.Username == "" || p.Email == "" {
		return nil, common.ErrorValidation
	}
	// Reject records that would be unusable at login.
	if _, err := opaque.UnmarshalRecord(p.Record); err != nil {
		return nil, common.ErrorValidation
	}

	user := &models.User{
		Username:           p.Username,
		Email:              p.Email,
		OpaqueRecord:       p.Record,
		PublicIdentityKey:  p.PublicIdentityKey,
		PublicSigningKey:   p.PublicSigningKey,
		WrappedIdentityKey: p.WrappedIdentityKey,
		IdentityNonce:      p.IdentityNonce,
		IdentitySalt:       p.IdentitySalt,
		WrappedSigningKey:  p.WrappedSigningKey,
		SigningNonce:       p.SigningNonce,
		SigningSalt:        p.SigningSalt,
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrDuplicateIdentity) {
			return nil, common.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return user, nil
}

// LoginStart answers the first login message and persists the server's half
// of the handshake. An unknown identifier still gets a well-formed response
// derived from the setup secret, so callers cannot probe which accounts
// exist.
func (s *UserService) LoginStart(ctx context.Context, identifier string, req *opaque.LoginRequest) (*opaque.LoginResponse, error) {
	if identifier == "" {
		return nil, common.ErrorValidation
	}

	userRepo := s.repomanager.Users(s.db)
	stateRepo := s.repomanager.LoginStates(s.db)

	var record *opaque.RegistrationRecord
	stateUsername, stateEmail := identifier, identifier

	user, err := userRepo.GetByIdentifier(ctx, identifier)
	switch {
	case err == nil:
		record, err = opaque.UnmarshalRecord(user.OpaqueRecord)
		if err != nil {
			return nil, fmt.Errorf("error reading stored record: %w", err)
		}
		stateUsername, stateEmail = user.Username, user.Email
	case errors.Is(err, common.ErrorNotFound):
		// record stays nil, the protocol layer produces the decoy
	default:
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	oprfID := stateEmail
	resp, state, err := s.opaque.RespondLogin(oprfID, record, req)
	if err != nil {
		return nil, common.ErrorValidation
	}

	blob, err := state.Marshal()
	if err != nil {
		return nil, fmt.Errorf("error serializing login state: %w", err)
	}

	err = stateRepo.Create(ctx, &models.LoginState{
		Username: stateUsername,
		Email:    stateEmail,
		State:    blob,
	})
	if err != nil {
		if errors.Is(err, common.ErrLoginInProgress) {
			return nil, common.ErrLoginInProgress
		}
		return nil, fmt.Errorf("error persisting login state: %w", err)
	}

	return resp, nil
}

// LoginFinish consumes the persisted handshake state and verifies the
// client's proof. Failure modes keep their sentinels here; the HTTP
// boundary collapses them into one generic credentials response. The row
// is gone either way, so the attempt cannot be retried or replayed.
func (s *UserService) LoginFinish(ctx context.Context, identifier string, fin *opaque.LoginFinish) (*LoginResult, error) {
	userRepo := s.repomanager.Users(s.db)
	stateRepo := s.repomanager.LoginStates(s.db)

	stateUsername, stateEmail := identifier, identifier
	user, err := userRepo.GetByIdentifier(ctx, identifier)
	if err == nil {
		stateUsername, stateEmail = user.Username, user.Email
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	row, err := stateRepo.Consume(ctx, stateUsername, stateEmail)
	if err != nil {
		if errors.Is(err, common.ErrLoginStateMissing) {
			return nil, common.ErrLoginStateMissing
		}
		return nil, fmt.Errorf("error consuming login state: %w", err)
	}

	// Consumed but stale: unusable, same as if it never existed.
	if row.ExpiredAt(time.Now(), s.loginStateTTL) {
		return nil, common.ErrLoginStateExpired
	}

	state, err := opaque.UnmarshalLoginState(row.State)
	if err != nil {
		return nil, fmt.Errorf("error reading login state: %w", err)
	}

	sessionKey, err := s.opaque.ConfirmLogin(state, fin)
	if err != nil {
		return nil, common.ErrInvalidCredentials
	}

	// A decoy handshake can never reach this point with a valid proof, but
	// a missing user here still means failure, not a panic.
	if user == nil {
		return nil, common.ErrInvalidCredentials
	}

	tokens, err := s.generateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("error generating token pair: %w", err)
	}

	return &LoginResult{User: user, Tokens: tokens, SessionKey: sessionKey}, nil
}

// RefreshToken trades a valid refresh token for a new pair. Tokens are
// stateless; rotation happens by cookie replacement, not by a server-side
// denylist.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := auth.ParseToken(refreshToken, auth.KindRefresh, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	tokens, err := s.generateTokenPair(claims.UserID, claims.Email)
	if err != nil {
		return nil, fmt.Errorf("error generating token pair: %w", err)
	}
	return tokens, nil
}

// GetByID returns the user row, mapping a miss to ErrUserNotFound.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	return user, nil
}

// GetPeer resolves a username or email to the peer's id and public keys,
// which is all another user is allowed to see.
func (s *UserService) GetPeer(ctx context.Context, identifier string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}
	peer := &models.User{
		ID:                user.ID,
		Username:          user.Username,
		PublicIdentityKey: user.PublicIdentityKey,
		PublicSigningKey:  user.PublicSigningKey,
		PhotoURL:          user.PhotoURL,
	}
	return peer, nil
}

func (s *UserService) generateTokenPair(userID, email string) (*TokenPair, error) {
	accessToken, err := auth.GenerateToken(userID, email, auth.KindAccess, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	refreshToken, err := auth.GenerateToken(userID, email, auth.KindRefresh, s.jwtSecret, s.refreshTokenValidityDuration)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RunLoginStateReaper periodically deletes handshake rows past their TTL.
// Expired rows are already inert at consume time; reaping just keeps the
// table small. Blocks until ctx is cancelled.
func (s *UserService) RunLoginStateReaper(ctx context.Context, interval time.Duration, logger logging.Logger) {
	repo := s.repomanager.LoginStates(s.db)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.loginStateTTL)
			n, err := repo.DeleteExpired(ctx, cutoff)
			if err != nil {
				logger.Error(ctx, "login state reaper", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug(ctx, "reaped login states", "count", n)
			}
		}
	}
}
