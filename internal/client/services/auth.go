// Package services contains the application services of the CLI client:
// account handshakes, key ring handling, and encrypted chat operations.
package services

import (
	"context"
	"fmt"

	"github.com/aturbins/hushwire/internal/client/api"
	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/identity"
	"github.com/aturbins/hushwire/internal/opaque"
)

// Session is a logged-in identity: the unlocked key ring plus the ids the
// server knows us by. The ring holds the only plaintext copies of the
// private keys; Close wipes them.
type Session struct {
	UserID   string
	Username string
	Ring     *identity.KeyRing
}

func (s *Session) Close() {
	if s.Ring != nil {
		s.Ring.Wipe()
	}
}

// AuthService drives registration and login against the server. The
// password never leaves this process; only blinded protocol messages and
// wrapped keys go over the wire.
type AuthService struct {
	api *api.Client
}

func NewAuthService(client *api.Client) *AuthService {
	return &AuthService{api: client}
}

// Register runs the two-message registration handshake, generates the
// long-term key ring, wraps it under the password and uploads the bundle.
// Returns the new user id.
func (a *AuthService) Register(ctx context.Context, username, email string, password []byte) (string, error) {
	session, req, err := opaque.RegistrationInit(password)
	if err != nil {
		return "", fmt.Errorf("registration init: %w", err)
	}

	resp, err := a.api.RegisterStart(ctx, username, email, req)
	if err != nil {
		return "", err
	}

	record, err := session.Finish(resp)
	if err != nil {
		return "", fmt.Errorf("registration finish: %w", err)
	}
	recordBlob, err := record.Marshal()
	if err != nil {
		return "", fmt.Errorf("record encoding: %w", err)
	}

	ring, err := identity.Generate()
	if err != nil {
		return "", fmt.Errorf("key generation: %w", err)
	}
	defer ring.Wipe()

	identityKey, signingKey, err := ring.Wrap(password)
	if err != nil {
		return "", fmt.Errorf("key wrapping: %w", err)
	}

	identityPub := ring.IdentityPublic()

	userID, err := a.api.RegisterFinish(ctx, &api.RegisterFinishParams{
		Username: username,
		Email:    email,
		Record:   recordBlob,

		PublicIdentityKey: identityPub[:],
		PublicSigningKey:  ring.SigningPublic(),

		WrappedIdentityKey: identityKey.Ciphertext,
		IdentityNonce:      identityKey.Nonce,
		IdentitySalt:       identityKey.Salt,

		WrappedSigningKey: signingKey.Ciphertext,
		SigningNonce:      signingKey.Nonce,
		SigningSalt:       signingKey.Salt,
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

// Login runs the three-message login handshake and unlocks the key ring
// with the same password. Any protocol or unwrap failure surfaces as one
// generic credentials error.
func (a *AuthService) Login(ctx context.Context, identifier string, password []byte) (*Session, error) {
	session, req, err := opaque.LoginInit(password)
	if err != nil {
		return nil, fmt.Errorf("login init: %w", err)
	}

	resp, err := a.api.LoginStart(ctx, identifier, req)
	if err != nil {
		return nil, err
	}

	_, fin, err := session.Finish(resp)
	if err != nil {
		// A wrong password and a decoy response for an unknown user fail
		// the same way here.
		return nil, common.ErrInvalidCredentials
	}

	result, err := a.api.LoginFinish(ctx, identifier, fin)
	if err != nil {
		return nil, err
	}

	ring, err := identity.Unwrap(password,
		&identity.WrappedKey{
			Ciphertext: result.Keys.WrappedIdentityKey,
			Nonce:      result.Keys.IdentityNonce,
			Salt:       result.Keys.IdentitySalt,
		},
		&identity.WrappedKey{
			Ciphertext: result.Keys.WrappedSigningKey,
			Nonce:      result.Keys.SigningNonce,
			Salt:       result.Keys.SigningSalt,
		},
		result.Keys.PublicIdentityKey,
		result.Keys.PublicSigningKey,
	)
	if err != nil {
		return nil, common.ErrKeyUnwrapFailed
	}

	return &Session{
		UserID:   result.UserID,
		Username: result.Username,
		Ring:     ring,
	}, nil
}

// Logout drops the server cookie and local credentials.
func (a *AuthService) Logout(ctx context.Context, session *Session) error {
	if session != nil {
		session.Close()
	}
	return a.api.Logout(ctx)
}
