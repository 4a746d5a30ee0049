// Package common defines shared constants and sentinel errors used across
// client and server layers of hushwire. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorValidation   = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Identity / registration errors.
	ErrDuplicateIdentity = errors.New("username or email already registered")
	ErrUserNotFound      = errors.New("user not found")

	// Login protocol lifecycle errors.
	ErrLoginInProgress    = errors.New("login already in progress")
	ErrLoginStateMissing  = errors.New("no pending login for identifier")
	ErrLoginStateExpired  = errors.New("pending login expired")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Client-side crypto errors.
	ErrKeyUnwrapFailed  = errors.New("private key unwrap failed")
	ErrDecryptFailed    = errors.New("message decryption failed")
	ErrSignatureInvalid = errors.New("message signature invalid")

	// Chat / delivery errors.
	ErrNotAParticipant  = errors.New("caller is not a chat participant")
	ErrorNotConnected   = errors.New("realtime connection is not established")

	// Session credential errors.
	ErrSessionInvalid = errors.New("session credential invalid")
	ErrSessionExpired = errors.New("session credential expired")
)
