package models

import "time"

// User is created once at registration-finish. Apart from PhotoURL every
// field is immutable after creation; the private-key fields are ciphertext
// only (wrapped client-side, the server never sees them unwrapped).
type User struct {
	ID       string
	Username string
	Email    string

	// OpaqueRecord is the registration record stored verbatim. The server
	// cannot derive the password from it.
	OpaqueRecord []byte

	PublicIdentityKey []byte
	PublicSigningKey  []byte

	WrappedIdentityKey []byte
	IdentityNonce      []byte
	IdentitySalt       []byte

	WrappedSigningKey []byte
	SigningNonce      []byte
	SigningSalt       []byte

	PhotoURL string

	CreatedAt time.Time
}
