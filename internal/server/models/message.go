package models

import "time"

// Message is an immutable ciphertext row. The public keys of both parties
// and the sender's signing key are captured at send time, so signature
// verification keeps working even if keys rotate later.
type Message struct {
	ID         string
	ChatID     string
	SenderID   string
	ReceiverID string

	Ciphertext []byte
	Nonce      []byte
	Signature  []byte

	SenderIdentityKey   []byte
	ReceiverIdentityKey []byte
	SenderSigningKey    []byte

	// SentAt is the client-supplied timestamp; CreatedAt is the server's.
	// Ordering is by CreatedAt ascending.
	SentAt    time.Time
	CreatedAt time.Time
}
