package api

import "time"

type registerStartRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Blinded  []byte `json:"blinded"`
}

// RegisterFinishParams is the registration upload: the protocol record plus
// the public and wrapped key bundle.
type RegisterFinishParams struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Record   []byte `json:"record"`

	PublicIdentityKey []byte `json:"publicIdentityKey"`
	PublicSigningKey  []byte `json:"publicSigningKey"`

	WrappedIdentityKey []byte `json:"wrappedIdentityKey"`
	IdentityNonce      []byte `json:"identityNonce"`
	IdentitySalt       []byte `json:"identitySalt"`

	WrappedSigningKey []byte `json:"wrappedSigningKey"`
	SigningNonce      []byte `json:"signingNonce"`
	SigningSalt       []byte `json:"signingSalt"`
}

type registerFinishResponse struct {
	UserID string `json:"userId"`
}

type loginStartRequest struct {
	Identifier      string `json:"identifier"`
	Blinded         []byte `json:"blinded"`
	ClientEphemeral []byte `json:"clientEphemeral"`
}

type loginFinishRequest struct {
	Identifier string `json:"identifier"`
	Signature  []byte `json:"signature"`
	MAC        []byte `json:"mac"`
}

// KeyBundle carries the wrapped private keys back to the client at login.
type KeyBundle struct {
	PublicIdentityKey []byte `json:"publicIdentityKey"`
	PublicSigningKey  []byte `json:"publicSigningKey"`

	WrappedIdentityKey []byte `json:"wrappedIdentityKey"`
	IdentityNonce      []byte `json:"identityNonce"`
	IdentitySalt       []byte `json:"identitySalt"`

	WrappedSigningKey []byte `json:"wrappedSigningKey"`
	SigningNonce      []byte `json:"signingNonce"`
	SigningSalt       []byte `json:"signingSalt"`
}

// LoginResult is the login-finish response body.
type LoginResult struct {
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	AccessToken string    `json:"accessToken"`
	Keys        KeyBundle `json:"keys"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Peer is another user's public view.
type Peer struct {
	UserID            string `json:"userId"`
	Username          string `json:"username"`
	PublicIdentityKey []byte `json:"publicIdentityKey"`
	PublicSigningKey  []byte `json:"publicSigningKey"`
	PhotoURL          string `json:"photoUrl,omitempty"`
}

type ensureChatRequest struct {
	Peer string `json:"peer"`
}

// Chat is one conversation as the server reports it.
type Chat struct {
	ChatID string `json:"chatId"`
	Peer   *Peer  `json:"peer,omitempty"`
	PeerID string `json:"peerId,omitempty"`
	Unread int64  `json:"unread"`
}

// Message is a stored ciphertext envelope.
type Message struct {
	ID                  string    `json:"id"`
	ChatID              string    `json:"chatId"`
	SenderID            string    `json:"senderId"`
	ReceiverID          string    `json:"receiverId"`
	Ciphertext          []byte    `json:"ciphertext"`
	Nonce               []byte    `json:"nonce"`
	Signature           []byte    `json:"signature"`
	SenderIdentityKey   []byte    `json:"senderIdentityKey"`
	ReceiverIdentityKey []byte    `json:"receiverIdentityKey"`
	SenderSigningKey    []byte    `json:"senderSigningKey"`
	SentAt              time.Time `json:"sentAt"`
	CreatedAt           time.Time `json:"createdAt"`
}

type avatarUploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type setPhotoRequest struct {
	Key string `json:"key"`
}

type errorResponse struct {
	Error string `json:"error"`
}
