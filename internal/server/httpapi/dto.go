package httpapi

import (
	"time"

	"github.com/aturbins/hushwire/internal/opaque"
)

type registerStartRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Blinded  []byte `json:"blinded"`
}

type registerFinishRequest struct {
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

// keyBundle is the wrapped private key material the client needs to unlock
// its key ring after login. Everything here is ciphertext or public.
type keyBundle struct {
	PublicIdentityKey []byte `json:"publicIdentityKey"`
	PublicSigningKey  []byte `json:"publicSigningKey"`

	WrappedIdentityKey []byte `json:"wrappedIdentityKey"`
	IdentityNonce      []byte `json:"identityNonce"`
	IdentitySalt       []byte `json:"identitySalt"`

	WrappedSigningKey []byte `json:"wrappedSigningKey"`
	SigningNonce      []byte `json:"signingNonce"`
	SigningSalt       []byte `json:"signingSalt"`
}

type loginFinishResponse struct {
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	AccessToken string    `json:"accessToken"`
	Keys        keyBundle `json:"keys"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type peerResponse struct {
	UserID            string `json:"userId"`
	Username          string `json:"username"`
	PublicIdentityKey []byte `json:"publicIdentityKey"`
	PublicSigningKey  []byte `json:"publicSigningKey"`
	PhotoURL          string `json:"photoUrl,omitempty"`
}

type ensureChatRequest struct {
	Peer string `json:"peer"`
}

type chatResponse struct {
	ChatID string        `json:"chatId"`
	Peer   *peerResponse `json:"peer,omitempty"`
	PeerID string        `json:"peerId,omitempty"`
	Unread int64         `json:"unread"`
}

type messageResponse struct {
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

func (r *loginStartRequest) opaqueRequest() *opaque.LoginRequest {
	return &opaque.LoginRequest{Blinded: r.Blinded, ClientEphemeral: r.ClientEphemeral}
}

func (r *loginFinishRequest) opaqueFinish() *opaque.LoginFinish {
	return &opaque.LoginFinish{Signature: r.Signature, MAC: r.MAC}
}
