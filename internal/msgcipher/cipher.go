// Package msgcipher implements end-to-end message protection: a per-pair
// symmetric key derived from an X25519 agreement, authenticated encryption
// of the body, and a detached Ed25519 signature over the ciphertext and
// nonce.
package msgcipher

import (
	"crypto/ed25519"
	"crypto/sha256"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/aturbins/hushwire/internal/common"
)

// kdfInfo domain-separates the message key from any other use of the same
// DH output.
var kdfInfo = []byte("hushwire message key v1")

// Envelope is the sealed form of a message as it travels over the wire and
// rests in the store. The public keys of both parties and the sender's
// signing key are captured at send time so verification does not depend on
// current directory state.
type Envelope struct {
	ChatID     string    `json:"chatId"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`

	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	Signature  []byte `json:"signature"`

	SenderIdentityKey   []byte `json:"senderIdentityKey"`
	ReceiverIdentityKey []byte `json:"receiverIdentityKey"`
	SenderSigningKey    []byte `json:"senderSigningKey"`

	SentAt time.Time `json:"sentAt"`
}

// deriveKey computes the shared symmetric key for one (sender, receiver)
// pair: X25519 followed by HKDF-SHA256. The raw DH output is never used as
// a key directly.
func deriveKey(priv [32]byte, peerPub []byte) ([]byte, error) {
	shared, err := curve25519.X25519(priv[:], peerPub)
	if err != nil {
		return nil, err
	}
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, kdfInfo), key); err != nil {
		return nil, err
	}
	return key, nil
}

// signInput is the byte string the detached signature covers: the
// ciphertext followed by the nonce.
func signInput(ciphertext, nonce []byte) []byte {
	msg := make([]byte, 0, len(ciphertext)+len(nonce))
	msg = append(msg, ciphertext...)
	return append(msg, nonce...)
}

// Seal encrypts plaintext for the holder of receiverIdentityPub and signs
// the resulting ciphertext and nonce with the sender's signing key. The
// envelope is returned without the routing fields (ChatID, SenderID,
// ReceiverID) set; the caller owns those.
func Seal(plaintext []byte, senderIdentityPriv [32]byte, senderIdentityPub []byte,
	receiverIdentityPub []byte, senderSigningPriv ed25519.PrivateKey) (*Envelope, error) {

	key, err := deriveKey(senderIdentityPriv, receiverIdentityPub)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(chacha20poly1305.NonceSize)
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	// Detached signature over the ciphertext and nonce, not the plaintext,
	// so any auditor holding the public keys can verify without decrypting.
	signature := ed25519.Sign(senderSigningPriv, signInput(ciphertext, nonce))

	return &Envelope{
		Ciphertext:          ciphertext,
		Nonce:               nonce,
		Signature:           signature,
		SenderIdentityKey:   senderIdentityPub,
		ReceiverIdentityKey: receiverIdentityPub,
		SenderSigningKey:    append([]byte(nil), senderSigningPriv.Public().(ed25519.PublicKey)...),
		SentAt:              time.Now().UTC(),
	}, nil
}

// Open decrypts an envelope for the receiving party. ownPriv is the
// reader's identity private key; the peer's public key is taken from the
// envelope, so the same call works in either direction thanks to DH
// symmetry. Fails closed with common.ErrDecryptFailed.
func Open(env *Envelope, ownPriv [32]byte, ownPub []byte) ([]byte, error) {
	peerPub := env.SenderIdentityKey
	if bytesEqual(peerPub, ownPub) {
		peerPub = env.ReceiverIdentityKey
	}

	key, err := deriveKey(ownPriv, peerPub)
	if err != nil {
		return nil, common.ErrDecryptFailed
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, common.ErrDecryptFailed
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, common.ErrDecryptFailed
	}
	return plaintext, nil
}

// Verify checks the detached signature over the ciphertext and nonce
// against the signing key recorded in the envelope. It is independent of
// decryption, idempotent, and has no side effects. Returns
// common.ErrSignatureInvalid on any mismatch.
func Verify(env *Envelope) error {
	if len(env.SenderSigningKey) != ed25519.PublicKeySize {
		return common.ErrSignatureInvalid
	}
	if !ed25519.Verify(ed25519.PublicKey(env.SenderSigningKey), signInput(env.Ciphertext, env.Nonce), env.Signature) {
		return common.ErrSignatureInvalid
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
