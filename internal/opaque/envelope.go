package opaque

// The envelope is the client's sealed credential store: it holds the
// client's long-term authentication key seed and the server's public
// signing key, encrypted under a key derived from the OPRF output rwd.
// It is stored server-side verbatim but the server cannot open it.

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var envelopeInfo = []byte("hushwire opaque envelope v1")

// errEnvelope deliberately carries no detail: a failed open means a wrong
// password (or a forged record) and nothing more may be revealed.
var errEnvelope = errors.New("envelope authentication failed")

type envelope struct {
	// authSeed is the Ed25519 seed of the client's long-term
	// authentication key.
	authSeed []byte

	// serverPub is the server's public signing key, pinned at
	// registration time.
	serverPub ed25519.PublicKey
}

func envelopeKey(rwd []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, rwd, nil, envelopeInfo), key); err != nil {
		return nil, err
	}
	return key, nil
}

// sealEnvelope encrypts env under rwd. Layout: nonce || ciphertext.
func sealEnvelope(rwd []byte, env *envelope) ([]byte, error) {
	if len(env.authSeed) != ed25519.SeedSize || len(env.serverPub) != ed25519.PublicKeySize {
		return nil, errors.New("malformed envelope contents")
	}
	key, err := envelopeKey(rwd)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	plaintext := make([]byte, 0, ed25519.SeedSize+ed25519.PublicKeySize)
	plaintext = append(plaintext, env.authSeed...)
	plaintext = append(plaintext, env.serverPub...)
	return append(nonce, aead.Seal(nil, nonce, plaintext, nil)...), nil
}

// openEnvelope decrypts an envelope blob with the key derived from rwd.
func openEnvelope(rwd []byte, blob []byte) (*envelope, error) {
	if len(blob) < chacha20poly1305.NonceSize {
		return nil, errEnvelope
	}
	key, err := envelopeKey(rwd)
	if err != nil {
		return nil, errEnvelope
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errEnvelope
	}
	nonce, ct := blob[:chacha20poly1305.NonceSize], blob[chacha20poly1305.NonceSize:]
	plaintext, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, errEnvelope
	}
	if len(plaintext) != ed25519.SeedSize+ed25519.PublicKeySize {
		return nil, errEnvelope
	}
	return &envelope{
		authSeed:  plaintext[:ed25519.SeedSize],
		serverPub: ed25519.PublicKey(plaintext[ed25519.SeedSize:]),
	}, nil
}
