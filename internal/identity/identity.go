// Package identity manages per-user long-term key material: an X25519 key
// pair for key agreement and an Ed25519 key pair for signing. Private keys
// exist in plaintext only inside a KeyRing; at rest they are wrapped under a
// password-derived KEK with authenticated encryption.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/aturbins/hushwire/internal/common"
	"github.com/aturbins/hushwire/internal/keycodec"
)

// KeyRing carries a user's unwrapped private keys together with the public
// halves. It is deliberately not serializable: fields are unexported, there
// are no marshal methods, and callers are expected to Wipe it when the
// session ends.
type KeyRing struct {
	identityPriv [32]byte
	signingPriv  ed25519.PrivateKey

	identityPub [32]byte
	signingPub  ed25519.PublicKey
}

// IdentityPrivate returns the X25519 private scalar.
func (k *KeyRing) IdentityPrivate() [32]byte { return k.identityPriv }

// IdentityPublic returns the X25519 public key.
func (k *KeyRing) IdentityPublic() [32]byte { return k.identityPub }

// SigningPrivate returns the Ed25519 private key.
func (k *KeyRing) SigningPrivate() ed25519.PrivateKey { return k.signingPriv }

// SigningPublic returns the Ed25519 public key.
func (k *KeyRing) SigningPublic() ed25519.PublicKey { return k.signingPub }

// Wipe zeroes the private key material. Best effort: Go gives no guarantee
// about copies the GC may have made.
//
//go:noinline
func (k *KeyRing) Wipe() {
	for i := range k.identityPriv {
		k.identityPriv[i] = 0
	}
	for i := range k.signingPriv {
		k.signingPriv[i] = 0
	}
}

// Generate creates a fresh KeyRing: a clamped X25519 pair (RFC 7748) and an
// Ed25519 pair.
func Generate() (*KeyRing, error) {
	var ring KeyRing

	if _, err := rand.Read(ring.identityPriv[:]); err != nil {
		return nil, err
	}
	ring.identityPriv[0] &= 248
	ring.identityPriv[31] &= 127
	ring.identityPriv[31] |= 64

	pub, err := curve25519.X25519(ring.identityPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(ring.identityPub[:], pub)

	edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	ring.signingPriv = edPriv
	ring.signingPub = edPub

	return &ring, nil
}

// WrappedKey is one private key encrypted under a password-derived KEK,
// together with the nonce and the KDF salt needed to unwrap it. This is the
// only form in which private keys ever leave the client.
type WrappedKey struct {
	Ciphertext []byte
	Nonce      []byte
	Salt       []byte
}

// Wrap encrypts both private keys, each independently: fresh salt, fresh
// KEK, fresh nonce per key. Returns the wrapped identity key and the wrapped
// signing key.
func (k *KeyRing) Wrap(password []byte) (identityKey, signingKey *WrappedKey, err error) {
	identityKey, err = wrap(password, k.identityPriv[:])
	if err != nil {
		return nil, nil, err
	}
	signingKey, err = wrap(password, k.signingPriv)
	if err != nil {
		return nil, nil, err
	}
	return identityKey, signingKey, nil
}

// Unwrap reconstructs a KeyRing from two wrapped private keys and the
// public halves stored server-side. A wrong password or corrupted
// ciphertext yields common.ErrKeyUnwrapFailed; garbage key material is
// never returned.
func Unwrap(password []byte, identityKey, signingKey *WrappedKey, identityPub, signingPub []byte) (*KeyRing, error) {
	idPriv, err := unwrap(password, identityKey)
	if err != nil {
		return nil, err
	}
	sigPriv, err := unwrap(password, signingKey)
	if err != nil {
		return nil, err
	}
	if len(idPriv) != 32 || len(sigPriv) != ed25519.PrivateKeySize {
		return nil, common.ErrKeyUnwrapFailed
	}
	if len(identityPub) != 32 || len(signingPub) != ed25519.PublicKeySize {
		return nil, common.ErrKeyUnwrapFailed
	}

	var ring KeyRing
	copy(ring.identityPriv[:], idPriv)
	ring.signingPriv = ed25519.PrivateKey(sigPriv)
	copy(ring.identityPub[:], identityPub)
	ring.signingPub = ed25519.PublicKey(signingPub)
	return &ring, nil
}

func wrap(password, plaintext []byte) (*WrappedKey, error) {
	salt := common.GenerateRandByteArray(keycodec.SaltBytes)
	kek := keycodec.DeriveKEK(password, salt)
	defer zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, err
	}
	nonce := common.GenerateRandByteArray(chacha20poly1305.NonceSize)
	ct := aead.Seal(nil, nonce, plaintext, nil)
	return &WrappedKey{Ciphertext: ct, Nonce: nonce, Salt: salt}, nil
}

func unwrap(password []byte, w *WrappedKey) ([]byte, error) {
	if w == nil || len(w.Salt) != keycodec.SaltBytes || len(w.Nonce) != chacha20poly1305.NonceSize {
		return nil, common.ErrKeyUnwrapFailed
	}
	kek := keycodec.DeriveKEK(password, w.Salt)
	defer zero(kek)

	aead, err := chacha20poly1305.New(kek)
	if err != nil {
		return nil, common.ErrKeyUnwrapFailed
	}
	pt, err := aead.Open(nil, w.Nonce, w.Ciphertext, nil)
	if err != nil {
		return nil, common.ErrKeyUnwrapFailed
	}
	return pt, nil
}

//go:noinline
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
