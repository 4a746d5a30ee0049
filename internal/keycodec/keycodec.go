// Package keycodec holds the small codec layer shared by client and server:
// base64 conversions for key material on the wire and the password-based
// derivation of the key-encryption-key (KEK) used to wrap private keys.
package keycodec

import (
	"encoding/base64"

	"golang.org/x/crypto/argon2"
)

const (
	// KEKBytes is the size of the derived key-encryption-key.
	KEKBytes = 32

	// SaltBytes is the size of the random salt fed into the KDF.
	SaltBytes = 16

	// Argon2id work parameters. Changing these invalidates every wrapped
	// key already uploaded, so treat them as part of the storage format.
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Encode returns the standard base64 encoding of b, the only key encoding
// used on the wire and in the document store.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// DeriveKEK derives a 32-byte key-encryption-key from a password and salt
// using Argon2id. The KEK is used only to wrap private keys, never to
// encrypt messages.
func DeriveKEK(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, KEKBytes)
}
