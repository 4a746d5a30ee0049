/*
Package opaque implements the password-authenticated key establishment
protocol used for registration and login. It follows the OPAQUE construction
from draft-krawczyk-cfrg-opaque-00: a DH-OPRF evaluated jointly by client
and server turns the password into a strong key (rwd) without the server
ever seeing the password, and an envelope sealed under rwd carries the
client's long-term authentication key. Login composes the OPRF with an
authenticated Diffie-Hellman exchange; on success both sides share a fresh
session key.

The server holds a single setup secret. Everything per-user (the OPRF key,
the server signing key, decoy material for unknown identifiers) is derived
from that secret with HMAC, so the registration response is bound to
(setup secret, user identifier, registration request) with no extra state.

Both the registration and the login protocol are two-message exchanges:

	Registration:  client RegistrationInit -> server RespondRegistration
	               -> client FinishRegistration (record uploaded)
	Login:         client LoginInit -> server RespondLogin (state persisted)
	               -> client FinishLogin -> server ConfirmLogin

Wire messages carry fixed-width big-endian group elements as []byte so that
JSON serialization is plain base64. Neither the password nor any value that
allows an offline dictionary attack using server-side data alone ever
crosses the wire.
*/
package opaque

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

func hasher() hash.Hash {
	return sha256.New()
}

// hmacSum is the derivation primitive for everything the server computes
// from its setup secret.
func hmacSum(key, data []byte) []byte {
	mac := hmac.New(hasher, key)
	mac.Write(data)
	return mac.Sum(nil)
}
