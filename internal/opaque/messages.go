package opaque

import (
	"encoding/json"
	"errors"
)

// ErrAuthFailed is returned whenever a protocol check fails: envelope
// authentication, signature or MAC verification. It is deliberately
// uniform; callers must not leak which check failed.
var ErrAuthFailed = errors.New("opaque: authentication failed")

// RegistrationRequest is the first registration message, client to server.
// Blinded is H'(password)*g^r; it reveals nothing about the password.
type RegistrationRequest struct {
	Blinded []byte `json:"blinded"`
}

// RegistrationResponse is the second registration message, server to
// client: the OPRF evaluation (V = g^k, B = Blinded^k) plus the server's
// public signing key, which the client pins inside its envelope.
type RegistrationResponse struct {
	V               []byte `json:"v"`
	B               []byte `json:"b"`
	ServerPublicKey []byte `json:"serverPublicKey"`
}

// RegistrationRecord is the credential the client uploads after finishing
// registration locally. The server stores it verbatim, write-once. It
// contains no material from which the password can be recovered offline.
type RegistrationRecord struct {
	Envelope      []byte `json:"envelope"`
	AuthPublicKey []byte `json:"authPublicKey"`
}

// Marshal encodes the record for verbatim storage.
func (r *RegistrationRecord) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalRecord decodes a stored registration record.
func UnmarshalRecord(b []byte) (*RegistrationRecord, error) {
	var r RegistrationRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoginRequest is the first login message, client to server: the blinded
// password element and the client's ephemeral DH public key g^x.
type LoginRequest struct {
	Blinded         []byte `json:"blinded"`
	ClientEphemeral []byte `json:"clientEphemeral"`
}

// LoginResponse is the second login message, server to client: the OPRF
// evaluation, the stored envelope, the server ephemeral g^y, a signature
// over the transcript and a MAC binding the server identity.
type LoginResponse struct {
	V               []byte `json:"v"`
	B               []byte `json:"b"`
	Envelope        []byte `json:"envelope"`
	ServerEphemeral []byte `json:"serverEphemeral"`
	Signature       []byte `json:"signature"`
	MAC             []byte `json:"mac"`
}

// LoginFinish is the third login message, client to server: the client's
// transcript signature and identity MAC. Validating it proves the client
// could open the envelope, i.e. knows the password.
type LoginFinish struct {
	Signature []byte `json:"signature"`
	MAC       []byte `json:"mac"`
}

// ServerLoginState is the server's half-open login session. It is persisted
// (serialized) between RespondLogin and ConfirmLogin and must be consumed
// exactly once.
type ServerLoginState struct {
	ClientEphemeral []byte `json:"clientEphemeral"`
	ServerEphemeral []byte `json:"serverEphemeral"`
	MACKey          []byte `json:"macKey"`
	SessionKey      []byte `json:"sessionKey"`
	AuthPublicKey   []byte `json:"authPublicKey"`
	Decoy           bool   `json:"decoy,omitempty"`
}

// Marshal encodes the state for persistence as an opaque blob.
func (s *ServerLoginState) Marshal() ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalLoginState decodes a persisted login state blob.
func UnmarshalLoginState(b []byte) (*ServerLoginState, error) {
	var s ServerLoginState
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
