package opaque

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Server evaluates the server side of both protocols. All per-user material
// is derived from the setup secret, so a Server is stateless apart from the
// login states it hands back for persistence.
type Server struct {
	secret   []byte
	signPriv ed25519.PrivateKey
	signPub  ed25519.PublicKey
}

// NewServer derives the server's long-term signing key from the setup
// secret. The same secret must be used for the lifetime of the user base:
// registered envelopes pin the derived public key.
func NewServer(setupSecret []byte) *Server {
	seed := hmacSum(setupSecret, []byte("signing key v1"))[:ed25519.SeedSize]
	priv := ed25519.NewKeyFromSeed(seed)
	return &Server{
		secret:   setupSecret,
		signPriv: priv,
		signPub:  priv.Public().(ed25519.PublicKey),
	}
}

// PublicKey returns the server's public signing key.
func (s *Server) PublicKey() ed25519.PublicKey { return s.signPub }

// RespondRegistration evaluates the OPRF for a registration request. The
// response is fully determined by (setup secret, identifier, request).
func (s *Server) RespondRegistration(identifier string, req *RegistrationRequest) (*RegistrationResponse, error) {
	k := userOPRFKey(s.secret, identifier)
	v, b, err := oprf2(dhGroup.Int(req.Blinded), k)
	if err != nil {
		return nil, err
	}
	return &RegistrationResponse{
		V:               dhGroup.Bytes(v),
		B:               dhGroup.Bytes(b),
		ServerPublicKey: append([]byte(nil), s.signPub...),
	}, nil
}

// RespondLogin evaluates the first server round of login. record is the
// user's stored registration record; pass nil for an unknown identifier to
// get an indistinguishable decoy response (anti-enumeration). The returned
// state must be persisted and consumed exactly once by ConfirmLogin.
func (s *Server) RespondLogin(identifier string, record *RegistrationRecord, req *LoginRequest) (*LoginResponse, *ServerLoginState, error) {
	k := userOPRFKey(s.secret, identifier)
	v, b, err := oprf2(dhGroup.Int(req.Blinded), k)
	if err != nil {
		return nil, nil, err
	}

	clientEph := dhGroup.Int(req.ClientEphemeral)
	if !isInGroup(clientEph, dhGroup.p) || isInSmallSubgroup(clientEph, dhGroup.p) {
		return nil, nil, ErrAuthFailed
	}

	y, err := generatePrivateKey(dhGroup)
	if err != nil {
		return nil, nil, err
	}
	serverEph := generatePublicKey(dhGroup, y)

	transcript := loginTranscript(req.ClientEphemeral, dhGroup.Bytes(serverEph))
	sig := ed25519.Sign(s.signPriv, transcript)

	sessionKey, macKey, err := dhSecrets(sharedSecret(dhGroup, y, clientEph))
	if err != nil {
		return nil, nil, err
	}

	decoy := record == nil
	envBlob, authPub := s.recordOrDecoy(identifier, record)

	resp := &LoginResponse{
		V:               dhGroup.Bytes(v),
		B:               dhGroup.Bytes(b),
		Envelope:        envBlob,
		ServerEphemeral: dhGroup.Bytes(serverEph),
		Signature:       sig,
		MAC:             hmacSum(macKey, s.signPub),
	}
	state := &ServerLoginState{
		ClientEphemeral: req.ClientEphemeral,
		ServerEphemeral: dhGroup.Bytes(serverEph),
		MACKey:          macKey,
		SessionKey:      sessionKey,
		AuthPublicKey:   authPub,
		Decoy:           decoy,
	}
	return resp, state, nil
}

// ConfirmLogin validates the client's finish message against a persisted
// login state. On success it returns the shared session key; any failure,
// including a decoy state, returns ErrAuthFailed.
func (s *Server) ConfirmLogin(state *ServerLoginState, fin *LoginFinish) ([]byte, error) {
	if state.Decoy || len(state.AuthPublicKey) != ed25519.PublicKeySize {
		return nil, ErrAuthFailed
	}
	transcript := loginTranscript(state.ClientEphemeral, state.ServerEphemeral)
	if !ed25519.Verify(ed25519.PublicKey(state.AuthPublicKey), transcript, fin.Signature) {
		return nil, ErrAuthFailed
	}
	if !hmac.Equal(fin.MAC, hmacSum(state.MACKey, state.AuthPublicKey)) {
		return nil, ErrAuthFailed
	}
	return state.SessionKey, nil
}

// recordOrDecoy returns the envelope blob and auth public key to use in a
// login response. For unknown identifiers it fabricates both
// deterministically from the setup secret, so repeated probes for the same
// identifier see the same bytes.
func (s *Server) recordOrDecoy(identifier string, record *RegistrationRecord) (envBlob, authPub []byte) {
	if record != nil {
		return record.Envelope, record.AuthPublicKey
	}

	// Envelope-sized pseudorandom blob: nonce + sealed seed/pubkey + tag.
	size := chacha20poly1305.NonceSize + ed25519.SeedSize + ed25519.PublicKeySize + chacha20poly1305.Overhead
	blob := make([]byte, size)
	stream := hkdf.New(sha256.New, hmacSum(s.secret, append([]byte("decoy:"), identifier...)), nil, nil)
	if _, err := io.ReadFull(stream, blob); err != nil {
		panic(err)
	}

	seed := hmacSum(s.secret, append([]byte("decoy key:"), identifier...))[:ed25519.SeedSize]
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return blob, pub
}

// loginTranscript hashes the ephemeral exchange into the value both sides
// sign and verify.
func loginTranscript(clientEph, serverEph []byte) []byte {
	h := hasher()
	h.Write(clientEph)
	h.Write(serverEph)
	return h.Sum(nil)
}

// dhSecrets stretches the raw DH shared secret into the session key and the
// MAC key.
func dhSecrets(shared []byte) (sessionKey, macKey []byte, err error) {
	kdf := hkdf.New(sha256.New, shared, nil, nil)
	sessionKey = make([]byte, 32)
	macKey = make([]byte, 32)
	if _, err = io.ReadFull(kdf, sessionKey); err != nil {
		return nil, nil, err
	}
	if _, err = io.ReadFull(kdf, macKey); err != nil {
		return nil, nil, err
	}
	return sessionKey, macKey, nil
}
