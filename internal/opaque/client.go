package opaque

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"math/big"
)

// RegistrationSession keeps the client-side state between RegistrationInit
// and FinishRegistration.
type RegistrationSession struct {
	password []byte
	r        *big.Int
}

// RegistrationInit starts registration on the client. The returned request
// is sent to the server; the session stays local.
func RegistrationInit(password []byte) (*RegistrationSession, *RegistrationRequest, error) {
	a, r, err := oprf1(password)
	if err != nil {
		return nil, nil, err
	}
	return &RegistrationSession{password: password, r: r},
		&RegistrationRequest{Blinded: dhGroup.Bytes(a)}, nil
}

// Finish completes registration locally: it unblinds the OPRF output,
// generates the client's long-term authentication key, and seals the
// envelope. The returned record is uploaded and stored verbatim.
func (s *RegistrationSession) Finish(resp *RegistrationResponse) (*RegistrationRecord, error) {
	rwd, err := oprf3(s.password, dhGroup.Int(resp.V), dhGroup.Int(resp.B), s.r)
	if err != nil {
		return nil, err
	}

	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	authPriv := ed25519.NewKeyFromSeed(seed)

	if len(resp.ServerPublicKey) != ed25519.PublicKeySize {
		return nil, ErrAuthFailed
	}
	blob, err := sealEnvelope(rwd, &envelope{
		authSeed:  seed,
		serverPub: ed25519.PublicKey(resp.ServerPublicKey),
	})
	if err != nil {
		return nil, err
	}

	return &RegistrationRecord{
		Envelope:      blob,
		AuthPublicKey: append([]byte(nil), authPriv.Public().(ed25519.PublicKey)...),
	}, nil
}

// LoginSession keeps the client-side state between LoginInit and
// FinishLogin.
type LoginSession struct {
	password  []byte
	r         *big.Int
	x         *big.Int
	clientEph *big.Int
}

// LoginInit starts login on the client: a fresh OPRF blinding plus a fresh
// ephemeral DH key.
func LoginInit(password []byte) (*LoginSession, *LoginRequest, error) {
	a, r, err := oprf1(password)
	if err != nil {
		return nil, nil, err
	}
	x, err := generatePrivateKey(dhGroup)
	if err != nil {
		return nil, nil, err
	}
	eph := generatePublicKey(dhGroup, x)
	return &LoginSession{password: password, r: r, x: x, clientEph: eph},
		&LoginRequest{Blinded: dhGroup.Bytes(a), ClientEphemeral: dhGroup.Bytes(eph)}, nil
}

// Finish processes the server's login response. On success it returns the
// shared session key and the finish message for the server. A wrong
// password surfaces as ErrAuthFailed when the envelope fails to open; all
// other verification failures return the same error.
func (s *LoginSession) Finish(resp *LoginResponse) (sessionKey []byte, fin *LoginFinish, err error) {
	rwd, err := oprf3(s.password, dhGroup.Int(resp.V), dhGroup.Int(resp.B), s.r)
	if err != nil {
		return nil, nil, err
	}
	env, err := openEnvelope(rwd, resp.Envelope)
	if err != nil {
		return nil, nil, ErrAuthFailed
	}

	serverEph := dhGroup.Int(resp.ServerEphemeral)
	if !isInGroup(serverEph, dhGroup.p) || isInSmallSubgroup(serverEph, dhGroup.p) {
		return nil, nil, ErrAuthFailed
	}

	transcript := loginTranscript(dhGroup.Bytes(s.clientEph), resp.ServerEphemeral)
	if !ed25519.Verify(env.serverPub, transcript, resp.Signature) {
		return nil, nil, ErrAuthFailed
	}

	sessionKey, macKey, err := dhSecrets(sharedSecret(dhGroup, s.x, serverEph))
	if err != nil {
		return nil, nil, err
	}
	if !hmac.Equal(resp.MAC, hmacSum(macKey, env.serverPub)) {
		return nil, nil, ErrAuthFailed
	}

	authPriv := ed25519.NewKeyFromSeed(env.authSeed)
	fin = &LoginFinish{
		Signature: ed25519.Sign(authPriv, transcript),
		MAC:       hmacSum(macKey, authPriv.Public().(ed25519.PublicKey)),
	}
	return sessionKey, fin, nil
}
