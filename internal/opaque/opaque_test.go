package opaque

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func register(t *testing.T, srv *Server, identifier string, password []byte) *RegistrationRecord {
	t.Helper()
	sess, req, err := RegistrationInit(password)
	require.NoError(t, err)
	resp, err := srv.RespondRegistration(identifier, req)
	require.NoError(t, err)
	record, err := sess.Finish(resp)
	require.NoError(t, err)
	return record
}

func TestRegisterAndLogin_SharedSessionKey(t *testing.T) {
	srv := NewServer([]byte("setup secret"))
	record := register(t, srv, "alice@example.com", []byte("hunter2"))

	sess, req, err := LoginInit([]byte("hunter2"))
	require.NoError(t, err)
	resp, state, err := srv.RespondLogin("alice@example.com", record, req)
	require.NoError(t, err)

	clientKey, fin, err := sess.Finish(resp)
	require.NoError(t, err)

	serverKey, err := srv.ConfirmLogin(state, fin)
	require.NoError(t, err)

	assert.Equal(t, clientKey, serverKey)
	assert.Len(t, clientKey, 32)
}

func TestLogin_WrongPasswordFailsOnClient(t *testing.T) {
	srv := NewServer([]byte("setup secret"))
	record := register(t, srv, "alice@example.com", []byte("right"))

	sess, req, err := LoginInit([]byte("wrong"))
	require.NoError(t, err)
	resp, _, err := srv.RespondLogin("alice@example.com", record, req)
	require.NoError(t, err)

	_, _, err = sess.Finish(resp)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestLogin_StatePersistsAcrossSerialization(t *testing.T) {
	srv := NewServer([]byte("setup secret"))
	record := register(t, srv, "bob@example.com", []byte("pw"))

	sess, req, err := LoginInit([]byte("pw"))
	require.NoError(t, err)
	resp, state, err := srv.RespondLogin("bob@example.com", record, req)
	require.NoError(t, err)

	// Round-trip the state through its storage form.
	blob, err := state.Marshal()
	require.NoError(t, err)
	restored, err := UnmarshalLoginState(blob)
	require.NoError(t, err)

	clientKey, fin, err := sess.Finish(resp)
	require.NoError(t, err)
	serverKey, err := srv.ConfirmLogin(restored, fin)
	require.NoError(t, err)
	assert.Equal(t, clientKey, serverKey)
}

func TestLogin_DecoyForUnknownUser(t *testing.T) {
	srv := NewServer([]byte("setup secret"))

	sess, req, err := LoginInit([]byte("whatever"))
	require.NoError(t, err)

	resp, state, err := srv.RespondLogin("ghost@example.com", nil, req)
	require.NoError(t, err)

	// Client cannot distinguish: the envelope simply fails to open.
	_, _, err = sess.Finish(resp)
	assert.ErrorIs(t, err, ErrAuthFailed)

	// Even a forged finish cannot pass a decoy state.
	_, err = srv.ConfirmLogin(state, &LoginFinish{Signature: make([]byte, 64), MAC: make([]byte, 32)})
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestLogin_DecoyIsDeterministicPerIdentifier(t *testing.T) {
	srv := NewServer([]byte("setup secret"))

	blob1, pub1 := srv.recordOrDecoy("ghost@example.com", nil)
	blob2, pub2 := srv.recordOrDecoy("ghost@example.com", nil)
	assert.Equal(t, blob1, blob2)
	assert.Equal(t, pub1, pub2)

	blob3, _ := srv.recordOrDecoy("other@example.com", nil)
	assert.NotEqual(t, blob1, blob3)
}

func TestConfirmLogin_TamperedFinishRejected(t *testing.T) {
	srv := NewServer([]byte("setup secret"))
	record := register(t, srv, "alice@example.com", []byte("pw"))

	sess, req, err := LoginInit([]byte("pw"))
	require.NoError(t, err)
	resp, state, err := srv.RespondLogin("alice@example.com", record, req)
	require.NoError(t, err)
	_, fin, err := sess.Finish(resp)
	require.NoError(t, err)

	badSig := *fin
	badSig.Signature = append([]byte(nil), fin.Signature...)
	badSig.Signature[0] ^= 1
	_, err = srv.ConfirmLogin(state, &badSig)
	assert.ErrorIs(t, err, ErrAuthFailed)

	badMAC := *fin
	badMAC.MAC = append([]byte(nil), fin.MAC...)
	badMAC.MAC[0] ^= 1
	_, err = srv.ConfirmLogin(state, &badMAC)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestFinish_TamperedServerResponseRejected(t *testing.T) {
	srv := NewServer([]byte("setup secret"))
	record := register(t, srv, "alice@example.com", []byte("pw"))

	tamper := []struct {
		name   string
		mutate func(r *LoginResponse)
	}{
		{"signature", func(r *LoginResponse) { r.Signature[0] ^= 1 }},
		{"mac", func(r *LoginResponse) { r.MAC[0] ^= 1 }},
		{"envelope", func(r *LoginResponse) { r.Envelope[len(r.Envelope)-1] ^= 1 }},
	}

	for _, tc := range tamper {
		t.Run(tc.name, func(t *testing.T) {
			sess, req, err := LoginInit([]byte("pw"))
			require.NoError(t, err)
			resp, _, err := srv.RespondLogin("alice@example.com", record, req)
			require.NoError(t, err)

			tc.mutate(resp)
			_, _, err = sess.Finish(resp)
			assert.ErrorIs(t, err, ErrAuthFailed)
		})
	}
}

func TestRecord_MarshalRoundTrip(t *testing.T) {
	srv := NewServer([]byte("setup secret"))
	record := register(t, srv, "alice@example.com", []byte("pw"))

	blob, err := record.Marshal()
	require.NoError(t, err)
	got, err := UnmarshalRecord(blob)
	require.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestOPRF_DeterministicForSamePasswordAndKey(t *testing.T) {
	password := []byte("pw")
	k := userOPRFKey([]byte("secret"), "alice@example.com")

	run := func() []byte {
		a, r, err := oprf1(password)
		require.NoError(t, err)
		v, b, err := oprf2(a, k)
		require.NoError(t, err)
		rwd, err := oprf3(password, v, b, r)
		require.NoError(t, err)
		return rwd
	}

	assert.Equal(t, run(), run(), "unblinded OPRF output must not depend on the blinding factor")
}

func TestOPRF_RejectsInvalidElements(t *testing.T) {
	k := userOPRFKey([]byte("secret"), "alice@example.com")

	_, _, err := oprf2(big.NewInt(0), k)
	assert.Error(t, err)

	_, _, err = oprf2(big.NewInt(1), k)
	assert.Error(t, err, "unit element must be rejected")

	_, _, err = oprf2(new(big.Int).Set(dhGroup.p), k)
	assert.Error(t, err, "elements >= p must be rejected")
}

func TestServer_SigningKeyStableForSecret(t *testing.T) {
	a := NewServer([]byte("secret"))
	b := NewServer([]byte("secret"))
	c := NewServer([]byte("different"))

	assert.Equal(t, a.PublicKey(), b.PublicKey())
	assert.NotEqual(t, a.PublicKey(), c.PublicKey())
}
