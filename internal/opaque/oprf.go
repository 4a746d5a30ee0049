package opaque

// Interactive DH-OPRF (Diffie-Hellman Oblivious Pseudorandom Function) from
// draft-krawczyk-cfrg-opaque-00. The client learns rwd = F_k(password)
// without revealing the password; the server evaluates with k without
// learning anything.

import (
	"errors"
	"math/big"
)

// oprf1 is the first OPRF step, run on the client:
//
//	choose random r, send a = H'(password)*g^r
func oprf1(password []byte) (a, r *big.Int, err error) {
	for {
		r, err = generatePrivateKey(dhGroup)
		if err != nil {
			return nil, nil, err
		}
		hPrime := hashToGroup(dhGroup, password)
		a = new(big.Int).Exp(dhGroup.g, r, dhGroup.p)
		a.Mul(hPrime, a)
		a.Mod(a, dhGroup.p)

		// a landing in a two element subgroup is vanishingly unlikely,
		// but retry with a fresh r if it happens.
		if !isInSmallSubgroup(a, dhGroup.p) {
			return a, r, nil
		}
	}
}

// oprf2 is the second OPRF step, run on the server with the per-user key k:
//
//	upon receiving a, respond with v = g^k and b = a^k
//
// Received values are checked to be non-unit group elements.
func oprf2(a, k *big.Int) (v, b *big.Int, err error) {
	if !isInGroup(a, dhGroup.p) {
		return nil, nil, errors.New("blinded element is not in the group")
	}
	if isInSmallSubgroup(a, dhGroup.p) {
		return nil, nil, errors.New("blinded element is in a small subgroup")
	}
	v = new(big.Int).Exp(dhGroup.g, k, dhGroup.p)
	b = new(big.Int).Exp(a, k, dhGroup.p)
	return v, b, nil
}

// oprf3 is the final OPRF step, run on the client:
//
//	upon receiving b and v, output rwd = H(password, v, b*v^{-r})
func oprf3(password []byte, v, b, r *big.Int) ([]byte, error) {
	if !isInGroup(v, dhGroup.p) || isInSmallSubgroup(v, dhGroup.p) {
		return nil, errors.New("v is not a valid group element")
	}
	if !isInGroup(b, dhGroup.p) || isInSmallSubgroup(b, dhGroup.p) {
		return nil, errors.New("b is not a valid group element")
	}
	z := new(big.Int).Exp(v, r, dhGroup.p)
	z.ModInverse(z, dhGroup.p)
	z.Mul(b, z)
	z.Mod(z, dhGroup.p)

	h := hasher()
	h.Write(password)
	h.Write(dhGroup.Bytes(v))
	h.Write(dhGroup.Bytes(z))
	return h.Sum(nil), nil
}

// userOPRFKey derives the per-user OPRF key k_u from the server setup
// secret and the user identifier. No per-user salt needs to be stored.
func userOPRFKey(setupSecret []byte, identifier string) *big.Int {
	seed := hmacSum(setupSecret, append([]byte("oprf:"), identifier...))
	k := hashToGroup(dhGroup, seed)
	return k
}
