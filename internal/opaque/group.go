package opaque

// Diffie-Hellman over Z^*_p for the 2048-bit MODP group from RFC 3526.
// Used both for the OPRF blinding and for the login key exchange.

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

type dhgroup struct {
	// Group generator.
	g *big.Int

	// Modulus.
	p *big.Int

	bitLen int
}

// Bytes encodes x mod p as a fixed-width big-endian byte slice.
func (g dhgroup) Bytes(x *big.Int) []byte {
	z := new(big.Int)
	z.Mod(x, g.p)
	b := z.Bytes()
	res := make([]byte, g.bitLen/8)
	copy(res[len(res)-len(b):], b)
	return res
}

// Int decodes a byte slice produced by Bytes.
func (g dhgroup) Int(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func group() dhgroup {
	// 2048-bit MODP Group from RFC 3526, generator 2.
	p, ok := new(big.Int).SetString("FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF6955817183995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF", 16)
	if !ok {
		panic("big.Int SetString failed")
	}
	return dhgroup{g: new(big.Int).SetInt64(2), p: p, bitLen: 2048}
}

var dhGroup = group()

// hashToGroup is the H' hash from the I-D: it maps byte slices to elements
// of Z^*_p. Deterministic for a given input.
func hashToGroup(g dhgroup, data []byte) *big.Int {
	kdf := hkdf.New(hasher, data, nil, nil)
	for {
		x, err := rand.Int(kdf, g.p)
		if err != nil {
			panic(err)
		}
		if x.Sign() != 0 {
			return x
		}
	}
}

// isInGroup reports whether x is in Z^*_p.
func isInGroup(x *big.Int, p *big.Int) bool {
	return x.Sign() == 1 && x.Cmp(p) == -1
}

// isInSmallSubgroup reports whether x belongs to a small subgroup of Z^*_p.
//
// Precondition: p is a safe prime. There are then only three subgroup
// sizes: one, two, and (p-1)/2; the first two are small.
func isInSmallSubgroup(x *big.Int, p *big.Int) bool {
	if x.Cmp(big.NewInt(1)) == 0 {
		return true
	}
	sq := new(big.Int)
	sq.Exp(x, big.NewInt(2), p)
	return sq.Cmp(big.NewInt(1)) == 0
}

func generatePrivateKey(g dhgroup) (*big.Int, error) {
	for {
		key, err := rand.Int(rand.Reader, g.p)
		if err != nil {
			return nil, err
		}
		if key.Sign() != 0 {
			return key, nil
		}
	}
}

func generatePublicKey(g dhgroup, privKey *big.Int) *big.Int {
	return new(big.Int).Exp(g.g, privKey, g.p)
}

func sharedSecret(g dhgroup, privKey, otherPubKey *big.Int) []byte {
	s := new(big.Int).Exp(otherPubKey, privKey, g.p)
	h := hasher()
	h.Write(g.Bytes(s))
	return h.Sum(nil)
}
