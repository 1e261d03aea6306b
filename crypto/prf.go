package crypto

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/vpnsetup/strongswan/protocol"
)

// Prf is a pseudo-random function keyed with a secret, as used for
// SKEYSEED/KEYMAT derivation and the prf+ expansion function (RFC 7296
// §2.13). Len is the PRF's fixed output length in bytes.
type Prf struct {
	Len int
	New func(key []byte) hash.Hash
}

// NewPrf resolves a negotiated PRF transform id to its implementation. The
// IKE_SA's PRF is negotiated outside this task's scope (§1 non-goals); the
// keymat accepts it as an opaque *Prf supplied by the caller.
func NewPrf(id protocol.PrfTransformId) (*Prf, error) {
	return prfTransform(uint16(id))
}

func prfTransform(id uint16) (*Prf, error) {
	switch protocol.PrfTransformId(id) {
	case protocol.PRF_HMAC_SHA1:
		return &Prf{Len: sha1.Size, New: func(key []byte) hash.Hash { return hmac.New(sha1.New, key) }}, nil
	case protocol.PRF_HMAC_SHA2_256:
		return &Prf{Len: sha256.Size, New: func(key []byte) hash.Hash { return hmac.New(sha256.New, key) }}, nil
	case protocol.PRF_HMAC_SHA2_384:
		return &Prf{Len: sha512.Size384, New: func(key []byte) hash.Hash { return hmac.New(sha512.New384, key) }}, nil
	case protocol.PRF_HMAC_SHA2_512:
		return &Prf{Len: sha512.Size, New: func(key []byte) hash.Hash { return hmac.New(sha512.New, key) }}, nil
	default:
		return nil, fmt.Errorf("unsupported prf transform %d", id)
	}
}

// Apply is the one-shot prf(key, data) used directly for SKEYSEED.
func (p *Prf) Apply(key, data []byte) []byte {
	h := p.New(key)
	h.Write(data)
	return h.Sum(nil)
}

// Plus is prf+(key, data) from RFC 7296 §2.13: T1 = prf(key, data | 0x01),
// Tn = prf(key, T(n-1) | data | n), output = T1 | T2 | ... truncated to n.
func (p *Prf) Plus(key, data []byte, n int) []byte {
	var out, prev []byte
	for round := byte(1); len(out) < n; round++ {
		h := p.New(key)
		h.Write(prev)
		h.Write(data)
		h.Write([]byte{round})
		prev = h.Sum(nil)
		out = append(out, prev...)
	}
	return out[:n]
}

// integrityTransform resolves the HMAC used for INTEG transforms (AUTH_*)
// to its output length and truncated (ICV) length.
type integrity struct {
	macFunc  func(key, data []byte) []byte
	macLen   int // truncated ICV length carried on the wire
	keyLen   int // key length this HMAC wants
}

func integrityTransform(id uint16) (*integrity, error) {
	switch protocol.AuthTransformId(id) {
	case protocol.AUTH_HMAC_SHA1_96:
		return &integrity{macLen: 12, keyLen: sha1.Size, macFunc: hmacFunc(sha1.New)}, nil
	case protocol.AUTH_HMAC_SHA2_256_128:
		return &integrity{macLen: 16, keyLen: sha256.Size, macFunc: hmacFunc(sha256.New)}, nil
	case protocol.AUTH_HMAC_SHA2_384_192:
		return &integrity{macLen: 24, keyLen: sha512.Size384, macFunc: hmacFunc(sha512.New384)}, nil
	case protocol.AUTH_HMAC_SHA2_512_256:
		return &integrity{macLen: 32, keyLen: sha512.Size, macFunc: hmacFunc(sha512.New)}, nil
	case protocol.AUTH_NONE:
		return &integrity{macLen: 0, keyLen: 0, macFunc: func([]byte, []byte) []byte { return nil }}, nil
	default:
		return nil, fmt.Errorf("unsupported integrity transform %d", id)
	}
}

func hmacFunc(newHash func() hash.Hash) func(key, data []byte) []byte {
	return func(key, data []byte) []byte {
		h := hmac.New(newHash, key)
		h.Write(data)
		return h.Sum(nil)
	}
}
