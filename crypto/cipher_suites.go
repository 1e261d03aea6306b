package crypto

import (
	"fmt"

	"github.com/vpnsetup/strongswan/protocol"
)

// EspCipherSuite names the concrete encryption and integrity primitives a
// selected ESP proposal resolves to, and the key lengths the keymat must
// carve out of KEYMAT for each of encr_i/integ_i/encr_r/integ_r. It is the
// ESP-only narrowing of the teacher's combined IKE+ESP CipherSuite: this
// repo never encrypts the IKE control channel (message framing is owned by
// the IKE engine), so there is no Prf/DhGroup field here — those live on
// the key-exchange plan and the IKE_SA's own derivation, not on a CHILD.
type EspCipherSuite struct {
	IsAead      bool
	EncrId      protocol.EncrTransformId
	AuthId      protocol.AuthTransformId
	aead        *aeadCipher
	cipher      *simpleCipher
	integ       *integrity
	EncrKeyLen  int // bytes
	IntegKeyLen int // bytes
}

// NewEspCipherSuite builds an EspCipherSuite from a selected ESP proposal's
// transforms (spec.md §4.4 "given the selected proposal ... the keymat
// derives four keying chunks").
func NewEspCipherSuite(trs protocol.Transforms) (*EspCipherSuite, error) {
	cs := &EspCipherSuite{}
	encr, ok := trs[protocol.TRANSFORM_TYPE_ENCR]
	if !ok {
		return nil, fmt.Errorf("esp cipher suite: no ENCR transform")
	}
	keyLen := int(encr.KeyLength) / 8
	if cipher, ok := cipherTransform(encr.TransformId, keyLen); ok {
		cs.cipher = cipher
		cs.EncrId = protocol.EncrTransformId(encr.TransformId)
		cs.EncrKeyLen = keyLen
	} else if aead, aeadKeyLen, ok := aeadTransform(encr.TransformId, keyLen); ok {
		cs.aead = aead
		cs.IsAead = true
		cs.EncrId = protocol.EncrTransformId(encr.TransformId)
		cs.EncrKeyLen = aeadKeyLen
	} else {
		return nil, fmt.Errorf("esp cipher suite: unsupported ENCR transform %d", encr.TransformId)
	}
	if cs.IsAead {
		return cs, nil
	}
	integ, ok := trs[protocol.TRANSFORM_TYPE_INTEG]
	if !ok {
		return nil, fmt.Errorf("esp cipher suite: non-AEAD ENCR transform %s requires an INTEG transform", cs.EncrId)
	}
	it, err := integrityTransform(integ.TransformId)
	if err != nil {
		return nil, err
	}
	cs.integ = it
	cs.AuthId = protocol.AuthTransformId(integ.TransformId)
	cs.IntegKeyLen = it.keyLen
	return cs, nil
}

// KeyLengths returns (encrKeyLen, integKeyLen) for sizing the keymat split.
func (cs *EspCipherSuite) KeyLengths() (int, int) {
	return cs.EncrKeyLen, cs.IntegKeyLen
}

func (cs *EspCipherSuite) String() string {
	if cs.IsAead {
		return cs.EncrId.String()
	}
	return cs.EncrId.String() + "+" + cs.AuthId.String()
}
