package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/vpnsetup/strongswan/protocol"
)

// aeadCipher completes the teacher's never-implemented aeadTransform stub:
// a real crypto/cipher.AEAD (GCM) wired to an EncrTransformId. EspCipherSuite
// holds it in its own field next to simpleCipher; unlike simpleCipher it
// carries Seal/Open/Overhead.
type aeadCipher struct {
	protocol.EncrTransformId
	icvLen int
	newAead func(key []byte) (cipher.AEAD, error)
}

func aeadTransform(id uint16, keyLen int) (*aeadCipher, int, bool) {
	switch protocol.EncrTransformId(id) {
	case protocol.AEAD_AES_GCM_8:
		return &aeadCipher{EncrTransformId: protocol.AEAD_AES_GCM_8, icvLen: 8, newAead: newAesGcm}, keyLen, true
	case protocol.AEAD_AES_GCM_12:
		return &aeadCipher{EncrTransformId: protocol.AEAD_AES_GCM_12, icvLen: 12, newAead: newAesGcm}, keyLen, true
	case protocol.AEAD_AES_GCM_16:
		return &aeadCipher{EncrTransformId: protocol.AEAD_AES_GCM_16, icvLen: 16, newAead: newAesGcm}, keyLen, true
	default:
		return nil, 0, false
	}
}

func newAesGcm(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (a *aeadCipher) String() string { return a.EncrTransformId.String() }

// Overhead returns the per-packet byte cost of this AEAD transform: an
// explicit IV plus the truncated integrity check value, no separate padding
// (GCM is a stream cipher internally).
func (a *aeadCipher) Overhead(clear []byte) int {
	return gcmIvLen + a.icvLen
}

const gcmIvLen = 8

// Seal authenticates aad and encrypts plaintext under key, returning
// iv|ciphertext|tag the way an ESP packet carries them.
func (a *aeadCipher) Seal(key, aad, plaintext []byte) ([]byte, error) {
	aead, err := a.newAead(key)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, gcmIvLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, err
	}
	nonce := append(append([]byte{}, iv...), make([]byte, aead.NonceSize()-gcmIvLen)...)
	sealed := aead.Seal(nil, nonce, plaintext, aad)
	return append(iv, sealed...), nil
}

// Open verifies and decrypts an iv|ciphertext|tag blob produced by Seal.
func (a *aeadCipher) Open(key, aad, sealed []byte) ([]byte, error) {
	if len(sealed) < gcmIvLen+a.icvLen {
		return nil, fmt.Errorf("aead ciphertext too short: %d bytes", len(sealed))
	}
	aead, err := a.newAead(key)
	if err != nil {
		return nil, err
	}
	iv := sealed[:gcmIvLen]
	nonce := append(append([]byte{}, iv...), make([]byte, aead.NonceSize()-gcmIvLen)...)
	return aead.Open(nil, nonce, sealed[gcmIvLen:], aad)
}
