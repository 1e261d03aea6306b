package crypto

import (
	"crypto/aes"

	"github.com/dgryski/go-camellia"
	"github.com/vpnsetup/strongswan/protocol"
)

// simpleCipher identifies a non-AEAD ESP encryption transform and its block
// size. Packet encryption itself is a kernel responsibility (spec.md §1
// non-goals); this repo only needs the transform identity and block size to
// size the keymat split and sanity-check the negotiated suite, so there is
// no CBC encrypt/decrypt path here — those lived in the teacher's IKE
// message-framing cipher, which this task never touches.
type simpleCipher struct {
	blockLen int
	protocol.EncrTransformId
}

func cipherTransform(cipherId uint16, keyLen int) (*simpleCipher, bool) {
	blockSize, ok := blockSizeOf(cipherId)
	if !ok {
		return nil, false
	}
	return &simpleCipher{blockLen: blockSize, EncrTransformId: protocol.EncrTransformId(cipherId)}, true
}

func blockSizeOf(cipherId uint16) (int, bool) {
	switch protocol.EncrTransformId(cipherId) {
	case protocol.ENCR_CAMELLIA_CBC:
		return camellia.BlockSize, true
	case protocol.ENCR_AES_CBC:
		return aes.BlockSize, true
	case protocol.ENCR_NULL:
		return 0, true
	default:
		return 0, false
	}
}
