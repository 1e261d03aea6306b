package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// curve25519Session implements Session for CURVE25519 (RFC 7748, wired into
// IKEv2 key exchange per RFC 8031/9370). It is the lightweight classical
// half of the hybrid post-quantum pairing this repo supports alongside
// ML-KEM-768.
type curve25519Session struct {
	priv, pub [32]byte
	peerPub   [32]byte
	hasPeer   bool
}

func newCurve25519Session() (*curve25519Session, error) {
	s := &curve25519Session{}
	if _, err := rand.Read(s.priv[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(s.priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(s.pub[:], pub)
	return s, nil
}

func (s *curve25519Session) publicValue() []byte { return s.pub[:] }

func (s *curve25519Session) setPeerPublicValue(peer []byte) error {
	if len(peer) != 32 {
		return fmt.Errorf("curve25519 public value must be 32 bytes, got %d", len(peer))
	}
	copy(s.peerPub[:], peer)
	s.hasPeer = true
	return nil
}

func (s *curve25519Session) sharedSecret() ([]byte, error) {
	if !s.hasPeer {
		return nil, fmt.Errorf("curve25519: peer public value not set")
	}
	return curve25519.X25519(s.priv[:], s.peerPub[:])
}
