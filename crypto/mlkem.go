package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
)

// mlkemSession implements Session for ML-KEM-768 (FIPS 203), the
// post-quantum half of the hybrid key-exchange scenario in this repo's
// key-exchange plan: the initiator encapsulates to the responder's public
// key sent as its "public value", and the initiator's "public value" is in
// fact the ciphertext. This matches how IKEv2 hybrid KEM drafts overload
// the existing KE payload for both DH public values and KEM artifacts.
type mlkemSession struct {
	isInitiator bool

	// initiator side
	encapPub *mlkem768.PublicKey

	// responder side
	priv *mlkem768.PrivateKey
	pub  *mlkem768.PublicKey

	ciphertext []byte
	shared     []byte
}

func newMlkemInitiatorSession(peerPublicKey []byte) (*mlkemSession, error) {
	var pk mlkem768.PublicKey
	if err := pk.Unpack(peerPublicKey); err != nil {
		return nil, fmt.Errorf("mlkem768: unpack peer public key: %w", err)
	}
	return &mlkemSession{isInitiator: true, encapPub: &pk}, nil
}

func newMlkemResponderSession() (*mlkemSession, error) {
	pub, priv, err := mlkem768.GenerateKeyPair(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &mlkemSession{pub: pub, priv: priv}, nil
}

// publicValue is what this side places in the KE payload: the responder
// publishes its encapsulation key; the initiator, once it has encapsulated,
// publishes the ciphertext. Before encapsulation (initiator, pre-peer-value)
// there is nothing to send yet — the initiator's first round only completes
// once it has the responder's public key as "peer value".
func (s *mlkemSession) publicValue() []byte {
	if !s.isInitiator {
		return s.pub.Pack()
	}
	return s.ciphertext // nil until setPeerPublicValue has run encapsulation
}

func (s *mlkemSession) setPeerPublicValue(peer []byte) error {
	if s.isInitiator {
		var pk mlkem768.PublicKey
		if err := pk.Unpack(peer); err != nil {
			return fmt.Errorf("mlkem768: unpack responder public key: %w", err)
		}
		ct, ss, err := mlkem768.Encapsulate(rand.Reader, &pk)
		if err != nil {
			return err
		}
		s.ciphertext = ct
		s.shared = ss
		return nil
	}
	ss, err := mlkem768.Decapsulate(s.priv, peer)
	if err != nil {
		return fmt.Errorf("mlkem768: decapsulate: %w", err)
	}
	s.shared = ss
	return nil
}

func (s *mlkemSession) sharedSecret() ([]byte, error) {
	if s.shared == nil {
		return nil, fmt.Errorf("mlkem768: shared secret not yet derived")
	}
	return s.shared, nil
}
