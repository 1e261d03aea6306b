package crypto

import (
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vpnsetup/strongswan/protocol"
)

// Session is the opaque per-method key-exchange object spec.md §3 describes:
// it holds a local secret, accepts a peer public value, and yields a shared
// secret. One Session is instantiated per slot in the key-exchange plan.
type Session interface {
	Method() protocol.KeMethodId
	PublicValue() []byte
	SetPeerPublicValue(peer []byte) error
	SharedSecret() ([]byte, error)
}

// dhSession adapts a classical dhGroup (MODP/ECP) to the Session interface.
type dhSession struct {
	method  protocol.KeMethodId
	group   dhGroup
	priv    *big.Int
	pub     *big.Int
	shared  *big.Int
	hasPeer bool
}

func newDhSession(method protocol.KeMethodId) (*dhSession, error) {
	group, ok := kexAlgoMap[method]
	if !ok {
		return nil, fmt.Errorf("unsupported key-exchange method %d", method)
	}
	priv, err := group.private(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &dhSession{method: method, group: group, priv: priv, pub: group.public(priv)}, nil
}

func (s *dhSession) Method() protocol.KeMethodId { return s.method }
func (s *dhSession) PublicValue() []byte         { return s.pub.Bytes() }

func (s *dhSession) SetPeerPublicValue(peer []byte) error {
	theirPublic := new(big.Int).SetBytes(peer)
	shared, err := s.group.diffieHellman(theirPublic, s.priv)
	if err != nil {
		return err
	}
	s.shared = shared
	s.hasPeer = true
	return nil
}

func (s *dhSession) SharedSecret() ([]byte, error) {
	if !s.hasPeer {
		return nil, fmt.Errorf("key-exchange method %d: peer public value not set", s.method)
	}
	return s.shared.Bytes(), nil
}

// kexAlgoMap names every classical group this repo negotiates, mirroring
// the teacher's kexAlgoMap lookup from a DhTransformId to a group.
var kexAlgoMap = map[protocol.KeMethodId]dhGroup{
	protocol.MODP_2048: newModpGroup(2048, modp2048Prime, modp2048Gen),
	protocol.MODP_3072: newModpGroup(3072, modp3072Prime, modp3072Gen),
	protocol.ECP_256:   &ecpGroup{curve: elliptic.P256()},
	protocol.ECP_384:   &ecpGroup{curve: elliptic.P384()},
	protocol.ECP_521:   &ecpGroup{curve: elliptic.P521()},
}

// curve25519Wrap and mlkemWrap adapt the two non-classical backends to the
// Session interface so NewInitiatorSession and NewResponderSession can return
// a single type regardless of method family.
type curve25519Wrap struct{ s *curve25519Session }

func (w *curve25519Wrap) Method() protocol.KeMethodId        { return protocol.CURVE25519 }
func (w *curve25519Wrap) PublicValue() []byte                { return w.s.publicValue() }
func (w *curve25519Wrap) SetPeerPublicValue(peer []byte) error { return w.s.setPeerPublicValue(peer) }
func (w *curve25519Wrap) SharedSecret() ([]byte, error)       { return w.s.sharedSecret() }

type mlkemWrap struct{ s *mlkemSession }

func (w *mlkemWrap) Method() protocol.KeMethodId        { return protocol.MLKEM768 }
func (w *mlkemWrap) PublicValue() []byte                { return w.s.publicValue() }
func (w *mlkemWrap) SetPeerPublicValue(peer []byte) error { return w.s.setPeerPublicValue(peer) }
func (w *mlkemWrap) SharedSecret() ([]byte, error)       { return w.s.sharedSecret() }

// NewInitiatorSession instantiates a Session for method on the side that
// speaks first: for DH/ECP/X25519 that means generating our ephemeral pair
// up front; ML-KEM has no initiator public value until the responder's key
// arrives, so the initiator session starts empty and completes inside
// SetPeerPublicValue.
func NewInitiatorSession(method protocol.KeMethodId) (Session, error) {
	switch method {
	case protocol.CURVE25519:
		s, err := newCurve25519Session()
		if err != nil {
			return nil, err
		}
		return &curve25519Wrap{s: s}, nil
	case protocol.MLKEM768:
		return &mlkemWrap{s: &mlkemSession{isInitiator: true}}, nil
	default:
		return newDhSession(method)
	}
}

// NewResponderSession instantiates a Session for method on the side that
// replies: ML-KEM's responder generates a fresh key pair up front and
// publishes its public key as its "public value".
func NewResponderSession(method protocol.KeMethodId) (Session, error) {
	switch method {
	case protocol.CURVE25519:
		s, err := newCurve25519Session()
		if err != nil {
			return nil, err
		}
		return &curve25519Wrap{s: s}, nil
	case protocol.MLKEM768:
		s, err := newMlkemResponderSession()
		if err != nil {
			return nil, err
		}
		return &mlkemWrap{s: s}, nil
	default:
		return newDhSession(method)
	}
}
