// Package platform is the kernel IPsec interface boundary: allocation of
// SPIs, CPIs and reqids, and installation of SAs and flow policies. Only the
// interface is described here; the real netlink/PF_KEY backend is an
// external collaborator (spec.md §1 non-goals: "kernel interface
// implementation").
package platform

import (
	"net"

	"github.com/vpnsetup/strongswan/protocol"
)

// Direction names which half of a CHILD_SA an install call concerns.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

// SaKeys carries the encryption and integrity key pair for the one
// direction being installed.
type SaKeys struct {
	EncrKey  []byte
	IntegKey []byte
}

// SaParams describes one direction of a CHILD_SA to install or register.
type SaParams struct {
	ProtocolId   protocol.ProtocolId
	Spi          protocol.Spi
	Cpi          uint16
	Mode         Mode
	Reqid        uint32
	Direction    Direction
	LocalAddr    net.IP
	RemoteAddr   net.IP
	EncrId       protocol.EncrTransformId
	AuthId       protocol.AuthTransformId
	Keys         SaKeys
	Esn          bool
	MarkIn       uint32
	MarkOut      uint32
	InterfaceIn  uint32
	InterfaceOut uint32
}

// Mode mirrors the CHILD_SA encapsulation mode (spec.md §3).
type Mode uint8

const (
	ModeTunnel Mode = iota
	ModeTransport
	ModeBeet
)

// Policy describes one flow policy entry tying narrowed traffic selectors
// to a direction and a reqid.
type Policy struct {
	Direction Direction
	Local     *protocol.Selector
	Remote    *protocol.Selector
	Reqid     uint32
	Mode      Mode
}

// Features reports what the local kernel stack supports. The task consults
// EspV3Tfc when deciding whether to advertise ESP_TFC_PADDING_NOT_SUPPORTED;
// IpCompDeflate is reported but the task does not consult it.
type Features struct {
	EspV3Tfc     bool
	IpCompDeflate bool
}

// Kernel is the boundary the CHILD_CREATE task drives to allocate resources
// and install state. No production implementation lives in this package;
// FakeKernel in fake.go is an in-memory test double.
type Kernel interface {
	AllocSpi(protocolId protocol.ProtocolId) (protocol.Spi, error)
	AllocCpi() (uint16, error)
	RefReqid(reqid uint32) (uint32, error)
	ReleaseReqid(reqid uint32)
	Install(params SaParams) error
	RegisterOutbound(params SaParams) error
	ActivateOutbound(spi protocol.Spi) error
	InstallPolicies(policies []Policy) error
	GetFeatures() Features
}
