package child

import (
	"github.com/google/uuid"
	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

// State is the CHILD_SA lifecycle state (spec.md §3).
type State uint8

const (
	StateCreated State = iota
	StateInstalling
	StateInstalled
	StateRetrying
	StateDeleting
)

// OutboundState is the CHILD_SA's outbound sub-state (spec.md §3): a
// rekey's replacement CHILD_SA is REGISTERED with the kernel before it is
// INSTALLED (made active), so collision handling can still roll back.
type OutboundState uint8

const (
	OutboundNone OutboundState = iota
	OutboundRegistered
	OutboundInstalled
)

// SA is the CHILD_SA under construction. Id is a uuid, following the
// identifier convention the pack's other services use for tracking
// in-flight domain objects.
type SA struct {
	Id   uuid.UUID
	Name string

	Reqid uint32

	MarkIn, MarkOut           uint32
	InterfaceIn, InterfaceOut uint32

	Encap bool

	ProtocolId protocol.ProtocolId

	MySpi, OtherSpi protocol.Spi
	MyCpi, OtherCpi uint16
	IpCompTransform protocol.IpCompTransformId
	IpCompEnabled   bool

	Mode platform.Mode

	Proposal *protocol.Proposal

	LocalTs, RemoteTs protocol.Selectors

	Label []byte

	State         State
	OutboundState OutboundState

	Established bool
}

// NewSA allocates a fresh CHILD_SA handle; it is solely owned by the task
// until install, when ownership transfers to the IKE_SA (spec.md §3).
func NewSA(name string) *SA {
	return &SA{Id: uuid.New(), Name: name, State: StateCreated}
}
