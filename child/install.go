package child

import (
	"net"

	"github.com/vpnsetup/strongswan/eventbus"
	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

// InstallArgs bundles what Install needs beyond the SA and keymat: the
// current IKE endpoints (may have moved since negotiation started), the
// narrowed TS pair, the chosen suite, and whether this is a rekey (in which
// case the outbound SA is registered but not activated).
type InstallArgs struct {
	LocalAddr, RemoteAddr net.IP
	LocalTs, RemoteTs     protocol.Selectors
	EncrId                protocol.EncrTransformId
	AuthId                protocol.AuthTransformId
	Esn                   bool
	IsRekey               bool
	IsInitiator           bool
}

// Install runs spec.md §4.4 steps 1-8: set endpoints/TS/mode, clear IPComp
// on CPI mismatch, install inbound (and outbound, unless rekeying) SAs and
// flow policies, transition state, and report to the event bus. Keymat is
// always zeroized before returning, success or failure.
func Install(k platform.Kernel, bus eventbus.Bus, sa *SA, km *Keymat, args InstallArgs) error {
	defer km.Zeroize()

	sa.State = StateInstalling
	sa.LocalTs = args.LocalTs
	sa.RemoteTs = args.RemoteTs

	if sa.MyCpi == 0 || sa.OtherCpi == 0 {
		sa.MyCpi, sa.OtherCpi, sa.IpCompEnabled = 0, 0, false
	}

	// Initiator-only symmetry rule (spec.md §4.4 closing paragraph):
	// install uses (peer keys, my_spi) inbound and (our keys, other_spi)
	// outbound; responder uses the mirror.
	inKeys, outKeys := platform.SaKeys{EncrKey: km.EncrR, IntegKey: km.IntegR}, platform.SaKeys{EncrKey: km.EncrI, IntegKey: km.IntegI}
	if !args.IsInitiator {
		inKeys, outKeys = platform.SaKeys{EncrKey: km.EncrI, IntegKey: km.IntegI}, platform.SaKeys{EncrKey: km.EncrR, IntegKey: km.IntegR}
	}

	inParams := platform.SaParams{
		ProtocolId: sa.ProtocolId, Spi: sa.MySpi, Cpi: sa.MyCpi,
		Mode: sa.Mode, Reqid: sa.Reqid, Direction: platform.DirectionIn,
		LocalAddr: args.LocalAddr, RemoteAddr: args.RemoteAddr,
		EncrId: args.EncrId, AuthId: args.AuthId, Keys: inKeys, Esn: args.Esn,
		MarkIn: sa.MarkIn, MarkOut: sa.MarkOut, InterfaceIn: sa.InterfaceIn, InterfaceOut: sa.InterfaceOut,
	}
	outParams := inParams
	outParams.Spi, outParams.Cpi, outParams.Direction, outParams.Keys = sa.OtherSpi, sa.OtherCpi, platform.DirectionOut, outKeys

	if err := k.Install(inParams); err != nil {
		bus.Alert(eventbus.AlertInstallChildSaFailed, sa.Name, err)
		return &InstallError{Stage: StageSaInstall, Cause: err}
	}
	if args.IsRekey {
		if err := k.RegisterOutbound(outParams); err != nil {
			bus.Alert(eventbus.AlertInstallChildSaFailed, sa.Name, err)
			return &InstallError{Stage: StageSaInstall, Cause: err}
		}
		sa.OutboundState = OutboundRegistered
	} else {
		if err := k.Install(outParams); err != nil {
			bus.Alert(eventbus.AlertInstallChildSaFailed, sa.Name, err)
			return &InstallError{Stage: StageSaInstall, Cause: err}
		}
		sa.OutboundState = OutboundInstalled
	}

	policies := narrowedPolicies(sa)
	if err := k.InstallPolicies(policies); err != nil {
		bus.Alert(eventbus.AlertInstallChildPolicyFailed, sa.Name, err)
		return &InstallError{Stage: StagePolicyInstall, Cause: err}
	}

	sa.State = StateInstalled
	sa.Established = true
	bus.ChildUpDown(eventbus.UpDown{ChildName: sa.Name, Up: true})
	return nil
}

func narrowedPolicies(sa *SA) []platform.Policy {
	var out []platform.Policy
	for i := 0; i < len(sa.LocalTs) && i < len(sa.RemoteTs); i++ {
		out = append(out,
			platform.Policy{Direction: platform.DirectionOut, Local: sa.LocalTs[i], Remote: sa.RemoteTs[i], Reqid: sa.Reqid, Mode: sa.Mode},
			platform.Policy{Direction: platform.DirectionIn, Local: sa.RemoteTs[i], Remote: sa.LocalTs[i], Reqid: sa.Reqid, Mode: sa.Mode},
		)
	}
	return out
}

// InstallStage distinguishes the two alert paths spec.md §4.4 step 8 maps
// to different task outcomes: SA install failure is FAILED, policy install
// failure is NOT_FOUND.
type InstallStage uint8

const (
	StageSaInstall InstallStage = iota
	StagePolicyInstall
)

type InstallError struct {
	Stage InstallStage
	Cause error
}

func (e *InstallError) Error() string { return e.Cause.Error() }
func (e *InstallError) Unwrap() error { return e.Cause }
