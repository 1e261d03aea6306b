package child

import (
	"net"

	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

// NatCondition reports which side of the IKE_SA a NAT was detected behind,
// driving transport-mode selector substitution (spec.md §4.2).
type NatCondition struct {
	NatHere  bool
	NatThere bool
}

// NarrowPair is the outcome of narrowing one direction's selector list.
type NarrowPair struct {
	Selectors protocol.Selectors
	Ok        bool
}

// NarrowTs implements spec.md §4.2: combine the peer-offered list, the
// config template, and decide whether TRANSPORT-mode NAT substitution
// applies before narrowing. endpoint is the current IKE endpoint address of
// the side the list describes (local when isLocal, else remote); it is used
// only for NAT substitution.
func NarrowTs(peer, template protocol.Selectors, nat NatCondition, isLocal bool, endpoint net.IP) NarrowPair {
	natApplies := (isLocal && nat.NatHere) || (!isLocal && nat.NatThere)
	if natApplies {
		if substituted := protocol.SubstituteNatTransport(peer, endpoint); substituted != nil {
			if n := protocol.Narrow(substituted, template); len(n) > 0 {
				return NarrowPair{Selectors: n, Ok: true}
			}
		}
	}
	n := protocol.Narrow(peer, template)
	return NarrowPair{Selectors: n, Ok: len(n) > 0}
}

// AcceptedMode resolves the CHILD_SA mode given the peer's requested mode
// notify and the narrowed selector lists (spec.md §4.2 "Mode acceptance").
// isInitiator controls the failure mode: an initiator that cannot verify
// the peer's claimed mode fails the whole task; a responder downgrades
// silently to TUNNEL.
func AcceptedMode(requested platform.Mode, cfg *Config, local, remote protocol.Selectors, localEp, remoteEp net.IP, isInitiator bool) (platform.Mode, error) {
	switch requested {
	case platform.ModeTransport:
		if (cfg.OptProxyMode || (allSingleHostMatching(local, localEp) && allSingleHostMatching(remote, remoteEp))) &&
			cfg.Mode == platform.ModeTransport {
			return platform.ModeTransport, nil
		}
	case platform.ModeBeet:
		if allSingleHost(local) && allSingleHost(remote) && cfg.Mode == platform.ModeBeet {
			return platform.ModeBeet, nil
		}
	default:
		return platform.ModeTunnel, nil
	}
	if isInitiator {
		return 0, errModeMismatch
	}
	return platform.ModeTunnel, nil
}

var errModeMismatch = tsError("cannot verify peer's claimed child sa mode")

type tsError string

func (e tsError) Error() string { return string(e) }

func allSingleHost(ts protocol.Selectors) bool {
	for _, s := range ts {
		if !s.IsHost(nil) {
			return false
		}
	}
	return len(ts) > 0
}

func allSingleHostMatching(ts protocol.Selectors, h net.IP) bool {
	for _, s := range ts {
		if !s.IsHost(h) {
			return false
		}
	}
	return len(ts) > 0
}
