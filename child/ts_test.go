package child

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

func host(ip string) *protocol.Selector {
	addr := net.ParseIP(ip)
	return &protocol.Selector{IpProtocolId: 0, StartPort: 0, EndPort: 65535, StartAddr: addr, EndAddr: addr}
}

func subnet(startIp, endIp string) *protocol.Selector {
	return &protocol.Selector{IpProtocolId: 0, StartPort: 0, EndPort: 65535, StartAddr: net.ParseIP(startIp), EndAddr: net.ParseIP(endIp)}
}

func TestNarrowTsPlainIntersection(t *testing.T) {
	peer := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	template := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	res := NarrowTs(peer, template, NatCondition{}, true, net.ParseIP("192.0.2.1"))
	assert.True(t, res.Ok)
	assert.NotEmpty(t, res.Selectors)
}

func TestNarrowTsEmptyIntersectionFails(t *testing.T) {
	peer := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	template := protocol.Selectors{subnet("172.16.0.0", "172.16.0.255")}
	res := NarrowTs(peer, template, NatCondition{}, true, net.ParseIP("192.0.2.1"))
	assert.False(t, res.Ok)
	assert.Empty(t, res.Selectors)
}

// Narrow idempotence law: re-narrowing an already-narrowed result against
// the same template yields the same result (spec.md §8).
func TestNarrowTsIdempotent(t *testing.T) {
	peer := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	template := protocol.Selectors{subnet("10.0.0.0", "10.0.0.127")}
	endpoint := net.ParseIP("192.0.2.1")

	first := NarrowTs(peer, template, NatCondition{}, true, endpoint)
	assert.True(t, first.Ok)

	second := NarrowTs(first.Selectors, template, NatCondition{}, true, endpoint)
	assert.True(t, second.Ok)
	assert.Equal(t, first.Selectors, second.Selectors)
}

// TS-NAT symmetry law: when no NAT is in play, substitution never fires and
// NarrowTs behaves exactly like plain Narrow on either side.
func TestNarrowTsNoNatSymmetric(t *testing.T) {
	peer := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	template := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	endpoint := net.ParseIP("192.0.2.1")

	local := NarrowTs(peer, template, NatCondition{}, true, endpoint)
	remote := NarrowTs(peer, template, NatCondition{}, false, endpoint)
	assert.Equal(t, local.Ok, remote.Ok)
	assert.Equal(t, local.Selectors, remote.Selectors)
}

func TestNarrowTsNatSubstitutesLocalHostSelector(t *testing.T) {
	peer := protocol.Selectors{host("203.0.113.5")}
	template := protocol.Selectors{host("192.0.2.1")}
	endpoint := net.ParseIP("192.0.2.1")

	res := NarrowTs(peer, template, NatCondition{NatHere: true}, true, endpoint)
	assert.True(t, res.Ok)
}

func TestAcceptedModeTunnelDefault(t *testing.T) {
	cfg := &Config{Mode: platform.ModeTunnel}
	m, err := AcceptedMode(platform.ModeTunnel, cfg, nil, nil, nil, nil, true)
	assert.NoError(t, err)
	assert.Equal(t, platform.ModeTunnel, m)
}

func TestAcceptedModeTransportWithHostSelectorsMatchingEndpoints(t *testing.T) {
	cfg := &Config{Mode: platform.ModeTransport}
	localEp := net.ParseIP("192.0.2.1")
	remoteEp := net.ParseIP("203.0.113.5")
	local := protocol.Selectors{host("192.0.2.1")}
	remote := protocol.Selectors{host("203.0.113.5")}
	m, err := AcceptedMode(platform.ModeTransport, cfg, local, remote, localEp, remoteEp, true)
	assert.NoError(t, err)
	assert.Equal(t, platform.ModeTransport, m)
}

// Initiator asymmetry: when the claimed mode cannot be verified, the
// initiator fails the task outright.
func TestAcceptedModeTransportMismatchInitiatorFails(t *testing.T) {
	cfg := &Config{Mode: platform.ModeTunnel}
	localEp := net.ParseIP("192.0.2.1")
	remoteEp := net.ParseIP("203.0.113.5")
	local := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	remote := protocol.Selectors{subnet("10.0.1.0", "10.0.1.255")}
	_, err := AcceptedMode(platform.ModeTransport, cfg, local, remote, localEp, remoteEp, true)
	assert.Error(t, err)
}

// Responder asymmetry: the same mismatch silently downgrades to TUNNEL
// instead of failing.
func TestAcceptedModeTransportMismatchResponderDowngrades(t *testing.T) {
	cfg := &Config{Mode: platform.ModeTunnel}
	localEp := net.ParseIP("192.0.2.1")
	remoteEp := net.ParseIP("203.0.113.5")
	local := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	remote := protocol.Selectors{subnet("10.0.1.0", "10.0.1.255")}
	m, err := AcceptedMode(platform.ModeTransport, cfg, local, remote, localEp, remoteEp, false)
	assert.NoError(t, err)
	assert.Equal(t, platform.ModeTunnel, m)
}

func TestAcceptedModeBeetRequiresSingleHostBothSides(t *testing.T) {
	cfg := &Config{Mode: platform.ModeBeet}
	local := protocol.Selectors{host("192.0.2.1")}
	remote := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	_, err := AcceptedMode(platform.ModeBeet, cfg, local, remote, nil, nil, true)
	assert.Error(t, err)
}
