package child

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpnsetup/strongswan/eventbus"
	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

type fakeKernel struct {
	installed  []platform.SaParams
	registered []platform.SaParams
	policies   []platform.Policy

	failInstallDirection platform.Direction
	failInstallSet       bool
	failPolicies         bool
}

func (k *fakeKernel) AllocSpi(protocol.ProtocolId) (protocol.Spi, error) { return protocol.Spi{1}, nil }
func (k *fakeKernel) AllocCpi() (uint16, error)                         { return 0, nil }
func (k *fakeKernel) RefReqid(r uint32) (uint32, error)                 { return r, nil }
func (k *fakeKernel) ReleaseReqid(uint32)                               {}
func (k *fakeKernel) ActivateOutbound(protocol.Spi) error               { return nil }
func (k *fakeKernel) GetFeatures() platform.Features                    { return platform.Features{} }

func (k *fakeKernel) Install(p platform.SaParams) error {
	if k.failInstallSet && p.Direction == k.failInstallDirection {
		return errors.New("kernel install rejected")
	}
	k.installed = append(k.installed, p)
	return nil
}

func (k *fakeKernel) RegisterOutbound(p platform.SaParams) error {
	k.registered = append(k.registered, p)
	return nil
}

func (k *fakeKernel) InstallPolicies(policies []platform.Policy) error {
	if k.failPolicies {
		return errors.New("policy install rejected")
	}
	k.policies = append(k.policies, policies...)
	return nil
}

type fakeBus struct {
	alerts  []eventbus.AlertKind
	updowns []eventbus.UpDown
}

func (b *fakeBus) Narrow(eventbus.NarrowResult) {}
func (b *fakeBus) Alert(kind eventbus.AlertKind, childName string, err error) {
	b.alerts = append(b.alerts, kind)
}
func (b *fakeBus) ChildKeys(eventbus.ChildKeys) {}
func (b *fakeBus) ChildUpDown(u eventbus.UpDown) {
	b.updowns = append(b.updowns, u)
}

func testSa() *SA {
	sa := NewSA("net-1")
	sa.MySpi = protocol.Spi{1, 2, 3, 4}
	sa.OtherSpi = protocol.Spi{5, 6, 7, 8}
	sa.Mode = platform.ModeTunnel
	sa.ProtocolId = protocol.PROTO_ESP
	return sa
}

func testKeymat() *Keymat {
	return &Keymat{
		EncrI:  []byte("encr-i-key-0123456789012345678901"),
		IntegI: []byte("integ-i-key-0123456789012"),
		EncrR:  []byte("encr-r-key-0123456789012345678901"),
		IntegR: []byte("integ-r-key-0123456789012"),
	}
}

func testInstallArgs(isInitiator bool) InstallArgs {
	ts := protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")}
	return InstallArgs{
		LocalAddr:  net.ParseIP("192.0.2.1"),
		RemoteAddr: net.ParseIP("203.0.113.5"),
		LocalTs:    ts,
		RemoteTs:   ts,
		EncrId:     protocol.ENCR_AES_CBC,
		AuthId:     protocol.AUTH_HMAC_SHA1_96,
		IsInitiator: isInitiator,
	}
}

func TestInstallInitiatorKeySymmetry(t *testing.T) {
	kern := &fakeKernel{}
	bus := &fakeBus{}
	sa := testSa()
	km := testKeymat()

	err := Install(kern, bus, sa, km, testInstallArgs(true))
	require.NoError(t, err)

	require.Len(t, kern.installed, 2)
	in, out := kern.installed[0], kern.installed[1]
	assert.Equal(t, platform.DirectionIn, in.Direction)
	assert.Equal(t, []byte("encr-r-key-0123456789012345678901"), in.Keys.EncrKey)
	assert.Equal(t, platform.DirectionOut, out.Direction)
	assert.Equal(t, []byte("encr-i-key-0123456789012345678901"), out.Keys.EncrKey)
	assert.Equal(t, StateInstalled, sa.State)
	assert.Equal(t, OutboundInstalled, sa.OutboundState)
	assert.True(t, sa.Established)
	assert.Len(t, bus.updowns, 1)
	assert.True(t, bus.updowns[0].Up)
}

func TestInstallResponderKeySymmetryIsMirrored(t *testing.T) {
	kern := &fakeKernel{}
	bus := &fakeBus{}
	sa := testSa()
	km := testKeymat()

	err := Install(kern, bus, sa, km, testInstallArgs(false))
	require.NoError(t, err)

	in, out := kern.installed[0], kern.installed[1]
	assert.Equal(t, []byte("encr-i-key-0123456789012345678901"), in.Keys.EncrKey)
	assert.Equal(t, []byte("encr-r-key-0123456789012345678901"), out.Keys.EncrKey)
}

func TestInstallRekeyRegistersOutboundInsteadOfInstalling(t *testing.T) {
	kern := &fakeKernel{}
	bus := &fakeBus{}
	sa := testSa()
	km := testKeymat()
	args := testInstallArgs(true)
	args.IsRekey = true

	err := Install(kern, bus, sa, km, args)
	require.NoError(t, err)

	assert.Len(t, kern.installed, 1)
	assert.Len(t, kern.registered, 1)
	assert.Equal(t, OutboundRegistered, sa.OutboundState)
}

func TestInstallSaFailureReturnsInstallErrorStageSaInstall(t *testing.T) {
	kern := &fakeKernel{failInstallSet: true, failInstallDirection: platform.DirectionIn}
	bus := &fakeBus{}
	sa := testSa()
	km := testKeymat()

	err := Install(kern, bus, sa, km, testInstallArgs(true))
	require.Error(t, err)
	var ie *InstallError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, StageSaInstall, ie.Stage)
	assert.Contains(t, bus.alerts, eventbus.AlertInstallChildSaFailed)
}

func TestInstallPolicyFailureReturnsInstallErrorStagePolicyInstall(t *testing.T) {
	kern := &fakeKernel{failPolicies: true}
	bus := &fakeBus{}
	sa := testSa()
	km := testKeymat()

	err := Install(kern, bus, sa, km, testInstallArgs(true))
	require.Error(t, err)
	var ie *InstallError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, StagePolicyInstall, ie.Stage)
	assert.Contains(t, bus.alerts, eventbus.AlertInstallChildPolicyFailed)
}

func TestInstallZeroizesKeymatRegardlessOfOutcome(t *testing.T) {
	kern := &fakeKernel{failPolicies: true}
	bus := &fakeBus{}
	sa := testSa()
	km := testKeymat()

	_ = Install(kern, bus, sa, km, testInstallArgs(true))

	for _, b := range [][]byte{km.EncrI, km.IntegI, km.EncrR, km.IntegR} {
		for _, by := range b {
			assert.Equal(t, byte(0), by)
		}
	}
}

func TestInstallClearsIpCompOnCpiMismatch(t *testing.T) {
	kern := &fakeKernel{}
	bus := &fakeBus{}
	sa := testSa()
	sa.MyCpi = 7
	sa.OtherCpi = 0
	sa.IpCompEnabled = true
	km := testKeymat()

	err := Install(kern, bus, sa, km, testInstallArgs(true))
	require.NoError(t, err)
	assert.False(t, sa.IpCompEnabled)
	assert.Equal(t, uint16(0), sa.MyCpi)
}
