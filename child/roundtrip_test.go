package child

import (
	"net"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpnsetup/strongswan/crypto"
	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

func testProposals() protocol.Proposals {
	return protocol.Proposals{
		{
			Number:     1,
			ProtocolId: protocol.PROTO_ESP,
			Transforms: protocol.Transforms{
				protocol.TRANSFORM_TYPE_ENCR:  {Type: protocol.TRANSFORM_TYPE_ENCR, TransformId: uint16(protocol.ENCR_AES_CBC), KeyLength: 256},
				protocol.TRANSFORM_TYPE_INTEG: {Type: protocol.TRANSFORM_TYPE_INTEG, TransformId: uint16(protocol.AUTH_HMAC_SHA1_96)},
			},
		},
	}
}

func testChildConfig() *Config {
	return &Config{
		Name:      "net-1",
		Proposals: testProposals(),
		Mode:      platform.ModeTunnel,
		LocalTs:   protocol.Selectors{subnet("10.0.0.0", "10.0.0.255")},
		RemoteTs:  protocol.Selectors{subnet("10.0.1.0", "10.0.1.255")},
	}
}

func testIkeSaView() IkeSaView {
	prf, _ := crypto.NewPrf(protocol.PRF_HMAC_SHA2_256)
	return IkeSaView{
		LocalAddr:  net.ParseIP("192.0.2.1"),
		RemoteAddr: net.ParseIP("203.0.113.5"),
		Prf:        prf,
		SkD:        make([]byte, 32),
	}
}

// Full IKE_AUTH round trip: initiator builds a no-KE offer, the
// responder selects the matching config and answers, the initiator
// processes the response and both sides install.
func TestInitiatorResponderRoundTripIkeAuthNoKe(t *testing.T) {
	initKern := &fakeKernel{}
	initBus := &fakeBus{}
	initTask := NewInitiatorTask(log.NewNopLogger(), testIkeSaView(), initKern, initBus, testChildConfig())

	msg, status, err := initTask.Build(protocol.IKE_AUTH)
	require.NoError(t, err)
	assert.Equal(t, NeedMore, status)
	require.NotNil(t, msg)
	assert.Nil(t, msg.nonce())
	assert.Nil(t, msg.ke())

	respKern := &fakeKernel{}
	respBus := &fakeBus{}
	respTask := NewResponderTask(log.NewNopLogger(), testIkeSaView(), respKern, respBus)

	pStatus, err := respTask.ProcessOffer(msg, []*Config{testChildConfig()})
	require.NoError(t, err)
	assert.Equal(t, NeedMore, pStatus)

	respMsg, bStatus, err := respTask.BuildResponse()
	require.NoError(t, err)
	assert.Equal(t, Success, bStatus)
	require.NotNil(t, respMsg)
	assert.Equal(t, StateInstalled, respTask.GetChild().State)

	fStatus, err := initTask.Process(respMsg)
	require.NoError(t, err)
	assert.Equal(t, Success, fStatus)
	assert.Equal(t, StateInstalled, initTask.GetChild().State)

	// Each side installs both an inbound and an outbound SA.
	require.Len(t, initKern.installed, 2)
	require.Len(t, respKern.installed, 2)
}

// A responder offer that narrows to an empty TS intersection must fail
// with no configured child match.
func TestResponderNoMatchingConfigFails(t *testing.T) {
	initKern := &fakeKernel{}
	initBus := &fakeBus{}
	cfg := testChildConfig()
	initTask := NewInitiatorTask(log.NewNopLogger(), testIkeSaView(), initKern, initBus, cfg)

	msg, _, err := initTask.Build(protocol.IKE_AUTH)
	require.NoError(t, err)

	respKern := &fakeKernel{}
	respBus := &fakeBus{}
	respTask := NewResponderTask(log.NewNopLogger(), testIkeSaView(), respKern, respBus)

	mismatched := testChildConfig()
	mismatched.LocalTs = protocol.Selectors{subnet("172.16.0.0", "172.16.0.255")}

	_, err = respTask.ProcessOffer(msg, []*Config{mismatched})
	assert.Error(t, err)
}

// A first-round CREATE_CHILD_SA duplicate of an installed CHILD_SA returns
// SUCCESS with no wire message at all (spec.md §4.7).
func TestInitiatorSuppressesDuplicateCreateChildSa(t *testing.T) {
	kern := &fakeKernel{}
	bus := &fakeBus{}
	cfg := testChildConfig()
	ike := testIkeSaView()

	existing := NewSA(cfg.Name)
	existing.State = StateInstalled
	ike.ExistingChildren = []*SA{existing}

	task := NewInitiatorTask(log.NewNopLogger(), ike, kern, bus, cfg)
	msg, status, err := task.Build(protocol.CREATE_CHILD_SA)
	require.NoError(t, err)
	assert.Equal(t, Success, status)
	assert.Nil(t, msg)
}

// The initiator must reject a response whose TSi/TSr narrow to an empty
// intersection with our own offer, even though the responder's SA payload
// chose a proposal we offered.
func TestInitiatorRejectsResponderOverNarrowedTs(t *testing.T) {
	initKern := &fakeKernel{}
	initBus := &fakeBus{}
	cfg := testChildConfig()
	initTask := NewInitiatorTask(log.NewNopLogger(), testIkeSaView(), initKern, initBus, cfg)

	msg, _, err := initTask.Build(protocol.IKE_AUTH)
	require.NoError(t, err)

	chosen := cloneProposal(testProposals()[0])
	chosen.Spi = initTask.GetChild().MySpi

	badTs := protocol.Selectors{subnet("192.168.50.0", "192.168.50.255")}
	resp := &Message{
		ExchangeType: protocol.IKE_AUTH,
		IsResponse:   true,
		Payloads: []protocol.Payload{
			&protocol.SaPayload{Proposals: protocol.Proposals{chosen}},
			&protocol.TrafficSelectorPayload{Selectors: badTs},
			&protocol.TrafficSelectorPayload{IsResponder: true, Selectors: badTs},
		},
	}
	_ = msg

	status, err := initTask.Process(resp)
	assert.Error(t, err)
	assert.Equal(t, Failed, status)
}
