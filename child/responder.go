package child

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/vpnsetup/strongswan/crypto"
	"github.com/vpnsetup/strongswan/eventbus"
	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

// offer holds what ProcessOffer extracted from the peer's message before a
// configuration has been selected, so BuildResponse doesn't have to
// re-inspect the wire payloads.
type offer struct {
	proposals    protocol.Proposals
	localTs      protocol.Selectors // narrowed against our local hosts (what we send back as TSi is the peer's TSi narrowed)
	remoteTs     protocol.Selectors
	chosenRemote *protocol.Proposal
	requestedMode platform.Mode
	keInvalid    bool // selected proposal names a KE method the KE payload didn't match
	keForgiven   bool // selected proposal has no KE method; any KE payload is ignored
}

// ProcessOffer implements the responder side of spec.md §4.1 "Responder
// process": select a matching child configuration from candidates using
// the peer's offered TS, proposals and labels, narrow, and resolve the
// key-exchange situation. A nil return with Success status and no error
// means the exchange resolved into an in-place notify (e.g.
// INVALID_KE_PAYLOAD) that BuildResponse will emit next.
func (t *Task) ProcessOffer(msg *Message, candidates []*Config) (Status, error) {
	t.exchangeType = msg.ExchangeType
	for _, n := range msg.notifies() {
		if Dispatch(n.NotificationType, t.ike.PeerIsStrongswanExtended) == ActionAbandonUnknownError {
			return Failed, nil
		}
	}

	sa := msg.sa()
	tsi, tsr := msg.tsi(), msg.tsr()
	if sa == nil || tsi == nil || tsr == nil {
		return Failed, fmt.Errorf("offer missing SA/TSi/TSr payload")
	}
	noKe := t.exchangeType == protocol.IKE_AUTH

	requestedMode := platform.ModeTunnel
	if msg.notify(protocol.USE_TRANSPORT_MODE) != nil {
		requestedMode = platform.ModeTransport
	} else if msg.notify(protocol.USE_BEET_MODE) != nil {
		requestedMode = platform.ModeBeet
	}

	var tsiHint, tsrHint []byte
	if len(tsi.Selectors) > 0 {
		tsiHint = tsi.Selectors[0].Label
	}
	if len(tsr.Selectors) > 0 {
		tsrHint = tsr.Selectors[0].Label
	}

	var chosenCfg *Config
	var chosenRemote *protocol.Proposal
	var localRes, remoteRes NarrowPair
	for _, cand := range candidates {
		label, ok := cand.SelectLabel(tsiHint, tsrHint)
		if !ok {
			continue
		}
		lr := NarrowTs(tsi.Selectors, cand.LocalTs, t.ike.Nat, true, t.ike.LocalAddr)
		rr := NarrowTs(tsr.Selectors, cand.RemoteTs, t.ike.Nat, false, t.ike.RemoteAddr)
		if !lr.Ok || !rr.Ok {
			continue
		}
		flags := protocol.SelectionFlags{
			SkipKe:         noKe,
			SkipPrivate:    !t.ike.PeerIsStrongswanExtended && !cand.AllowPrivateAlgorithms,
			PreferSupplied: !cand.PreferLocalProposals,
		}
		_, rp := protocol.ChooseProposal(cand.Proposals, sa.Proposals, flags)
		if rp == nil {
			continue
		}
		mode, err := AcceptedMode(requestedMode, cand, lr.Selectors, rr.Selectors, t.ike.LocalAddr, t.ike.RemoteAddr, false)
		if err != nil {
			continue
		}
		chosenCfg, chosenRemote, localRes, remoteRes = cand, rp, lr, rr
		t.cfg = cand
		t.sa = NewSA(cand.Name)
		t.sa.Mode = mode
		t.label = label
		break
	}
	if chosenCfg == nil {
		return Failed, fmt.Errorf("no configured child matches the peer's offer")
	}

	spi, err := t.kern.AllocSpi(chosenRemote.ProtocolId)
	if err != nil {
		return Failed, errors.Wrap(err, "alloc inbound spi")
	}
	t.sa.ProtocolId = chosenRemote.ProtocolId
	t.sa.MySpi = spi
	t.sa.OtherSpi = chosenRemote.Spi
	t.sa.Proposal = chosenRemote
	t.sa.LocalTs, t.sa.RemoteTs = localRes.Selectors, remoteRes.Selectors
	t.bus.Narrow(eventbus.NarrowResult{ChildName: t.sa.Name, Local: localRes.Selectors, Remote: remoteRes.Selectors, Ok: true})

	o := &offer{proposals: sa.Proposals, localTs: localRes.Selectors, remoteTs: remoteRes.Selectors, chosenRemote: chosenRemote, requestedMode: requestedMode}

	wantKe := chosenRemote.KeMethod()
	ke := msg.ke()
	switch {
	case wantKe == protocol.KE_NONE:
		o.keForgiven = true
		t.keMethod = protocol.KE_NONE
	case ke == nil || ke.DhTransformId != wantKe:
		o.keInvalid = true
		t.keMethod = wantKe
	default:
		t.keMethod = wantKe
		t.plan = BuildPlan(chosenRemote)
		if err := t.plan.StartSlot(0, false, nil); err != nil {
			return Failed, errors.Wrap(err, "start key-exchange slot 0")
		}
		if err := t.plan.CompleteSlot(0, ke.KeyData); err != nil {
			t.bus.Alert(eventbus.AlertKeyExchangeInvalid, t.sa.Name, err)
			return Failed, errors.Wrap(err, "complete key-exchange slot 0")
		}
	}

	if nonce := msg.nonce(); nonce != nil {
		t.otherNonce = nonce.NonceData
	}
	if lt := msg.notify(protocol.ADDITIONAL_KEY_EXCHANGE); lt != nil {
		if t.linkToken == nil {
			t.linkToken = lt.Data
		} else if !bytesEqual(t.linkToken, lt.Data) {
			return Failed, fmt.Errorf("follow-up key-exchange round: link token mismatch")
		}
	}
	if ic := msg.notify(protocol.IPCOMP_SUPPORTED); ic != nil && chosenCfg.IpCompEnabled {
		if d, err := protocol.DecodeIpCompSupportedData(ic.Data); err == nil && d.Transform == protocol.IPCOMP_DEFLATE {
			t.sa.OtherCpi = d.Cpi
		}
	}
	t.offer = o
	return NeedMore, nil
}

// BuildResponse emits the responder's answer: either an in-place
// INVALID_KE_PAYLOAD notify (peer will retry), the chosen SA/Nonce/TS/KE
// response, or a follow-up KE round. Once the plan is complete it installs
// the CHILD_SA and returns Success.
func (t *Task) BuildResponse() (*Message, Status, error) {
	if t.aborted {
		return t.buildAbortDelete()
	}
	o := t.offer
	if o != nil && o.keInvalid {
		level.Warn(t.log).Log("msg", "responder rejecting offered key-exchange method", "want", o.chosenRemote.KeMethod())
		msg := &Message{
			ExchangeType: t.exchangeType,
			Payloads: []protocol.Payload{
				&protocol.NotifyPayload{NotificationType: protocol.INVALID_KE_PAYLOAD, Data: protocol.EncodeInvalidKePayloadData(o.chosenRemote.KeMethod())},
			},
		}
		return msg, Success, nil
	}

	if t.plan != nil && t.plan.NextPending() > 0 {
		return t.buildResponderFollowupKe()
	}

	if o == nil {
		return nil, Failed, fmt.Errorf("build response called before an offer was processed")
	}

	proposal := cloneProposal(o.chosenRemote)
	proposal.SetSpi(t.sa.MySpi)
	payloads := []protocol.Payload{&protocol.SaPayload{Proposals: protocol.Proposals{proposal}}}

	if t.exchangeType != protocol.IKE_AUTH {
		if t.myNonce == nil {
			t.myNonce = make([]byte, 32)
			if _, err := rand.Read(t.myNonce); err != nil {
				return nil, Failed, errors.Wrap(err, "generate responder nonce")
			}
		}
		payloads = append(payloads, &protocol.NoncePayload{NonceData: t.myNonce})
	}

	if t.plan != nil && len(t.plan.Slots) > 0 && !o.keForgiven {
		if len(t.plan.Slots) > 1 && t.linkToken == nil {
			t.linkToken = []byte{0x42}
		}
		if t.linkToken != nil {
			payloads = append(payloads, &protocol.NotifyPayload{NotificationType: protocol.ADDITIONAL_KEY_EXCHANGE, Data: t.linkToken})
		}
		slot := t.plan.Slots[0]
		payloads = append(payloads, &protocol.KePayload{DhTransformId: slot.Method, KeyData: slot.Session.PublicValue()})
	}

	payloads = append(payloads, &protocol.TrafficSelectorPayload{Selectors: o.localTs})
	payloads = append(payloads, &protocol.TrafficSelectorPayload{IsResponder: true, Selectors: o.remoteTs})

	switch t.sa.Mode {
	case platform.ModeTransport:
		payloads = append(payloads, &protocol.NotifyPayload{NotificationType: protocol.USE_TRANSPORT_MODE})
	case platform.ModeBeet:
		payloads = append(payloads, &protocol.NotifyPayload{NotificationType: protocol.USE_BEET_MODE})
	}
	if t.sa.IpCompEnabled {
		if cpi, err := t.kern.AllocCpi(); err == nil {
			t.sa.MyCpi = cpi
			payloads = append(payloads, &protocol.NotifyPayload{
				NotificationType: protocol.IPCOMP_SUPPORTED,
				Data:             protocol.EncodeIpCompSupportedData(protocol.IpCompSupportedData{Cpi: cpi, Transform: protocol.IPCOMP_DEFLATE}),
			})
		}
	}
	if !t.kern.GetFeatures().EspV3Tfc {
		payloads = append(payloads, &protocol.NotifyPayload{NotificationType: protocol.ESP_TFC_PADDING_NOT_SUPPORTED})
	}

	msg := &Message{ExchangeType: t.exchangeType, IsResponse: true, Payloads: payloads}

	if t.plan != nil && t.plan.NextPending() > 0 {
		return msg, NeedMore, nil
	}

	status, err := t.finishResponder()
	return msg, status, err
}

func (t *Task) buildResponderFollowupKe() (*Message, Status, error) {
	i := t.plan.NextPending()
	if err := t.plan.StartSlot(i, false, nil); err != nil {
		return nil, Failed, errors.Wrapf(err, "start follow-up key-exchange slot %d", i)
	}
	slot := t.plan.Slots[i]
	payloads := []protocol.Payload{
		&protocol.NotifyPayload{NotificationType: protocol.ADDITIONAL_KEY_EXCHANGE, Data: t.linkToken},
		&protocol.KePayload{DhTransformId: slot.Method, KeyData: slot.Session.PublicValue()},
	}
	return &Message{ExchangeType: protocol.IKE_FOLLOWUP_KE, IsResponse: true, Payloads: payloads}, NeedMore, nil
}

// ProcessFollowupKe consumes one IKE_FOLLOWUP_KE round's KE payload,
// verifying the link token the responder first emitted (spec.md §4.1
// "On the first multi-KE round, the responder emits a link token").
func (t *Task) ProcessFollowupKe(msg *Message) (Status, error) {
	lt := msg.notify(protocol.ADDITIONAL_KEY_EXCHANGE)
	if lt == nil || !bytesEqual(lt.Data, t.linkToken) {
		return Failed, fmt.Errorf("follow-up key-exchange round: link token mismatch")
	}
	ke := msg.ke()
	if ke == nil {
		return Failed, fmt.Errorf("follow-up key-exchange round missing KE payload")
	}
	i := t.plan.NextPending() - 1
	if i < 0 {
		return Failed, fmt.Errorf("follow-up key-exchange round received with no pending slot")
	}
	if err := t.plan.CompleteSlot(i, ke.KeyData); err != nil {
		t.bus.Alert(eventbus.AlertKeyExchangeInvalid, t.sa.Name, err)
		return Failed, errors.Wrapf(err, "complete key-exchange slot %d", i)
	}
	return NeedMore, nil
}

func (t *Task) finishResponder() (Status, error) {
	suite, err := crypto.NewEspCipherSuite(t.sa.Proposal.Transforms)
	if err != nil {
		return Failed, errors.Wrap(err, "build esp cipher suite")
	}

	var sharedSecrets [][]byte
	if t.plan != nil {
		sharedSecrets = t.plan.SharedSecrets()
	}
	km := DeriveKeymat(t.ike.Prf, t.ike.SkD, t.otherNonce, t.myNonce, sharedSecrets, suite)
	t.bus.ChildKeys(eventbus.ChildKeys{ChildName: t.sa.Name, EncrI: km.EncrI, IntegI: km.IntegI, EncrR: km.EncrR, IntegR: km.IntegR})

	encrId := protocol.EncrTransformId(t.sa.Proposal.Transforms[protocol.TRANSFORM_TYPE_ENCR].TransformId)
	authId := protocol.AuthTransformId(t.sa.Proposal.Transforms[protocol.TRANSFORM_TYPE_INTEG].TransformId)
	_, esn := t.sa.Proposal.Transforms[protocol.TRANSFORM_TYPE_ESN]

	if err := Install(t.kern, t.bus, t.sa, km, InstallArgs{
		LocalAddr: t.ike.LocalAddr, RemoteAddr: t.ike.RemoteAddr,
		LocalTs: t.sa.LocalTs, RemoteTs: t.sa.RemoteTs,
		EncrId: encrId, AuthId: authId, Esn: esn,
		IsRekey: t.isRekey, IsInitiator: false,
	}); err != nil {
		return Failed, err
	}
	if t.cfg.InactivityTimeout > 0 {
		t.pendingInactivityTimer = &InactivityTimer{ChildName: t.sa.Name, Timeout: time.Duration(t.cfg.InactivityTimeout) * time.Second}
	}
	return Success, nil
}

func cloneProposal(p *protocol.Proposal) *protocol.Proposal {
	out := &protocol.Proposal{Number: p.Number, ProtocolId: p.ProtocolId, Spi: p.Spi, Transforms: protocol.Transforms{}}
	for typ, tr := range p.Transforms {
		out.Transforms[typ] = tr
	}
	return out
}
