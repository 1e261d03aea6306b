package child

import (
	"crypto/rand"
	"fmt"
	"net"
	"time"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/vpnsetup/strongswan/crypto"
	"github.com/vpnsetup/strongswan/eventbus"
	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

// Build implements the initiator build algorithm (spec.md §4.1): the first
// call composes the proposal offer, subsequent calls (once a multi-KE plan
// has pending slots) emit one IKE_FOLLOWUP_KE round per slot, and a task
// that has been aborted instead emits a DELETE for whatever it allocated.
func (t *Task) Build(exchangeType protocol.IkeExchangeType) (*Message, Status, error) {
	if t.aborted {
		return t.buildAbortDelete()
	}
	if t.plan != nil && t.plan.NextPending() > 0 {
		return t.buildFollowupKe()
	}
	t.exchangeType = exchangeType
	return t.buildOffer()
}

func (t *Task) buildAbortDelete() (*Message, Status, error) {
	if t.sa == nil || t.sa.MySpi == nil {
		return nil, Success, nil
	}
	msg := &Message{
		ExchangeType: protocol.INFORMATIONAL,
		Payloads: []protocol.Payload{
			&protocol.DeletePayload{ProtocolId: t.sa.ProtocolId, Spis: []protocol.Spi{t.sa.MySpi}},
		},
	}
	return msg, Success, nil
}

func (t *Task) buildOffer() (*Message, Status, error) {
	exchangeType := t.exchangeType
	noKe := exchangeType == protocol.IKE_AUTH

	// Childless deferral (spec.md §4.7): PREFER/FORCE against a peer known
	// to support it means IKE_AUTH carries no child payloads at all.
	if exchangeType == protocol.IKE_AUTH {
		if (t.cfg.Childless == ChildlessPrefer || t.cfg.Childless == ChildlessForce) && t.ike.PeerSupportsChildless {
			return nil, Success, nil
		}
		if t.cfg.Childless == ChildlessForce && !t.ike.PeerSupportsChildless {
			return nil, DestroyMe, nil
		}
	}

	localTs := t.cfg.LocalTs
	if len(t.ike.VirtualIps) > 0 && !t.isRekey {
		localTs = vipWildcardSelectors(t.ike.VirtualIps)
	}
	remoteTs := t.cfg.RemoteTs

	if t.label == nil && t.cfg.LabelMode != LabelModeSelinux {
		t.label = append([]byte{}, t.cfg.Label...)
	}

	proposals := clonedProposals(t.cfg.Proposals, noKe)

	ifIn, ifOut := t.ifIn, t.ifOut
	if ifIn == 0 {
		ifIn = t.ike.InterfaceIn
	}
	if ifOut == 0 {
		ifOut = t.ike.InterfaceOut
	}

	// First-round CREATE_CHILD_SA refusal (spec.md §4.1 step 6, §4.7): a
	// duplicate of an already-installed CHILD_SA, or proceeding with only a
	// generic SELinux label, suppresses the wire exchange entirely.
	if exchangeType == protocol.CREATE_CHILD_SA && !t.isRekey {
		genericLabelOnly := t.cfg.LabelMode == LabelModeSelinux && t.label == nil
		duplicate := false
		for _, existing := range t.ike.ExistingChildren {
			if IsDuplicate(existing, t.cfg, t.markIn, t.markOut, ifIn, ifOut, t.label, t.reqid) {
				duplicate = true
				break
			}
		}
		if duplicate || genericLabelOnly {
			level.Info(t.log).Log("msg", "suppressing duplicate or generic-label child creation", "child", t.cfg.Name, "duplicate", duplicate, "generic_label_only", genericLabelOnly)
			return nil, Success, nil
		}
	}

	t.sa = NewSA(t.cfg.Name)
	t.sa.MarkIn, t.sa.MarkOut = t.markIn, t.markOut
	t.sa.InterfaceIn, t.sa.InterfaceOut = ifIn, ifOut
	t.sa.Mode = t.cfg.Mode
	t.sa.Reqid = t.reqid

	protocolId := protocol.PROTO_ESP
	if len(proposals) > 0 {
		protocolId = proposals[0].ProtocolId
	}
	spi, err := t.kern.AllocSpi(protocolId)
	if err != nil {
		return nil, Failed, errors.Wrap(err, "alloc inbound spi")
	}
	t.sa.ProtocolId = protocolId
	t.sa.MySpi = spi

	if !noKe && !t.keMethodForced {
		t.keMethod = t.cfg.PreferredKe
	} else if noKe {
		t.keMethod = protocol.KE_NONE
	}

	if !protocol.Proposals(proposals).UpdateAndCheckProposals(spi, t.keMethod) {
		return nil, Failed, fmt.Errorf("no proposal offers key-exchange method %d", t.keMethod)
	}

	var payloads []protocol.Payload
	payloads = append(payloads, &protocol.SaPayload{Proposals: proposals})

	var kePayload *protocol.KePayload
	if t.keMethod != protocol.KE_NONE {
		sess, err := crypto.NewInitiatorSession(t.keMethod)
		if err != nil {
			return nil, Failed, errors.Wrapf(err, "instantiate key-exchange session for method %d", t.keMethod)
		}
		t.plan = &Plan{Slots: []PlanSlot{{TransformType: protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD, Method: t.keMethod, Session: sess}}}
		kePayload = &protocol.KePayload{DhTransformId: t.keMethod, KeyData: sess.PublicValue()}
	}

	var ipCompNotify *protocol.NotifyPayload
	if t.cfg.IpCompEnabled {
		if cpi, err := t.kern.AllocCpi(); err == nil {
			t.sa.MyCpi = cpi
			t.sa.IpCompEnabled = true
			ipCompNotify = &protocol.NotifyPayload{
				NotificationType: protocol.IPCOMP_SUPPORTED,
				Data:             protocol.EncodeIpCompSupportedData(protocol.IpCompSupportedData{Cpi: cpi, Transform: protocol.IPCOMP_DEFLATE}),
			}
		}
	}

	localRes := NarrowTs(localTs, t.cfg.LocalTs, t.ike.Nat, true, t.ike.LocalAddr)
	remoteRes := NarrowTs(remoteTs, t.cfg.RemoteTs, t.ike.Nat, false, t.ike.RemoteAddr)
	t.bus.Narrow(eventbus.NarrowResult{ChildName: t.sa.Name, Local: localRes.Selectors, Remote: remoteRes.Selectors, Ok: localRes.Ok && remoteRes.Ok})
	t.sa.LocalTs, t.sa.RemoteTs = localRes.Selectors, remoteRes.Selectors

	if exchangeType != protocol.IKE_AUTH {
		if t.myNonce == nil {
			t.myNonce = make([]byte, 32)
			if _, err := rand.Read(t.myNonce); err != nil {
				return nil, Failed, errors.Wrap(err, "generate initiator nonce")
			}
		}
		payloads = append(payloads, &protocol.NoncePayload{NonceData: t.myNonce})
	}
	if t.linkToken != nil {
		payloads = append(payloads, &protocol.NotifyPayload{NotificationType: protocol.ADDITIONAL_KEY_EXCHANGE, Data: t.linkToken})
	}
	if kePayload != nil {
		payloads = append(payloads, kePayload)
	}
	payloads = append(payloads, &protocol.TrafficSelectorPayload{Selectors: localRes.Selectors})
	payloads = append(payloads, &protocol.TrafficSelectorPayload{IsResponder: true, Selectors: remoteRes.Selectors})
	switch t.cfg.Mode {
	case platform.ModeTransport:
		payloads = append(payloads, &protocol.NotifyPayload{NotificationType: protocol.USE_TRANSPORT_MODE})
	case platform.ModeBeet:
		payloads = append(payloads, &protocol.NotifyPayload{NotificationType: protocol.USE_BEET_MODE})
	}
	if ipCompNotify != nil {
		payloads = append(payloads, ipCompNotify)
	}
	if !t.kern.GetFeatures().EspV3Tfc {
		payloads = append(payloads, &protocol.NotifyPayload{NotificationType: protocol.ESP_TFC_PADDING_NOT_SUPPORTED})
	}

	level.Info(t.log).Log("msg", "built child offer", "child", t.sa.Name, "exchange", exchangeType, "ke_method", t.keMethod)
	return &Message{ExchangeType: exchangeType, Payloads: payloads}, NeedMore, nil
}

func (t *Task) buildFollowupKe() (*Message, Status, error) {
	i := t.plan.NextPending()
	if err := t.plan.StartSlot(i, true, nil); err != nil {
		return nil, Failed, errors.Wrapf(err, "start follow-up key-exchange slot %d", i)
	}
	slot := t.plan.Slots[i]
	payloads := []protocol.Payload{
		&protocol.NotifyPayload{NotificationType: protocol.ADDITIONAL_KEY_EXCHANGE, Data: t.linkToken},
		&protocol.KePayload{DhTransformId: slot.Method, KeyData: slot.Session.PublicValue()},
	}
	return &Message{ExchangeType: protocol.IKE_FOLLOWUP_KE, Payloads: payloads}, NeedMore, nil
}

// Process implements the initiator process algorithm (spec.md §4.1): it
// inspects the peer's response, dispatches any notify, completes the
// pending key-exchange slot, and on the plan's last round narrows
// selectors, resolves the mode, derives keymat and installs the CHILD_SA.
func (t *Task) Process(resp *Message) (Status, error) {
	for _, n := range resp.notifies() {
		switch Dispatch(n.NotificationType, t.ike.PeerIsStrongswanExtended) {
		case ActionAbandonChild, ActionAbandonUnknownError:
			level.Warn(t.log).Log("msg", "child creation abandoned by peer notify", "notify", n.NotificationType)
			if code, ok := protocol.GetIkeErrorCode(n.NotificationType); ok {
				return Failed, protocol.ErrF(code, "child creation abandoned by peer notify")
			}
			return Failed, nil
		case ActionRetryKe:
			if t.retried {
				return Failed, fmt.Errorf("responder rejected key-exchange method a second time")
			}
			method, err := protocol.DecodeInvalidKePayloadData(n.Data)
			if err != nil {
				return Failed, err
			}
			t.retried = true
			t.UseKeMethod(method)
			t.plan = nil
			return NeedMore, nil
		case ActionDelayedRetry:
			t.pendingRetry = t.ScheduleRetry(t.retryInterval, t.retryJitter)
			level.Warn(t.log).Log("msg", "peer returned temporary failure, queuing delayed retry", "child", t.cfg.Name)
			return Success, nil
		}
	}

	if resp.ExchangeType == protocol.IKE_FOLLOWUP_KE {
		return t.processFollowupKe(resp)
	}

	sa := resp.sa()
	if sa == nil || len(sa.Proposals) != 1 {
		return Failed, fmt.Errorf("response carries no single chosen proposal")
	}
	chosen := sa.Proposals[0]
	our := clonedProposals(t.cfg.Proposals, t.exchangeType == protocol.IKE_AUTH)
	our.UpdateAndCheckProposals(t.sa.MySpi, protocol.KE_NONE)
	flags := protocol.SelectionFlags{
		SkipKe:         t.keMethod == protocol.KE_NONE,
		SkipPrivate:    !t.ike.PeerIsStrongswanExtended && !t.cfg.AllowPrivateAlgorithms,
		PreferSupplied: !t.cfg.PreferLocalProposals,
	}
	lp, _ := protocol.ChooseProposal(our, protocol.Proposals{chosen}, flags)
	if lp == nil {
		return Failed, fmt.Errorf("responder chose a proposal we did not offer")
	}
	t.sa.OtherSpi = chosen.Spi
	t.sa.Proposal = chosen

	if t.exchangeType != protocol.IKE_AUTH {
		nonce := resp.nonce()
		if nonce == nil {
			return Failed, fmt.Errorf("response missing nonce")
		}
		t.otherNonce = nonce.NonceData
	}

	if t.plan != nil && len(t.plan.Slots) > 0 {
		ke := resp.ke()
		if ke == nil {
			return Failed, fmt.Errorf("response missing key-exchange payload")
		}
		if err := t.plan.CompleteSlot(0, ke.KeyData); err != nil {
			t.bus.Alert(eventbus.AlertKeyExchangeInvalid, t.sa.Name, err)
			return Failed, errors.Wrap(err, "complete key-exchange slot 0")
		}
		if addPlan := BuildPlan(chosen); len(addPlan.Slots) > len(t.plan.Slots) {
			t.plan.Slots = append(t.plan.Slots, addPlan.Slots[len(t.plan.Slots):]...)
		}
	}
	if lt := resp.notify(protocol.ADDITIONAL_KEY_EXCHANGE); lt != nil {
		t.linkToken = lt.Data
	}

	// IPComp symmetry (spec.md §4.1 initiator-process step 6): we didn't
	// propose but peer accepted, or we proposed and peer chose a different
	// transform, fails the task; we proposed but peer didn't accept just
	// silently disables IPComp.
	ic := resp.notify(protocol.IPCOMP_SUPPORTED)
	switch {
	case ic == nil:
		t.sa.IpCompEnabled = false
	case ic != nil && !t.sa.IpCompEnabled:
		return Failed, fmt.Errorf("peer accepted IPComp we did not propose")
	default:
		d, err := protocol.DecodeIpCompSupportedData(ic.Data)
		if err != nil || d.Transform != protocol.IPCOMP_DEFLATE {
			return Failed, fmt.Errorf("peer chose an IPComp transform we did not propose")
		}
		t.sa.OtherCpi = d.Cpi
		t.sa.IpCompTransform = d.Transform
	}

	// Re-narrow against the peer's actually-returned selectors (spec.md
	// §4.1 initiator-process step 8, §4.2): the responder may narrow
	// further than our offer, and an empty intersection is TS_UNACCEPTABLE.
	tsi, tsr := resp.tsi(), resp.tsr()
	if tsi == nil || tsr == nil {
		return Failed, fmt.Errorf("response missing TSi/TSr payload")
	}
	localRes := NarrowTs(tsi.Selectors, t.cfg.LocalTs, t.ike.Nat, true, t.ike.LocalAddr)
	remoteRes := NarrowTs(tsr.Selectors, t.cfg.RemoteTs, t.ike.Nat, false, t.ike.RemoteAddr)
	if !localRes.Ok || !remoteRes.Ok {
		err := protocol.ErrF(protocol.ERR_TS_UNACCEPTABLE, "empty intersection with responder's returned selectors")
		t.bus.Alert(eventbus.AlertTsMismatch, t.sa.Name, err)
		return Failed, err
	}
	t.bus.Narrow(eventbus.NarrowResult{ChildName: t.sa.Name, Local: localRes.Selectors, Remote: remoteRes.Selectors, Ok: true})
	t.sa.LocalTs, t.sa.RemoteTs = localRes.Selectors, remoteRes.Selectors

	if t.plan != nil && t.plan.NextPending() > 0 {
		return NeedMore, nil
	}
	return t.finish(resp)
}

func (t *Task) processFollowupKe(resp *Message) (Status, error) {
	lt := resp.notify(protocol.ADDITIONAL_KEY_EXCHANGE)
	if lt == nil || !bytesEqual(lt.Data, t.linkToken) {
		return Failed, fmt.Errorf("follow-up key-exchange round: link token mismatch")
	}
	ke := resp.ke()
	if ke == nil {
		return Failed, fmt.Errorf("follow-up key-exchange round missing KE payload")
	}
	i := t.plan.NextPending()
	if i < 0 {
		return Failed, fmt.Errorf("follow-up key-exchange round received with no pending slot")
	}
	if err := t.plan.CompleteSlot(i, ke.KeyData); err != nil {
		t.bus.Alert(eventbus.AlertKeyExchangeInvalid, t.sa.Name, err)
		return Failed, errors.Wrapf(err, "complete key-exchange slot %d", i)
	}
	if t.plan.NextPending() > 0 {
		return NeedMore, nil
	}
	return t.finish(nil)
}

func (t *Task) finish(resp *Message) (Status, error) {
	var mode platform.Mode = platform.ModeTunnel
	var err error
	if resp != nil {
		requested := platform.ModeTunnel
		if resp.notify(protocol.USE_TRANSPORT_MODE) != nil {
			requested = platform.ModeTransport
		} else if resp.notify(protocol.USE_BEET_MODE) != nil {
			requested = platform.ModeBeet
		}
		mode, err = AcceptedMode(requested, t.cfg, t.sa.LocalTs, t.sa.RemoteTs, t.ike.LocalAddr, t.ike.RemoteAddr, true)
		if err != nil {
			t.bus.Alert(eventbus.AlertTsMismatch, t.sa.Name, err)
			return Failed, err
		}
	}
	t.sa.Mode = mode

	var suite *crypto.EspCipherSuite
	suite, err = crypto.NewEspCipherSuite(t.sa.Proposal.Transforms)
	if err != nil {
		return Failed, errors.Wrap(err, "build esp cipher suite")
	}

	var sharedSecrets [][]byte
	if t.plan != nil {
		sharedSecrets = t.plan.SharedSecrets()
	}
	km := DeriveKeymat(t.ike.Prf, t.ike.SkD, t.myNonce, t.otherNonce, sharedSecrets, suite)
	t.bus.ChildKeys(eventbus.ChildKeys{ChildName: t.sa.Name, EncrI: km.EncrI, IntegI: km.IntegI, EncrR: km.EncrR, IntegR: km.IntegR})

	encrId := protocol.EncrTransformId(t.sa.Proposal.Transforms[protocol.TRANSFORM_TYPE_ENCR].TransformId)
	authId := protocol.AuthTransformId(t.sa.Proposal.Transforms[protocol.TRANSFORM_TYPE_INTEG].TransformId)
	_, esn := t.sa.Proposal.Transforms[protocol.TRANSFORM_TYPE_ESN]

	installErr := Install(t.kern, t.bus, t.sa, km, InstallArgs{
		LocalAddr: t.ike.LocalAddr, RemoteAddr: t.ike.RemoteAddr,
		LocalTs: t.sa.LocalTs, RemoteTs: t.sa.RemoteTs,
		EncrId: encrId, AuthId: authId, Esn: esn,
		IsRekey: t.isRekey, IsInitiator: true,
	})
	if installErr != nil {
		return Failed, installErr
	}
	if t.cfg.InactivityTimeout > 0 {
		t.pendingInactivityTimer = &InactivityTimer{ChildName: t.sa.Name, Timeout: time.Duration(t.cfg.InactivityTimeout) * time.Second}
	}
	return Success, nil
}

func vipWildcardSelectors(vips []net.IP) protocol.Selectors {
	var out protocol.Selectors
	for _, vip := range vips {
		if vip.To4() != nil {
			out = append(out, &protocol.Selector{EndPort: 65535, StartAddr: net.IPv4zero, EndAddr: net.IPv4bcast})
		} else {
			out = append(out, &protocol.Selector{EndPort: 65535, StartAddr: net.IPv6zero, EndAddr: net.ParseIP("ffff:ffff:ffff:ffff:ffff:ffff:ffff:ffff")})
		}
	}
	return out
}

func clonedProposals(ps protocol.Proposals, stripKe bool) protocol.Proposals {
	out := make(protocol.Proposals, len(ps))
	for i, p := range ps {
		np := &protocol.Proposal{Number: uint8(i + 1), ProtocolId: p.ProtocolId, Transforms: protocol.Transforms{}}
		for typ, tr := range p.Transforms {
			if stripKe && typ == protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD {
				continue
			}
			np.Transforms[typ] = tr
		}
		out[i] = np
	}
	return out
}
