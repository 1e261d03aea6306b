package child

import (
	"fmt"

	"github.com/vpnsetup/strongswan/crypto"
	"github.com/vpnsetup/strongswan/protocol"
)

// MaxKeyExchanges is the fixed plan length: one primary slot plus the 7
// RFC 9370 additional-key-exchange slots (spec.md §3).
const MaxKeyExchanges = 8

// PlanSlot is one entry in the key-exchange plan.
type PlanSlot struct {
	TransformType protocol.TransformType
	Method        protocol.KeMethodId
	Done          bool
	Session       crypto.Session
	SharedSecret  []byte
}

// Plan is the fixed-length, densely-packed sequence of key-exchange slots
// derived from a selected proposal (spec.md §4.3). Index 0 is the primary
// KEY_EXCHANGE_METHOD; indices 1..7 are ADDITIONAL_KEY_EXCHANGE_1..7.
type Plan struct {
	Slots []PlanSlot
}

// BuildPlan scans the selected proposal for KEY_EXCHANGE_METHOD then
// ADDITIONAL_KEY_EXCHANGE_1..7 in order, stopping at the first absent
// transform: gaps are not allowed, so any additional exchange present after
// a gap is ignored (spec.md §4.3).
func BuildPlan(p *protocol.Proposal) *Plan {
	plan := &Plan{}
	primary, ok := p.Transforms[protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD]
	if !ok {
		return plan // no PFS: empty plan
	}
	plan.Slots = append(plan.Slots, PlanSlot{
		TransformType: protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD,
		Method:        protocol.KeMethodId(primary.TransformId),
	})
	for _, typ := range protocol.AdditionalKeyExchangeTypes {
		t, ok := p.Transforms[typ]
		if !ok {
			break
		}
		plan.Slots = append(plan.Slots, PlanSlot{
			TransformType: typ,
			Method:        protocol.KeMethodId(t.TransformId),
		})
	}
	return plan
}

// IsEmpty reports a no-PFS plan (no CHILD_SA rekey/KE negotiated).
func (p *Plan) IsEmpty() bool { return len(p.Slots) == 0 }

// NextPending returns the index of the first unfinished slot, or -1 if the
// plan is complete. Slots execute in strict total order (spec.md §5).
func (p *Plan) NextPending() int {
	for i := range p.Slots {
		if !p.Slots[i].Done {
			return i
		}
	}
	return -1
}

// StartSlot instantiates a Session for the slot at index i, as the
// initiator (emits its public value first) or responder (emits in reply).
func (p *Plan) StartSlot(i int, isInitiator bool, peerPublicKey []byte) error {
	slot := &p.Slots[i]
	var sess crypto.Session
	var err error
	if isInitiator {
		sess, err = crypto.NewInitiatorSession(slot.Method)
	} else {
		sess, err = crypto.NewResponderSession(slot.Method)
	}
	if err != nil {
		return fmt.Errorf("key-exchange slot %d (%s): %w", i, slot.Method, err)
	}
	slot.Session = sess
	return nil
}

// CompleteSlot applies the peer's public value to slot i's session and, on
// success, records its shared secret and marks it done. On failure the
// caller should flag ke_failed per spec.md §4.3.
func (p *Plan) CompleteSlot(i int, peerPublicValue []byte) error {
	slot := &p.Slots[i]
	if slot.Session == nil {
		return fmt.Errorf("key-exchange slot %d: session not started", i)
	}
	if err := slot.Session.SetPeerPublicValue(peerPublicValue); err != nil {
		return fmt.Errorf("key-exchange slot %d (%s): %w", i, slot.Method, err)
	}
	secret, err := slot.Session.SharedSecret()
	if err != nil {
		return fmt.Errorf("key-exchange slot %d (%s): %w", i, slot.Method, err)
	}
	slot.SharedSecret = secret
	slot.Done = true
	return nil
}

// SharedSecrets returns the ordered concatenation input for the keymat:
// primary first, then additional 1..k, per spec.md §4.3's closing
// paragraph. Only valid once every slot is Done.
func (p *Plan) SharedSecrets() [][]byte {
	out := make([][]byte, len(p.Slots))
	for i, s := range p.Slots {
		out[i] = s.SharedSecret
	}
	return out
}
