package protocol

import "encoding/binary"

// ProtocolId names the IPsec protocol a proposal negotiates.
type ProtocolId uint8

const (
	PROTO_IKE ProtocolId = 1
	PROTO_AH  ProtocolId = 2
	PROTO_ESP ProtocolId = 3
)

// Proposal is one (protocol, SPI, transforms) offer inside an SA payload.
// Transforms is keyed by type so promote/lookup never scans a slice.
type Proposal struct {
	Number     uint8
	ProtocolId ProtocolId
	Spi        Spi
	Transforms Transforms
}

func (p *Proposal) IsEqual(o *Proposal) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.ProtocolId != o.ProtocolId || len(p.Transforms) != len(o.Transforms) {
		return false
	}
	for typ, t := range p.Transforms {
		ot, ok := o.Transforms[typ]
		if !ok || !t.IsEqual(ot) {
			return false
		}
	}
	return true
}

// SetSpi assigns the proposal's SPI, as done once our own SPI has been
// allocated (spec.md §4.1 initiator build step 7, responder process step 5).
func (p *Proposal) SetSpi(spi Spi) {
	p.Spi = spi
}

// PromoteTransform moves an already-present transform of the given type
// to be the proposal's sole pick for that type, matching by TransformId.
// Returns false, leaving the proposal unchanged, if the id is absent.
func (p *Proposal) PromoteTransform(typ TransformType, transformId uint16) bool {
	t, ok := p.Transforms[typ]
	if !ok || t.TransformId != transformId {
		return false
	}
	return true
}

// HasKeMethod reports whether the proposal offers the given key-exchange
// method in its primary KEY_EXCHANGE_METHOD slot.
func (p *Proposal) HasKeMethod(method KeMethodId) bool {
	t, ok := p.Transforms[TRANSFORM_TYPE_KEY_EXCHANGE_METHOD]
	return ok && KeMethodId(t.TransformId) == method
}

// KeMethod returns the proposal's primary key-exchange method, or KE_NONE if
// the proposal carries no KEY_EXCHANGE_METHOD transform (no PFS).
func (p *Proposal) KeMethod() KeMethodId {
	t, ok := p.Transforms[TRANSFORM_TYPE_KEY_EXCHANGE_METHOD]
	if !ok {
		return KE_NONE
	}
	return KeMethodId(t.TransformId)
}

// Proposals is an ordered offer list; order is a preference, most-preferred
// first, both for what we send and for what we choose among the peer's.
type Proposals []*Proposal

// UpdateAndCheckProposals assigns spi to every proposal and, if keMethod is
// not KE_NONE, reorders the list so proposals offering keMethod come first;
// proposals lacking it are pushed to the back without being dropped. Returns
// false if keMethod is set but no proposal offers it (spec.md §4.1 step 9).
func (ps Proposals) UpdateAndCheckProposals(spi Spi, keMethod KeMethodId) bool {
	for _, p := range ps {
		p.SetSpi(spi)
	}
	if keMethod == KE_NONE {
		return true
	}
	found := false
	have, lack := make(Proposals, 0, len(ps)), make(Proposals, 0, len(ps))
	for _, p := range ps {
		if p.HasKeMethod(keMethod) {
			have = append(have, p)
			found = true
		} else {
			lack = append(lack, p)
		}
	}
	copy(ps, append(have, lack...))
	return found
}

// SelectionFlags controls proposal-selection acceptance rules for the
// responder / initiator-verify side (spec.md §4.1 initiator process step 5).
type SelectionFlags struct {
	SkipKe        bool
	SkipPrivate   bool
	PreferSupplied bool
}

const privateUseThreshold = 1024

func isPrivateUse(t Transform) bool {
	return t.TransformId >= privateUseThreshold
}

// ChooseProposal selects a single mutually-acceptable proposal from a
// (local, remote) pair; ordering preference follows PreferSupplied: when
// true, iterate remote-outer/local-inner (peer's order wins ties), else the
// reverse. Two proposals match iff every transform type the local proposal
// carries that the remote one also carries has the same id in both, and the
// remote one carries the local proposal's ENCR and ESN types, plus INTEG
// unless the local ENCR is AEAD; other types (PRF, KEY_EXCHANGE_METHOD, the
// additional key exchanges) may be absent from the remote proposal.
// KEY_EXCHANGE_METHOD is not compared when SkipKe is set. It returns the
// matching local proposal and the selected proposal: the local transforms
// that matched, with the remote proposal's number and SPI.
func ChooseProposal(local, remote Proposals, flags SelectionFlags) (lp *Proposal, rp *Proposal) {
	outer, inner := local, remote
	if flags.PreferSupplied {
		outer, inner = remote, local
	}
	for _, o := range outer {
		for _, in := range inner {
			l, r := o, in
			if flags.PreferSupplied {
				l, r = in, o
			}
			if l.ProtocolId != r.ProtocolId {
				continue
			}
			if merged, ok := mergeProposal(l, r, flags); ok {
				merged.Number, merged.Spi = r.Number, r.Spi
				return l, merged
			}
		}
	}
	return nil, nil
}

// mergeProposal intersects two proposals transform-by-transform, returning a
// new Proposal carrying the chosen id per type, or ok=false if any required
// type has no common id.
func mergeProposal(a, b *Proposal, flags SelectionFlags) (*Proposal, bool) {
	out := Transforms{}
	for typ, ta := range a.Transforms {
		if typ == TRANSFORM_TYPE_KEY_EXCHANGE_METHOD && flags.SkipKe {
			continue
		}
		tb, ok := b.Transforms[typ]
		if !ok {
			if requiredType(typ, a) {
				return nil, false
			}
			continue
		}
		if flags.SkipPrivate && (isPrivateUse(ta) || isPrivateUse(tb)) {
			return nil, false
		}
		if ta.TransformId != tb.TransformId {
			return nil, false
		}
		out[typ] = ta
	}
	return &Proposal{ProtocolId: a.ProtocolId, Transforms: out}, true
}

func requiredType(typ TransformType, p *Proposal) bool {
	switch typ {
	case TRANSFORM_TYPE_ENCR, TRANSFORM_TYPE_ESN:
		return true
	case TRANSFORM_TYPE_INTEG:
		enc, ok := p.Transforms[TRANSFORM_TYPE_ENCR]
		return ok && !isAead(EncrTransformId(enc.TransformId))
	default:
		return false
	}
}

func isAead(id EncrTransformId) bool {
	switch id {
	case AEAD_AES_GCM_8, AEAD_AES_GCM_12, AEAD_AES_GCM_16:
		return true
	default:
		return false
	}
}

// SaPayload is the wire Security Association payload: an ordered list of
// proposals. Encoding of individual transform attributes is handled inline
// since the only variable attribute in use here is ATTRIBUTE_TYPE_KEY_LENGTH.
type SaPayload struct {
	Proposals   Proposals
	NextPayload PayloadType
}

func (s *SaPayload) Type() PayloadType            { return PayloadTypeSA }
func (s *SaPayload) NextPayloadType() PayloadType { return s.NextPayload }

const attrTypeKeyLength = 0x800e // AF bit set, attribute type 14 (TV format)

func encodeTransform(t Transform, isLast bool) []byte {
	attrLen := 0
	if t.KeyLength != 0 {
		attrLen = 4
	}
	body := make([]byte, 8+attrLen)
	if !isLast {
		body[0] = 3 // TRANSFORM_MORE
	}
	binary.BigEndian.PutUint16(body[2:4], uint16(8+attrLen))
	body[4] = byte(t.Type)
	binary.BigEndian.PutUint16(body[6:8], t.TransformId)
	if attrLen > 0 {
		binary.BigEndian.PutUint16(body[8:10], attrTypeKeyLength)
		binary.BigEndian.PutUint16(body[10:12], t.KeyLength)
	}
	return body
}

func decodeTransform(b []byte) (Transform, bool, int, error) {
	if len(b) < 8 {
		return Transform{}, false, 0, ErrF(ERR_INVALID_SYNTAX, "transform header too short: %d bytes", len(b))
	}
	more := b[0] == 3
	length := int(binary.BigEndian.Uint16(b[2:4]))
	if length < 8 || length > len(b) {
		return Transform{}, false, 0, ErrF(ERR_INVALID_SYNTAX, "transform length %d out of range", length)
	}
	t := Transform{
		Type:        TransformType(b[4]),
		TransformId: binary.BigEndian.Uint16(b[6:8]),
	}
	if length > 8 {
		attrs := b[8:length]
		if len(attrs) >= 4 && binary.BigEndian.Uint16(attrs[0:2]) == attrTypeKeyLength {
			t.KeyLength = binary.BigEndian.Uint16(attrs[2:4])
		}
	}
	return t, more, length, nil
}

func encodeProposal(p *Proposal, isLast bool) []byte {
	list := p.Transforms.AsList()
	var transformBytes []byte
	for i, t := range list {
		transformBytes = append(transformBytes, encodeTransform(t, i == len(list)-1)...)
	}
	header := make([]byte, 8+len(p.Spi))
	if !isLast {
		header[0] = 2 // PROPOSAL_MORE
	}
	binary.BigEndian.PutUint16(header[2:4], uint16(8+len(p.Spi)+len(transformBytes)))
	header[4] = p.Number
	header[5] = byte(p.ProtocolId)
	header[6] = byte(len(p.Spi))
	header[7] = byte(len(list))
	copy(header[8:], p.Spi)
	return append(header, transformBytes...)
}

func decodeProposal(b []byte) (*Proposal, bool, int, error) {
	if len(b) < 8 {
		return nil, false, 0, ErrF(ERR_INVALID_SYNTAX, "proposal header too short: %d bytes", len(b))
	}
	more := b[0] == 2
	length := int(binary.BigEndian.Uint16(b[2:4]))
	if length < 8 || length > len(b) {
		return nil, false, 0, ErrF(ERR_INVALID_SYNTAX, "proposal length %d out of range", length)
	}
	spiLen := int(b[6])
	numTransforms := int(b[7])
	if 8+spiLen > length {
		return nil, false, 0, ErrF(ERR_INVALID_SYNTAX, "proposal spi size exceeds proposal: %d", spiLen)
	}
	p := &Proposal{
		Number:     b[4],
		ProtocolId: ProtocolId(b[5]),
		Spi:        append(Spi{}, b[8:8+spiLen]...),
		Transforms: Transforms{},
	}
	rest := b[8+spiLen : length]
	for i := 0; i < numTransforms; i++ {
		t, tMore, n, err := decodeTransform(rest)
		if err != nil {
			return nil, false, 0, err
		}
		p.Transforms[t.Type] = t
		rest = rest[n:]
		if !tMore && i != numTransforms-1 {
			return nil, false, 0, ErrF(ERR_INVALID_SYNTAX, "proposal declares %d transforms but chain ended after %d", numTransforms, i+1)
		}
	}
	return p, more, length, nil
}

func (s *SaPayload) Encode() []byte {
	var body []byte
	for i, p := range s.Proposals {
		body = append(body, encodeProposal(p, i == len(s.Proposals)-1)...)
	}
	return append(EncodePayloadHeader(PayloadTypeSA, len(body)), body...)
}

func (s *SaPayload) Decode(b []byte) error {
	s.Proposals = nil
	for len(b) > 0 {
		p, more, n, err := decodeProposal(b)
		if err != nil {
			return err
		}
		s.Proposals = append(s.Proposals, p)
		b = b[n:]
		if !more && len(b) != 0 {
			return ErrF(ERR_INVALID_SYNTAX, "trailing bytes after last proposal: %d", len(b))
		}
	}
	return nil
}
