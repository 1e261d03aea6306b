package protocol

import (
	"bytes"
	"net"
)

// TsType distinguishes the two address families a traffic selector names.
type TsType uint8

const (
	TS_IPV4_ADDR_RANGE TsType = 7
	TS_IPV6_ADDR_RANGE TsType = 8
)

// Selector is one traffic selector: a (protocol, port range, address range)
// tuple, with an optional security label carried alongside (not on the wire
// TS payload itself — labels ride a separate extension this repo treats as
// opaque bytes attached to the selector in memory).
type Selector struct {
	IpProtocolId uint8
	StartPort    uint16
	EndPort      uint16
	StartAddr    net.IP
	EndAddr      net.IP
	Label        []byte
}

func (s *Selector) tsType() TsType {
	if s.StartAddr.To4() != nil {
		return TS_IPV4_ADDR_RANGE
	}
	return TS_IPV6_ADDR_RANGE
}

// IsHost reports whether the selector matches exactly one address: its
// start and end addresses are equal. If h is non-nil, the selector must
// additionally match h.
func (s *Selector) IsHost(h net.IP) bool {
	if !s.StartAddr.Equal(s.EndAddr) {
		return false
	}
	if h == nil {
		return true
	}
	return s.StartAddr.Equal(h)
}

// ToSubnet returns the lowest enclosing CIDR for the selector's address
// range. A single-host selector yields a /32 or /128.
func (s *Selector) ToSubnet() *net.IPNet {
	ip4 := s.StartAddr.To4()
	if ip4 != nil {
		bits := prefixLen(ip4, s.EndAddr.To4())
		mask := net.CIDRMask(bits, 32)
		return &net.IPNet{IP: ip4.Mask(mask), Mask: mask}
	}
	start6, end6 := s.StartAddr.To16(), s.EndAddr.To16()
	bits := prefixLen(start6, end6)
	mask := net.CIDRMask(bits, 128)
	return &net.IPNet{IP: start6.Mask(mask), Mask: mask}
}

func prefixLen(start, end net.IP) int {
	total := len(start) * 8
	for i := total; i > 0; i-- {
		mask := net.CIDRMask(i, total)
		if bytes.Equal(start.Mask(mask), end.Mask(mask)) {
			return i
		}
	}
	return 0
}

// Clone returns a deep copy of the selector.
func (s *Selector) Clone() *Selector {
	c := *s
	c.StartAddr = append(net.IP{}, s.StartAddr...)
	c.EndAddr = append(net.IP{}, s.EndAddr...)
	if s.Label != nil {
		c.Label = append([]byte{}, s.Label...)
	}
	return &c
}

// SetAddress collapses the selector to a single host address, preserving
// ports and protocol.
func (s *Selector) SetAddress(h net.IP) *Selector {
	c := s.Clone()
	c.StartAddr = append(net.IP{}, h...)
	c.EndAddr = append(net.IP{}, h...)
	return c
}

func (s *Selector) contains(addr net.IP) bool {
	return bytes.Compare(addr, s.StartAddr) >= 0 && bytes.Compare(addr, s.EndAddr) <= 0
}

// intersect returns the overlap of two selectors of matching protocol, or
// nil if they don't overlap (different protocol, port ranges, or address
// ranges disjoint).
func intersect(a, b *Selector) *Selector {
	if a.IpProtocolId != 0 && b.IpProtocolId != 0 && a.IpProtocolId != b.IpProtocolId {
		return nil
	}
	proto := a.IpProtocolId
	if proto == 0 {
		proto = b.IpProtocolId
	}
	startPort := a.StartPort
	if b.StartPort > startPort {
		startPort = b.StartPort
	}
	endPort := a.EndPort
	if b.EndPort < endPort {
		endPort = b.EndPort
	}
	if startPort > endPort {
		return nil
	}
	startAddr := a.StartAddr
	if bytes.Compare(b.StartAddr, startAddr) > 0 {
		startAddr = b.StartAddr
	}
	endAddr := a.EndAddr
	if bytes.Compare(b.EndAddr, endAddr) < 0 {
		endAddr = b.EndAddr
	}
	if bytes.Compare(startAddr, endAddr) > 0 {
		return nil
	}
	return &Selector{IpProtocolId: proto, StartPort: startPort, EndPort: endPort, StartAddr: startAddr, EndAddr: endAddr}
}

// Selectors is an ordered traffic-selector list.
type Selectors []*Selector

// Narrow intersects the peer-offered list against the configured template
// list, preserving the peer's ordering as preference (spec.md §4.2): for
// each peer selector in order, intersect against every template selector
// and keep every non-empty result.
func Narrow(peer, template Selectors) Selectors {
	var out Selectors
	for _, p := range peer {
		for _, t := range template {
			if n := intersect(p, t); n != nil {
				out = append(out, n)
			}
		}
	}
	return out
}

// SubstituteNatTransport implements the TRANSPORT-mode NAT substitution of
// spec.md §4.2: every selector in ts must be a single host naming the same
// address, which is replaced by endpoint. Returns nil if that precondition
// fails (the original list should then be used unsubstituted).
func SubstituteNatTransport(ts Selectors, endpoint net.IP) Selectors {
	if len(ts) == 0 {
		return nil
	}
	var addr net.IP
	for _, s := range ts {
		if !s.IsHost(nil) {
			return nil
		}
		if addr == nil {
			addr = s.StartAddr
		} else if !addr.Equal(s.StartAddr) {
			return nil
		}
	}
	out := make(Selectors, len(ts))
	for i, s := range ts {
		out[i] = s.SetAddress(endpoint)
	}
	return out
}

// TrafficSelectorPayload is the wire TSi/TSr payload.
type TrafficSelectorPayload struct {
	IsResponder bool
	Selectors   Selectors
	NextPayload PayloadType
}

func (t *TrafficSelectorPayload) Type() PayloadType {
	if t.IsResponder {
		return PayloadTypeTSr
	}
	return PayloadTypeTSi
}

func (t *TrafficSelectorPayload) NextPayloadType() PayloadType { return t.NextPayload }

func encodeSelector(s *Selector) []byte {
	addrLen := 4
	tsType := TS_IPV4_ADDR_RANGE
	start, end := s.StartAddr.To4(), s.EndAddr.To4()
	if start == nil {
		addrLen = 16
		tsType = TS_IPV6_ADDR_RANGE
		start, end = s.StartAddr.To16(), s.EndAddr.To16()
	}
	tsLen := 8 + 2*addrLen
	body := make([]byte, tsLen)
	body[0] = byte(tsType)
	body[1] = s.IpProtocolId
	body[2] = byte(tsLen >> 8)
	body[3] = byte(tsLen)
	body[4] = byte(s.StartPort >> 8)
	body[5] = byte(s.StartPort)
	body[6] = byte(s.EndPort >> 8)
	body[7] = byte(s.EndPort)
	copy(body[8:8+addrLen], start)
	copy(body[8+addrLen:], end)
	return body
}

func decodeSelector(b []byte) (*Selector, int, error) {
	if len(b) < 8 {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "selector header too short: %d bytes", len(b))
	}
	tsType := TsType(b[0])
	length := int(b[2])<<8 | int(b[3])
	addrLen := 4
	if tsType == TS_IPV6_ADDR_RANGE {
		addrLen = 16
	}
	if length != 8+2*addrLen || length > len(b) {
		return nil, 0, ErrF(ERR_INVALID_SYNTAX, "selector length %d inconsistent with type", length)
	}
	s := &Selector{
		IpProtocolId: b[1],
		StartPort:    uint16(b[4])<<8 | uint16(b[5]),
		EndPort:      uint16(b[6])<<8 | uint16(b[7]),
		StartAddr:    append(net.IP{}, b[8:8+addrLen]...),
		EndAddr:      append(net.IP{}, b[8+addrLen:8+2*addrLen]...),
	}
	return s, length, nil
}

func (t *TrafficSelectorPayload) Encode() []byte {
	body := []byte{byte(len(t.Selectors)), 0, 0, 0}
	for _, s := range t.Selectors {
		body = append(body, encodeSelector(s)...)
	}
	return append(EncodePayloadHeader(t.Type(), len(body)), body...)
}

func (t *TrafficSelectorPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "TS payload too short: %d bytes", len(b))
	}
	count := int(b[0])
	rest := b[4:]
	t.Selectors = nil
	for i := 0; i < count; i++ {
		s, n, err := decodeSelector(rest)
		if err != nil {
			return err
		}
		t.Selectors = append(t.Selectors, s)
		rest = rest[n:]
	}
	return nil
}
