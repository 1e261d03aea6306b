package child

import "github.com/vpnsetup/strongswan/protocol"

// Message is the payload-level view of one exchange round this task
// builds or processes. Wire encode/decode, the SK wrapper, and message
// framing belong to the IKE engine (spec.md §1 non-goals); this task only
// ever sees the parsed payload list for the exchange it owns.
type Message struct {
	ExchangeType protocol.IkeExchangeType
	IsResponse   bool
	Payloads     []protocol.Payload
}

func (m *Message) sa() *protocol.SaPayload {
	for _, p := range m.Payloads {
		if sa, ok := p.(*protocol.SaPayload); ok {
			return sa
		}
	}
	return nil
}

func (m *Message) ke() *protocol.KePayload {
	for _, p := range m.Payloads {
		if ke, ok := p.(*protocol.KePayload); ok {
			return ke
		}
	}
	return nil
}

func (m *Message) nonce() *protocol.NoncePayload {
	for _, p := range m.Payloads {
		if n, ok := p.(*protocol.NoncePayload); ok {
			return n
		}
	}
	return nil
}

func (m *Message) tsi() *protocol.TrafficSelectorPayload {
	for _, p := range m.Payloads {
		if ts, ok := p.(*protocol.TrafficSelectorPayload); ok && !ts.IsResponder {
			return ts
		}
	}
	return nil
}

func (m *Message) tsr() *protocol.TrafficSelectorPayload {
	for _, p := range m.Payloads {
		if ts, ok := p.(*protocol.TrafficSelectorPayload); ok && ts.IsResponder {
			return ts
		}
	}
	return nil
}

func (m *Message) notifies() []*protocol.NotifyPayload {
	var out []*protocol.NotifyPayload
	for _, p := range m.Payloads {
		if n, ok := p.(*protocol.NotifyPayload); ok {
			out = append(out, n)
		}
	}
	return out
}

func (m *Message) notify(nt protocol.NotificationType) *protocol.NotifyPayload {
	for _, n := range m.notifies() {
		if n.NotificationType == nt {
			return n
		}
	}
	return nil
}

func (m *Message) deletePayload() *protocol.DeletePayload {
	for _, p := range m.Payloads {
		if d, ok := p.(*protocol.DeletePayload); ok {
			return d
		}
	}
	return nil
}
