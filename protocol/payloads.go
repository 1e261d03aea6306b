package protocol

// KePayload carries one key-exchange method's public value. RFC 9370
// extends the original single-KE payload with a DataPayloadNumber so a
// follow-up exchange's payload can be attributed to its plan slot, but on
// the wire a KE payload always names exactly one method.
type KePayload struct {
	DhTransformId KeMethodId
	KeyData       []byte
	NextPayload   PayloadType
}

func (k *KePayload) Type() PayloadType            { return PayloadTypeKE }
func (k *KePayload) NextPayloadType() PayloadType { return k.NextPayload }

func (k *KePayload) Encode() []byte {
	body := make([]byte, 4+len(k.KeyData))
	body[0] = byte(k.DhTransformId >> 8)
	body[1] = byte(k.DhTransformId)
	copy(body[4:], k.KeyData)
	return append(EncodePayloadHeader(PayloadTypeKE, len(body)), body...)
}

func (k *KePayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "KE payload too short: %d bytes", len(b))
	}
	k.DhTransformId = KeMethodId(uint16(b[0])<<8 | uint16(b[1]))
	k.KeyData = append([]byte{}, b[4:]...)
	return nil
}

// NoncePayload carries a single nonce, 16-256 bytes per RFC 7296 §3.9.
type NoncePayload struct {
	NonceData   []byte
	NextPayload PayloadType
}

func (n *NoncePayload) Type() PayloadType            { return PayloadTypeNonce }
func (n *NoncePayload) NextPayloadType() PayloadType { return n.NextPayload }

func (n *NoncePayload) Encode() []byte {
	return append(EncodePayloadHeader(PayloadTypeNonce, len(n.NonceData)), n.NonceData...)
}

func (n *NoncePayload) Decode(b []byte) error {
	if len(b) < 16 || len(b) > 256 {
		return ErrF(ERR_INVALID_SYNTAX, "nonce length %d out of [16,256]", len(b))
	}
	n.NonceData = append([]byte{}, b...)
	return nil
}

// DeletePayload requests removal of one or more SAs of a single protocol.
type DeletePayload struct {
	ProtocolId  ProtocolId
	Spis        []Spi
	NextPayload PayloadType
}

func (d *DeletePayload) Type() PayloadType            { return PayloadTypeD }
func (d *DeletePayload) NextPayloadType() PayloadType { return d.NextPayload }

func (d *DeletePayload) Encode() []byte {
	spiSize := 0
	if len(d.Spis) > 0 {
		spiSize = len(d.Spis[0])
	}
	body := make([]byte, 4+spiSize*len(d.Spis))
	body[0] = byte(d.ProtocolId)
	body[1] = byte(spiSize)
	body[2] = byte(len(d.Spis) >> 8)
	body[3] = byte(len(d.Spis))
	off := 4
	for _, spi := range d.Spis {
		copy(body[off:], spi)
		off += spiSize
	}
	return append(EncodePayloadHeader(PayloadTypeD, len(body)), body...)
}

func (d *DeletePayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "delete payload too short: %d bytes", len(b))
	}
	d.ProtocolId = ProtocolId(b[0])
	spiSize := int(b[1])
	numSpis := int(uint16(b[2])<<8 | uint16(b[3]))
	rest := b[4:]
	if len(rest) < spiSize*numSpis {
		return ErrF(ERR_INVALID_SYNTAX, "delete payload declares %d spis of size %d but only %d bytes remain", numSpis, spiSize, len(rest))
	}
	d.Spis = nil
	for i := 0; i < numSpis; i++ {
		d.Spis = append(d.Spis, append(Spi{}, rest[i*spiSize:(i+1)*spiSize]...))
	}
	return nil
}
