// Package protocol is the wire model for the IKEv2 payloads the CHILD_SA
// creation task exchanges: Security Association, Key Exchange, Nonce,
// Traffic Selectors, Notify and Delete. It is a sum type over payload kinds
// (protocol.Payload), not an inheritance hierarchy: the parser is a switch
// over the on-wire type tag.
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Spi is an IKE SPI: 8 bytes for the IKE_SA, 4 bytes for ESP/AH.
type Spi []byte

func (s Spi) String() string {
	return fmt.Sprintf("%x", []byte(s))
}

// IkeExchangeType identifies which of the three CHILD_SA-relevant exchanges,
// or the PQC follow-up exchange, a message belongs to.
type IkeExchangeType uint8

const (
	IKE_SA_INIT        IkeExchangeType = 34
	IKE_AUTH           IkeExchangeType = 35
	CREATE_CHILD_SA    IkeExchangeType = 36
	INFORMATIONAL      IkeExchangeType = 37
	IKE_SESSION_RESUME IkeExchangeType = 38
	// IKE_FOLLOWUP_KE carries one round of a post-quantum hybrid key
	// exchange plan entry beyond the primary KE. RFC 9242.
	IKE_FOLLOWUP_KE IkeExchangeType = 44
)

func (t IkeExchangeType) String() string {
	switch t {
	case IKE_SA_INIT:
		return "IKE_SA_INIT"
	case IKE_AUTH:
		return "IKE_AUTH"
	case CREATE_CHILD_SA:
		return "CREATE_CHILD_SA"
	case INFORMATIONAL:
		return "INFORMATIONAL"
	case IKE_SESSION_RESUME:
		return "IKE_SESSION_RESUME"
	case IKE_FOLLOWUP_KE:
		return "IKE_FOLLOWUP_KE"
	default:
		return fmt.Sprintf("IkeExchangeType(%d)", uint8(t))
	}
}

type PayloadType uint8

const (
	PayloadTypeNone  PayloadType = 0
	PayloadTypeSA    PayloadType = 33
	PayloadTypeKE    PayloadType = 34
	PayloadTypeNonce PayloadType = 40
	PayloadTypeN     PayloadType = 41
	PayloadTypeD     PayloadType = 42
	PayloadTypeTSi   PayloadType = 44
	PayloadTypeTSr   PayloadType = 45
	PayloadTypeSK    PayloadType = 46
)

type IkeFlags uint8

const (
	RESPONSE  IkeFlags = 1 << 5
	VERSION   IkeFlags = 1 << 4
	INITIATOR IkeFlags = 1 << 3
)

func (f IkeFlags) IsResponse() bool  { return f&RESPONSE != 0 }
func (f IkeFlags) IsInitiator() bool { return f&INITIATOR != 0 }

const IkeHeaderLen = 28

// IkeHeader is the fixed 28-byte IKEv2 message header (RFC 7296 §3.1).
type IkeHeader struct {
	SpiI, SpiR   Spi
	NextPayload  PayloadType
	MajorVersion uint8
	MinorVersion uint8
	ExchangeType IkeExchangeType
	Flags        IkeFlags
	MsgId        uint32
	MsgLength    uint32
}

func (h *IkeHeader) Encode() []byte {
	b := make([]byte, IkeHeaderLen)
	copy(b[0:8], h.SpiI)
	copy(b[8:16], h.SpiR)
	b[16] = byte(h.NextPayload)
	b[17] = h.MajorVersion<<4 | h.MinorVersion
	b[18] = byte(h.ExchangeType)
	b[19] = byte(h.Flags)
	binary.BigEndian.PutUint32(b[20:24], h.MsgId)
	binary.BigEndian.PutUint32(b[24:28], h.MsgLength)
	return b
}

func DecodeIkeHeader(b []byte) (*IkeHeader, error) {
	if len(b) < IkeHeaderLen {
		return nil, ErrF(ERR_INVALID_SYNTAX, "header too short: %d bytes", len(b))
	}
	h := &IkeHeader{
		SpiI:         append(Spi{}, b[0:8]...),
		SpiR:         append(Spi{}, b[8:16]...),
		NextPayload:  PayloadType(b[16]),
		MajorVersion: b[17] >> 4,
		MinorVersion: b[17] & 0x0f,
		ExchangeType: IkeExchangeType(b[18]),
		Flags:        IkeFlags(b[19]),
		MsgId:        binary.BigEndian.Uint32(b[20:24]),
		MsgLength:    binary.BigEndian.Uint32(b[24:28]),
	}
	if h.MsgLength < IkeHeaderLen {
		return nil, ErrF(ERR_INVALID_SYNTAX, "msg length %d shorter than header", h.MsgLength)
	}
	return h, nil
}

const PayloadHeaderLen = 4

// PayloadHeader is the 4-byte generic payload header every payload starts with.
type PayloadHeader struct {
	NextPayload   PayloadType
	IsCritical    bool
	PayloadLength uint16
}

func (h *PayloadHeader) NextPayloadType() PayloadType { return h.NextPayload }

func EncodePayloadHeader(pt PayloadType, bodyLen int) []byte {
	b := make([]byte, PayloadHeaderLen)
	b[0] = byte(pt)
	binary.BigEndian.PutUint16(b[2:4], uint16(bodyLen+PayloadHeaderLen))
	return b
}

func DecodePayloadHeader(b []byte) (*PayloadHeader, error) {
	if len(b) < PayloadHeaderLen {
		return nil, ErrF(ERR_INVALID_SYNTAX, "payload header too short: %d bytes", len(b))
	}
	h := &PayloadHeader{
		NextPayload:   PayloadType(b[0]),
		IsCritical:    b[1]&0x80 != 0,
		PayloadLength: binary.BigEndian.Uint16(b[2:4]),
	}
	return h, nil
}

// Payload is the sum type every concrete payload implements.
type Payload interface {
	Type() PayloadType
	Encode() []byte
	Decode([]byte) error
	NextPayloadType() PayloadType
}
