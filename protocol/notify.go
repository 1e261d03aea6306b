package protocol

// NotificationType is the wire notify message type (RFC 7296 §3.10.1, plus
// the RFC 9242/9370 additional-key-exchange codepoints). Error types are
// numbered < 16384; status types are >= 16384. Unknown error types abort the
// CHILD; unknown status types are logged and ignored (spec.md §4.6).
type NotificationType uint16

const (
	UNSUPPORTED_CRITICAL_PAYLOAD NotificationType = 1
	INVALID_IKE_SPI              NotificationType = 4
	INVALID_MAJOR_VERSION        NotificationType = 5
	INVALID_SYNTAX               NotificationType = 7
	INVALID_MESSAGE_ID           NotificationType = 9
	INVALID_SPI                  NotificationType = 11
	NO_PROPOSAL_CHOSEN           NotificationType = 14
	INVALID_KE_PAYLOAD           NotificationType = 17
	AUTHENTICATION_FAILED        NotificationType = 24
	SINGLE_PAIR_REQUIRED         NotificationType = 34
	NO_ADDITIONAL_SAS            NotificationType = 35
	INTERNAL_ADDRESS_FAILURE     NotificationType = 36
	FAILED_CP_REQUIRED           NotificationType = 37
	TS_UNACCEPTABLE              NotificationType = 38
	INVALID_SELECTORS            NotificationType = 39
	TEMPORARY_FAILURE            NotificationType = 43
	CHILD_SA_NOT_FOUND           NotificationType = 44

	// KE_METHOD_MISMATCH (RFC 9370 §4): additional key exchange method
	// proposed by the initiator is not acceptable to the responder.
	KE_METHOD_MISMATCH NotificationType = 45
)

const (
	INITIAL_CONTACT                NotificationType = 16384
	SET_WINDOW_SIZE                NotificationType = 16385
	ESP_TFC_PADDING_NOT_SUPPORTED  NotificationType = 16394
	NON_FIRST_FRAGMENTS_ALSO       NotificationType = 16395
	MOBIKE_SUPPORTED               NotificationType = 16396
	USE_TRANSPORT_MODE             NotificationType = 16391
	REKEY_SA                       NotificationType = 16393
	IPCOMP_SUPPORTED               NotificationType = 16387
	NAT_DETECTION_SOURCE_IP        NotificationType = 16388
	NAT_DETECTION_DESTINATION_IP   NotificationType = 16389
	USE_BEET_MODE                  NotificationType = 16407
	// ADDITIONAL_KEY_EXCHANGE carries the link token correlating the
	// IKE_FOLLOWUP_KE rounds of a hybrid key-exchange plan to this
	// CHILD_SA negotiation (RFC 9242 §4).
	ADDITIONAL_KEY_EXCHANGE NotificationType = 16441
)

func (n NotificationType) IsError() bool { return n < 16384 }

func (n NotificationType) String() string {
	switch n {
	case UNSUPPORTED_CRITICAL_PAYLOAD:
		return "UNSUPPORTED_CRITICAL_PAYLOAD"
	case INVALID_IKE_SPI:
		return "INVALID_IKE_SPI"
	case INVALID_MAJOR_VERSION:
		return "INVALID_MAJOR_VERSION"
	case INVALID_SYNTAX:
		return "INVALID_SYNTAX"
	case INVALID_MESSAGE_ID:
		return "INVALID_MESSAGE_ID"
	case INVALID_SPI:
		return "INVALID_SPI"
	case NO_PROPOSAL_CHOSEN:
		return "NO_PROPOSAL_CHOSEN"
	case INVALID_KE_PAYLOAD:
		return "INVALID_KE_PAYLOAD"
	case AUTHENTICATION_FAILED:
		return "AUTHENTICATION_FAILED"
	case SINGLE_PAIR_REQUIRED:
		return "SINGLE_PAIR_REQUIRED"
	case NO_ADDITIONAL_SAS:
		return "NO_ADDITIONAL_SAS"
	case INTERNAL_ADDRESS_FAILURE:
		return "INTERNAL_ADDRESS_FAILURE"
	case FAILED_CP_REQUIRED:
		return "FAILED_CP_REQUIRED"
	case TS_UNACCEPTABLE:
		return "TS_UNACCEPTABLE"
	case INVALID_SELECTORS:
		return "INVALID_SELECTORS"
	case TEMPORARY_FAILURE:
		return "TEMPORARY_FAILURE"
	case CHILD_SA_NOT_FOUND:
		return "CHILD_SA_NOT_FOUND"
	case KE_METHOD_MISMATCH:
		return "KE_METHOD_MISMATCH"
	case INITIAL_CONTACT:
		return "INITIAL_CONTACT"
	case SET_WINDOW_SIZE:
		return "SET_WINDOW_SIZE"
	case ESP_TFC_PADDING_NOT_SUPPORTED:
		return "ESP_TFC_PADDING_NOT_SUPPORTED"
	case NON_FIRST_FRAGMENTS_ALSO:
		return "NON_FIRST_FRAGMENTS_ALSO"
	case MOBIKE_SUPPORTED:
		return "MOBIKE_SUPPORTED"
	case USE_TRANSPORT_MODE:
		return "USE_TRANSPORT_MODE"
	case REKEY_SA:
		return "REKEY_SA"
	case IPCOMP_SUPPORTED:
		return "IPCOMP_SUPPORTED"
	case NAT_DETECTION_SOURCE_IP:
		return "NAT_DETECTION_SOURCE_IP"
	case NAT_DETECTION_DESTINATION_IP:
		return "NAT_DETECTION_DESTINATION_IP"
	case USE_BEET_MODE:
		return "USE_BEET_MODE"
	case ADDITIONAL_KEY_EXCHANGE:
		return "ADDITIONAL_KEY_EXCHANGE"
	default:
		if n >= 16384 {
			return "STATUS(" + itoa(uint16(n)) + ")"
		}
		return "ERROR(" + itoa(uint16(n)) + ")"
	}
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// IpCompTransformId is the IPComp transform ID carried in an
// IPCOMP_SUPPORTED notify's data (RFC 7296 §3.10.1). Only DEFLATE is
// accepted per spec.md §4.6.
type IpCompTransformId uint8

const (
	IPCOMP_OUI     IpCompTransformId = 1
	IPCOMP_DEFLATE IpCompTransformId = 2
	IPCOMP_LZS     IpCompTransformId = 3
	IPCOMP_LZJH    IpCompTransformId = 4
)

// NotifyPayload is the (type, optional SPI, opaque data) notify payload.
type NotifyPayload struct {
	ProtocolId       uint8
	Spi              Spi
	NotificationType NotificationType
	Data             []byte
	NextPayload      PayloadType
}

func (n *NotifyPayload) Type() PayloadType           { return PayloadTypeN }
func (n *NotifyPayload) NextPayloadType() PayloadType { return n.NextPayload }

func (n *NotifyPayload) Encode() []byte {
	body := make([]byte, 4+len(n.Spi)+len(n.Data))
	body[0] = n.ProtocolId
	body[1] = uint8(len(n.Spi))
	body[2] = byte(n.NotificationType >> 8)
	body[3] = byte(n.NotificationType)
	copy(body[4:], n.Spi)
	copy(body[4+len(n.Spi):], n.Data)
	return append(EncodePayloadHeader(PayloadTypeN, len(body)), body...)
}

func (n *NotifyPayload) Decode(b []byte) error {
	if len(b) < 4 {
		return ErrF(ERR_INVALID_SYNTAX, "notify payload too short: %d bytes", len(b))
	}
	spiLen := int(b[1])
	if len(b) < 4+spiLen {
		return ErrF(ERR_INVALID_SYNTAX, "notify spi size exceeds payload: %d > %d", spiLen, len(b)-4)
	}
	n.ProtocolId = b[0]
	n.NotificationType = NotificationType(uint16(b[2])<<8 | uint16(b[3]))
	n.Spi = append(Spi{}, b[4:4+spiLen]...)
	n.Data = append([]byte{}, b[4+spiLen:]...)
	return nil
}

// EncodeInvalidKePayloadData encodes the 16-bit key-exchange method suggested
// by a responder's INVALID_KE_PAYLOAD notify.
func EncodeInvalidKePayloadData(method KeMethodId) []byte {
	return []byte{byte(method >> 8), byte(method)}
}

// DecodeInvalidKePayloadData parses the notify data of an INVALID_KE_PAYLOAD.
func DecodeInvalidKePayloadData(data []byte) (KeMethodId, error) {
	if len(data) != 2 {
		return 0, ErrF(ERR_INVALID_SYNTAX, "INVALID_KE_PAYLOAD data must be 2 bytes, got %d", len(data))
	}
	return KeMethodId(uint16(data[0])<<8 | uint16(data[1])), nil
}

// IpCompSupportedData is the (CPI, transform) pair an IPCOMP_SUPPORTED
// notify carries: a 2-byte CPI followed by a 1-byte transform ID.
type IpCompSupportedData struct {
	Cpi       uint16
	Transform IpCompTransformId
}

func EncodeIpCompSupportedData(d IpCompSupportedData) []byte {
	return []byte{byte(d.Cpi >> 8), byte(d.Cpi), byte(d.Transform)}
}

func DecodeIpCompSupportedData(data []byte) (IpCompSupportedData, error) {
	if len(data) != 3 {
		return IpCompSupportedData{}, ErrF(ERR_INVALID_SYNTAX, "IPCOMP_SUPPORTED data must be 3 bytes, got %d", len(data))
	}
	return IpCompSupportedData{
		Cpi:       uint16(data[0])<<8 | uint16(data[1]),
		Transform: IpCompTransformId(data[2]),
	}, nil
}
