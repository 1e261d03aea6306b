package protocol

// TransformType groups transforms by what they negotiate. Types 6-12 are the
// RFC 9370 additional key exchange slots used by post-quantum hybrid
// proposals; KEY_EXCHANGE_METHOD (4) is the classic "DH group" field,
// renamed per RFC 9370 since it may now name a KEM as well as a DH group.
type TransformType uint8

const (
	TRANSFORM_TYPE_ENCR                TransformType = 1
	TRANSFORM_TYPE_PRF                 TransformType = 2
	TRANSFORM_TYPE_INTEG               TransformType = 3
	TRANSFORM_TYPE_KEY_EXCHANGE_METHOD TransformType = 4
	TRANSFORM_TYPE_ESN                 TransformType = 5

	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_1 TransformType = 6
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_2 TransformType = 7
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_3 TransformType = 8
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_4 TransformType = 9
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_5 TransformType = 10
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_6 TransformType = 11
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_7 TransformType = 12
)

// AdditionalKeyExchangeTypes lists the 7 slots in declared order, matching
// the dense-packing invariant of the key-exchange plan (spec.md §3).
var AdditionalKeyExchangeTypes = [7]TransformType{
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_1,
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_2,
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_3,
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_4,
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_5,
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_6,
	TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_7,
}

type EncrTransformId uint16

const (
	ENCR_NULL         EncrTransformId = 11
	ENCR_AES_CBC      EncrTransformId = 12
	AEAD_AES_GCM_8    EncrTransformId = 18
	AEAD_AES_GCM_12   EncrTransformId = 19
	AEAD_AES_GCM_16   EncrTransformId = 20
	ENCR_CAMELLIA_CBC EncrTransformId = 23
)

type PrfTransformId uint16

const (
	PRF_HMAC_SHA1     PrfTransformId = 2
	PRF_HMAC_SHA2_256 PrfTransformId = 5
	PRF_HMAC_SHA2_384 PrfTransformId = 6
	PRF_HMAC_SHA2_512 PrfTransformId = 7
)

type AuthTransformId uint16

const (
	AUTH_NONE              AuthTransformId = 0
	AUTH_HMAC_SHA1_96      AuthTransformId = 2
	AUTH_HMAC_SHA2_256_128 AuthTransformId = 12
	AUTH_HMAC_SHA2_384_192 AuthTransformId = 13
	AUTH_HMAC_SHA2_512_256 AuthTransformId = 14
)

// KeMethodId identifies a key-exchange method: either a classical DH group
// number (RFC 7296/3526/5903) or a KEM codepoint. The private-use range
// (>=1024) names the post-quantum hybrid methods this repo supports.
type KeMethodId uint16

const (
	KE_NONE    KeMethodId = 0
	MODP_2048  KeMethodId = 14
	MODP_3072  KeMethodId = 15
	MODP_4096  KeMethodId = 16
	ECP_256    KeMethodId = 19
	ECP_384    KeMethodId = 20
	ECP_521    KeMethodId = 21
	CURVE25519 KeMethodId = 31

	MLKEM768 KeMethodId = 1024
)

type EsnTransformId uint16

const (
	ESN_NONE EsnTransformId = 0
	ESN      EsnTransformId = 1
)

// Transform is one (type, id) pair inside a proposal; KeyLength carries the
// optional ATTRIBUTE_TYPE_KEY_LENGTH attribute for variable-length ciphers.
type Transform struct {
	Type        TransformType
	TransformId uint16
	KeyLength   uint16
}

func (t Transform) IsEqual(o Transform) bool {
	return t.Type == o.Type && t.TransformId == o.TransformId && t.KeyLength == o.KeyLength
}

// Transforms is the set of transforms a configuration wants for one
// protocol, keyed by type: at most one transform per type is offered
// locally (alternatives are expressed as separate proposals, not here).
type Transforms map[TransformType]Transform

func (ts Transforms) AsList() []Transform {
	out := make([]Transform, 0, len(ts))
	for _, t := range ts {
		out = append(out, t)
	}
	return out
}

var (
	ESP_AES_CBC_SHA2_256 = Transforms{
		TRANSFORM_TYPE_ENCR:  {Type: TRANSFORM_TYPE_ENCR, TransformId: uint16(ENCR_AES_CBC), KeyLength: 256},
		TRANSFORM_TYPE_INTEG: {Type: TRANSFORM_TYPE_INTEG, TransformId: uint16(AUTH_HMAC_SHA2_256_128)},
		TRANSFORM_TYPE_ESN:   {Type: TRANSFORM_TYPE_ESN, TransformId: uint16(ESN_NONE)},
	}
	ESP_AES_GCM_16 = Transforms{
		TRANSFORM_TYPE_ENCR: {Type: TRANSFORM_TYPE_ENCR, TransformId: uint16(AEAD_AES_GCM_16), KeyLength: 256},
		TRANSFORM_TYPE_ESN:  {Type: TRANSFORM_TYPE_ESN, TransformId: uint16(ESN_NONE)},
	}
	ESP_CAMELLIA_CBC_SHA2_256 = Transforms{
		TRANSFORM_TYPE_ENCR:  {Type: TRANSFORM_TYPE_ENCR, TransformId: uint16(ENCR_CAMELLIA_CBC), KeyLength: 256},
		TRANSFORM_TYPE_INTEG: {Type: TRANSFORM_TYPE_INTEG, TransformId: uint16(AUTH_HMAC_SHA2_256_128)},
		TRANSFORM_TYPE_ESN:   {Type: TRANSFORM_TYPE_ESN, TransformId: uint16(ESN_NONE)},
	}
)
