package protocol

// Hand-written Stringer methods for the transform ID sets this repo
// actually negotiates — a trimmed, curated subset of the full IANA
// registries, so generating these with stringer would pull in far more
// than the CHILD_SA path uses.

func (id EncrTransformId) String() string {
	switch id {
	case ENCR_NULL:
		return "ENCR_NULL"
	case ENCR_AES_CBC:
		return "ENCR_AES_CBC"
	case ENCR_CAMELLIA_CBC:
		return "ENCR_CAMELLIA_CBC"
	case AEAD_AES_GCM_8:
		return "AEAD_AES_GCM_8"
	case AEAD_AES_GCM_12:
		return "AEAD_AES_GCM_12"
	case AEAD_AES_GCM_16:
		return "AEAD_AES_GCM_16"
	default:
		return "ENCR(" + itoa(uint16(id)) + ")"
	}
}

func (id PrfTransformId) String() string {
	switch id {
	case PRF_HMAC_SHA1:
		return "PRF_HMAC_SHA1"
	case PRF_HMAC_SHA2_256:
		return "PRF_HMAC_SHA2_256"
	case PRF_HMAC_SHA2_384:
		return "PRF_HMAC_SHA2_384"
	case PRF_HMAC_SHA2_512:
		return "PRF_HMAC_SHA2_512"
	default:
		return "PRF(" + itoa(uint16(id)) + ")"
	}
}

func (id AuthTransformId) String() string {
	switch id {
	case AUTH_NONE:
		return "AUTH_NONE"
	case AUTH_HMAC_SHA1_96:
		return "AUTH_HMAC_SHA1_96"
	case AUTH_HMAC_SHA2_256_128:
		return "AUTH_HMAC_SHA2_256_128"
	case AUTH_HMAC_SHA2_384_192:
		return "AUTH_HMAC_SHA2_384_192"
	case AUTH_HMAC_SHA2_512_256:
		return "AUTH_HMAC_SHA2_512_256"
	default:
		return "AUTH(" + itoa(uint16(id)) + ")"
	}
}

func (id KeMethodId) String() string {
	switch id {
	case KE_NONE:
		return "KE_NONE"
	case MODP_2048:
		return "MODP_2048"
	case MODP_3072:
		return "MODP_3072"
	case MODP_4096:
		return "MODP_4096"
	case ECP_256:
		return "ECP_256"
	case ECP_384:
		return "ECP_384"
	case ECP_521:
		return "ECP_521"
	case CURVE25519:
		return "CURVE25519"
	case MLKEM768:
		return "MLKEM768"
	default:
		return "KE(" + itoa(uint16(id)) + ")"
	}
}

func (p ProtocolId) String() string {
	switch p {
	case PROTO_IKE:
		return "IKE"
	case PROTO_AH:
		return "AH"
	case PROTO_ESP:
		return "ESP"
	default:
		return "PROTO(" + itoa(uint16(p)) + ")"
	}
}

func (t TransformType) String() string {
	switch t {
	case TRANSFORM_TYPE_ENCR:
		return "ENCR"
	case TRANSFORM_TYPE_PRF:
		return "PRF"
	case TRANSFORM_TYPE_INTEG:
		return "INTEG"
	case TRANSFORM_TYPE_KEY_EXCHANGE_METHOD:
		return "KEY_EXCHANGE_METHOD"
	case TRANSFORM_TYPE_ESN:
		return "ESN"
	case TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_1, TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_2,
		TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_3, TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_4,
		TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_5, TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_6,
		TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_7:
		return "ADDITIONAL_KEY_EXCHANGE_" + itoa(uint16(t-TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_1+1))
	default:
		return "TRANSFORM_TYPE(" + itoa(uint16(t)) + ")"
	}
}
