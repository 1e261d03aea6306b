package child

import "github.com/vpnsetup/strongswan/protocol"

// ErrorPolicy classifies a received notify (or a locally-detected failure)
// into one of the four handling policies spec.md §7 lays out.
type ErrorPolicy uint8

const (
	// PolicyLocalTransient: no SPI yet allocated, nonce generation failed,
	// KE method unsupported locally. The message is simply not sent; the
	// caller retries through other means.
	PolicyLocalTransient ErrorPolicy = iota
	// PolicyNegotiationMismatch: no common proposal, empty TS
	// intersection, label mismatch, KE method mismatch. Responder answers
	// in-place with a child-scoped notify; initiator abandons the CHILD.
	PolicyNegotiationMismatch
	// PolicyPeerRetry: INVALID_KE_PAYLOAD (once) or TEMPORARY_FAILURE.
	// Never fatal; handled inline or via a scheduled follow-up task.
	PolicyPeerRetry
	// PolicyFatalToIke: childless FORCE against a peer that doesn't
	// support it. The parent IKE_SA is destroyed.
	PolicyFatalToIke
)

// ClassifyNotify maps a received notify type to its error policy.
func ClassifyNotify(n protocol.NotificationType) ErrorPolicy {
	switch n {
	case protocol.INVALID_KE_PAYLOAD, protocol.TEMPORARY_FAILURE:
		return PolicyPeerRetry
	case protocol.NO_PROPOSAL_CHOSEN, protocol.TS_UNACCEPTABLE, protocol.INVALID_SELECTORS,
		protocol.SINGLE_PAIR_REQUIRED, protocol.NO_ADDITIONAL_SAS,
		protocol.INTERNAL_ADDRESS_FAILURE, protocol.FAILED_CP_REQUIRED:
		return PolicyNegotiationMismatch
	default:
		return PolicyNegotiationMismatch
	}
}
