package child

import "github.com/vpnsetup/strongswan/protocol"

// NotifyAction is the per-notify dispatch outcome spec.md §4.6 tabulates.
type NotifyAction uint8

const (
	ActionIgnore NotifyAction = iota
	ActionModeTransport
	ActionModeBeet
	ActionRecordIpComp
	ActionDisableTfc
	ActionRecordLinkToken
	ActionRetryKe
	ActionAbandonChild
	ActionDelayedRetry
	ActionAbandonUnknownError
)

// ChildErrorNotifies is the set of notify types that abandon the CHILD
// while keeping the IKE_SA (spec.md §4.1 initiator process step 2, §4.6).
var ChildErrorNotifies = map[protocol.NotificationType]bool{
	protocol.NO_PROPOSAL_CHOSEN:       true,
	protocol.SINGLE_PAIR_REQUIRED:     true,
	protocol.NO_ADDITIONAL_SAS:        true,
	protocol.INTERNAL_ADDRESS_FAILURE: true,
	protocol.FAILED_CP_REQUIRED:       true,
	protocol.TS_UNACCEPTABLE:          true,
	protocol.INVALID_SELECTORS:        true,
}

// Dispatch classifies a single received notify per the spec.md §4.6 table.
// Known-peer (strongSwan extension support) gates USE_BEET_MODE acceptance.
func Dispatch(n protocol.NotificationType, peerIsKnownExtended bool) NotifyAction {
	switch n {
	case protocol.USE_TRANSPORT_MODE:
		return ActionModeTransport
	case protocol.USE_BEET_MODE:
		if peerIsKnownExtended {
			return ActionModeBeet
		}
		return ActionIgnore
	case protocol.IPCOMP_SUPPORTED:
		return ActionRecordIpComp
	case protocol.ESP_TFC_PADDING_NOT_SUPPORTED:
		return ActionDisableTfc
	case protocol.ADDITIONAL_KEY_EXCHANGE:
		return ActionRecordLinkToken
	case protocol.INVALID_KE_PAYLOAD:
		return ActionRetryKe
	case protocol.TEMPORARY_FAILURE:
		return ActionDelayedRetry
	default:
		if ChildErrorNotifies[n] {
			return ActionAbandonChild
		}
		if n.IsError() {
			return ActionAbandonUnknownError
		}
		return ActionIgnore
	}
}
