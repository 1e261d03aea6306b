package child

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vpnsetup/strongswan/protocol"
)

func TestDispatchKnownNotifies(t *testing.T) {
	cases := []struct {
		name     string
		n        protocol.NotificationType
		extended bool
		want     NotifyAction
	}{
		{"transport mode", protocol.USE_TRANSPORT_MODE, false, ActionModeTransport},
		{"beet mode with extended peer", protocol.USE_BEET_MODE, true, ActionModeBeet},
		{"beet mode without extended peer is ignored", protocol.USE_BEET_MODE, false, ActionIgnore},
		{"ipcomp", protocol.IPCOMP_SUPPORTED, false, ActionRecordIpComp},
		{"tfc disabled", protocol.ESP_TFC_PADDING_NOT_SUPPORTED, false, ActionDisableTfc},
		{"link token", protocol.ADDITIONAL_KEY_EXCHANGE, false, ActionRecordLinkToken},
		{"invalid ke", protocol.INVALID_KE_PAYLOAD, false, ActionRetryKe},
		{"temporary failure", protocol.TEMPORARY_FAILURE, false, ActionDelayedRetry},
		{"no proposal chosen abandons child", protocol.NO_PROPOSAL_CHOSEN, false, ActionAbandonChild},
		{"ts unacceptable abandons child", protocol.TS_UNACCEPTABLE, false, ActionAbandonChild},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Dispatch(c.n, c.extended))
		})
	}
}

func TestDispatchUnknownErrorAbandonsUnknown(t *testing.T) {
	// Any notify in the error range (below 16384) that isn't in the known
	// tables is an unrecognized error code; the task abandons the CHILD_SA
	// rather than silently ignoring it.
	unknown := protocol.NotificationType(9999)
	assert.True(t, unknown.IsError(), "fixture notify must look like an error code")
	assert.Equal(t, ActionAbandonUnknownError, Dispatch(unknown, false))
}

func TestDispatchIgnoresUnknownInformational(t *testing.T) {
	unknown := protocol.NotificationType(40960)
	assert.False(t, unknown.IsError())
	assert.Equal(t, ActionIgnore, Dispatch(unknown, false))
}
