package child

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpnsetup/strongswan/protocol"
)

func proposalWithTransforms(types ...protocol.TransformType) *protocol.Proposal {
	p := &protocol.Proposal{Transforms: protocol.Transforms{}}
	for _, typ := range types {
		p.Transforms[typ] = protocol.Transform{Type: typ, TransformId: uint16(protocol.MODP_2048)}
	}
	return p
}

func TestBuildPlanNoKeIsEmpty(t *testing.T) {
	p := proposalWithTransforms(protocol.TRANSFORM_TYPE_ENCR)
	plan := BuildPlan(p)
	assert.True(t, plan.IsEmpty())
}

func TestBuildPlanPrimaryOnly(t *testing.T) {
	p := proposalWithTransforms(protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD)
	plan := BuildPlan(p)
	require.Len(t, plan.Slots, 1)
	assert.Equal(t, protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD, plan.Slots[0].TransformType)
}

func TestBuildPlanDensePacking(t *testing.T) {
	p := proposalWithTransforms(
		protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_1,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_2,
	)
	plan := BuildPlan(p)
	require.Len(t, plan.Slots, 3)
	assert.Equal(t, protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_1, plan.Slots[1].TransformType)
	assert.Equal(t, protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_2, plan.Slots[2].TransformType)
}

// A gap in the additional-exchange sequence (slot 2 present, slot 1
// missing) stops the scan at the gap: only the primary slot is built
// (spec.md §4.3 "gaps are not allowed").
func TestBuildPlanStopsAtGap(t *testing.T) {
	p := proposalWithTransforms(
		protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_2,
	)
	plan := BuildPlan(p)
	require.Len(t, plan.Slots, 1)
	assert.Equal(t, protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD, plan.Slots[0].TransformType)
}

func TestBuildPlanMaxLength(t *testing.T) {
	p := proposalWithTransforms(
		protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_1,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_2,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_3,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_4,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_5,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_6,
		protocol.TRANSFORM_TYPE_ADDITIONAL_KEY_EXCHANGE_7,
	)
	plan := BuildPlan(p)
	assert.Len(t, plan.Slots, MaxKeyExchanges)
}

func TestNextPendingAndCompleteSlot(t *testing.T) {
	p := proposalWithTransforms(protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD)
	plan := BuildPlan(p)
	plan.Slots[0].Method = protocol.MODP_2048
	require.NoError(t, plan.StartSlot(0, true, nil))

	peerPlan := BuildPlan(p)
	peerPlan.Slots[0].Method = protocol.MODP_2048
	require.NoError(t, peerPlan.StartSlot(0, false, nil))

	assert.Equal(t, 0, plan.NextPending())
	require.NoError(t, plan.CompleteSlot(0, peerPlan.Slots[0].Session.PublicValue()))
	assert.Equal(t, -1, plan.NextPending())
	assert.True(t, plan.Slots[0].Done)
	assert.NotEmpty(t, plan.Slots[0].SharedSecret)
}

func TestCompleteSlotWithoutStartFails(t *testing.T) {
	p := proposalWithTransforms(protocol.TRANSFORM_TYPE_KEY_EXCHANGE_METHOD)
	plan := BuildPlan(p)
	err := plan.CompleteSlot(0, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestSharedSecretsOrdering(t *testing.T) {
	plan := &Plan{Slots: []PlanSlot{
		{SharedSecret: []byte("primary")},
		{SharedSecret: []byte("additional-1")},
	}}
	secrets := plan.SharedSecrets()
	require.Len(t, secrets, 2)
	assert.Equal(t, []byte("primary"), secrets[0])
	assert.Equal(t, []byte("additional-1"), secrets[1])
}
