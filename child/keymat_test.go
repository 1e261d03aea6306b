package child

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpnsetup/strongswan/crypto"
	"github.com/vpnsetup/strongswan/protocol"
)

func testEspSuite(t *testing.T) *crypto.EspCipherSuite {
	trs := protocol.Transforms{
		protocol.TRANSFORM_TYPE_ENCR:  {Type: protocol.TRANSFORM_TYPE_ENCR, TransformId: uint16(protocol.ENCR_AES_CBC), KeyLength: 256},
		protocol.TRANSFORM_TYPE_INTEG: {Type: protocol.TRANSFORM_TYPE_INTEG, TransformId: uint16(protocol.AUTH_HMAC_SHA1_96)},
	}
	suite, err := crypto.NewEspCipherSuite(trs)
	require.NoError(t, err)
	return suite
}

func TestDeriveKeymatSizesChunksBySuite(t *testing.T) {
	prf, err := crypto.NewPrf(protocol.PRF_HMAC_SHA2_256)
	require.NoError(t, err)
	suite := testEspSuite(t)
	skD := make([]byte, 32)
	ni, nr := []byte("nonce-i"), []byte("nonce-r")
	secrets := [][]byte{[]byte("shared-secret-1")}

	k := DeriveKeymat(prf, skD, ni, nr, secrets, suite)

	encrLen, integLen := suite.KeyLengths()
	assert.Len(t, k.EncrI, encrLen)
	assert.Len(t, k.IntegI, integLen)
	assert.Len(t, k.EncrR, encrLen)
	assert.Len(t, k.IntegR, integLen)
}

// Nonce ordering invariant: KEYMAT depends on Ni|Nr concatenated in that
// order regardless of which side derives it, so swapping the nonce
// arguments must change the output.
func TestDeriveKeymatNonceOrderIsInvariant(t *testing.T) {
	prf, err := crypto.NewPrf(protocol.PRF_HMAC_SHA2_256)
	require.NoError(t, err)
	suite := testEspSuite(t)
	skD := make([]byte, 32)
	secrets := [][]byte{[]byte("shared-secret-1")}

	asInitiator := DeriveKeymat(prf, skD, []byte("nonce-a"), []byte("nonce-b"), secrets, suite)
	asResponder := DeriveKeymat(prf, skD, []byte("nonce-a"), []byte("nonce-b"), secrets, suite)

	assert.Equal(t, asInitiator.EncrI, asResponder.EncrI)
	assert.Equal(t, asInitiator.EncrR, asResponder.EncrR)

	swapped := DeriveKeymat(prf, skD, []byte("nonce-b"), []byte("nonce-a"), secrets, suite)
	assert.NotEqual(t, asInitiator.EncrI, swapped.EncrI)
}

// Multiple key-exchange slots concatenate their shared secrets in plan
// order; changing that order changes the derived keymat.
func TestDeriveKeymatMultipleSharedSecretsOrderMatters(t *testing.T) {
	prf, err := crypto.NewPrf(protocol.PRF_HMAC_SHA2_256)
	require.NoError(t, err)
	suite := testEspSuite(t)
	skD := make([]byte, 32)
	ni, nr := []byte("nonce-i"), []byte("nonce-r")

	a := DeriveKeymat(prf, skD, ni, nr, [][]byte{[]byte("primary"), []byte("additional")}, suite)
	b := DeriveKeymat(prf, skD, ni, nr, [][]byte{[]byte("additional"), []byte("primary")}, suite)

	assert.NotEqual(t, a.EncrI, b.EncrI)
}

func TestKeymatZeroize(t *testing.T) {
	k := &Keymat{
		EncrI:  []byte{1, 2, 3},
		IntegI: []byte{4, 5, 6},
		EncrR:  []byte{7, 8, 9},
		IntegR: []byte{10, 11, 12},
	}
	k.Zeroize()
	assert.Equal(t, []byte{0, 0, 0}, k.EncrI)
	assert.Equal(t, []byte{0, 0, 0}, k.IntegI)
	assert.Equal(t, []byte{0, 0, 0}, k.EncrR)
	assert.Equal(t, []byte{0, 0, 0}, k.IntegR)
}
