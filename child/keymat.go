package child

import (
	"github.com/vpnsetup/strongswan/crypto"
)

// Keymat holds the four keying chunks derived for one CHILD_SA
// installation: encr_i/integ_i belong to the initiator-to-responder
// direction, encr_r/integ_r to the responder-to-initiator direction
// (spec.md §4.4).
type Keymat struct {
	EncrI, IntegI []byte
	EncrR, IntegR []byte
}

// Zeroize overwrites every derived chunk; the task must call this after
// install regardless of outcome (spec.md §4.4 step 7).
func (k *Keymat) Zeroize() {
	for _, b := range [][]byte{k.EncrI, k.IntegI, k.EncrR, k.IntegR} {
		for i := range b {
			b[i] = 0
		}
	}
}

// DeriveKeymat computes KEYMAT = prf+(SK_d, Ni | Nr | concat(g^ir...)) and
// splits it into the four chunks sized by the selected ESP suite. The
// SK_d/prf pair is the IKE_SA's, supplied by the caller (out of scope to
// derive here); sharedSecrets is the key-exchange plan's ordered list
// (spec.md §4.3's closing note: concatenated in slot order, extending the
// teacher's single-DH IpsecSaCreate to the multi-KE hybrid case).
func DeriveKeymat(prf *crypto.Prf, skD, nonceI, nonceR []byte, sharedSecrets [][]byte, suite *crypto.EspCipherSuite) *Keymat {
	data := append(append([]byte{}, nonceI...), nonceR...)
	for _, s := range sharedSecrets {
		data = append(data, s...)
	}
	encrLen, integLen := suite.KeyLengths()
	total := 2*encrLen + 2*integLen
	keymat := prf.Plus(skD, data, total)

	k := &Keymat{}
	off := 0
	k.EncrI = keymat[off : off+encrLen]
	off += encrLen
	k.IntegI = keymat[off : off+integLen]
	off += integLen
	k.EncrR = keymat[off : off+encrLen]
	off += encrLen
	k.IntegR = keymat[off : off+integLen]
	return k
}
