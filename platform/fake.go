package platform

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/vpnsetup/strongswan/protocol"
)

// FakeKernel is an in-memory Kernel used by tests: it allocates real random
// SPIs/CPIs and records installs without touching the host network stack.
type FakeKernel struct {
	mu sync.Mutex

	nextReqid uint32
	refs      map[uint32]uint32

	Installed  []SaParams
	Registered []SaParams
	Activated  []protocol.Spi
	Policies   []Policy

	Features Features

	FailInstall  bool
	FailPolicies bool
}

func NewFakeKernel() *FakeKernel {
	return &FakeKernel{
		refs:     make(map[uint32]uint32),
		Features: Features{EspV3Tfc: true, IpCompDeflate: true},
	}
}

func (k *FakeKernel) AllocSpi(protocol.ProtocolId) (protocol.Spi, error) {
	spi := make(protocol.Spi, 4)
	if _, err := rand.Read(spi); err != nil {
		return nil, err
	}
	return spi, nil
}

func (k *FakeKernel) AllocCpi() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return uint16(b[0])<<8 | uint16(b[1]), nil
}

func (k *FakeKernel) RefReqid(reqid uint32) (uint32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if reqid == 0 {
		k.nextReqid++
		reqid = k.nextReqid
	}
	k.refs[reqid]++
	return reqid, nil
}

func (k *FakeKernel) ReleaseReqid(reqid uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.refs[reqid] > 0 {
		k.refs[reqid]--
	}
}

func (k *FakeKernel) Install(params SaParams) error {
	if k.FailInstall {
		return fmt.Errorf("fake kernel: forced install failure")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Installed = append(k.Installed, params)
	return nil
}

func (k *FakeKernel) RegisterOutbound(params SaParams) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Registered = append(k.Registered, params)
	return nil
}

func (k *FakeKernel) ActivateOutbound(spi protocol.Spi) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Activated = append(k.Activated, spi)
	return nil
}

func (k *FakeKernel) InstallPolicies(policies []Policy) error {
	if k.FailPolicies {
		return fmt.Errorf("fake kernel: forced policy install failure")
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.Policies = append(k.Policies, policies...)
	return nil
}

func (k *FakeKernel) GetFeatures() Features { return k.Features }
