// Package child implements the CHILD_SA creation task: the protocol driver
// that negotiates, installs, and tears down IPsec child security
// associations atop an IKE_SA. It is organized the way the teacher
// organizes its session/task code — plain structs holding mutable state,
// advanced by explicit build/process calls rather than a coroutine.
package child

import (
	"github.com/go-kit/log"
	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

// LabelMode selects how a security label is chosen (spec.md §4.5).
type LabelMode uint8

const (
	LabelModeSimple LabelMode = iota
	LabelModeSelinux
)

// ChildlessPolicy controls whether CHILD_SA negotiation may be deferred out
// of IKE_AUTH into its own CREATE_CHILD_SA exchange (spec.md §4.7).
type ChildlessPolicy uint8

const (
	ChildlessNever ChildlessPolicy = iota
	ChildlessAllow
	ChildlessPrefer
	ChildlessForce
)

// Config is the immutable child configuration a task negotiates against;
// it is populated by an external loader and only ever read here (spec.md
// §10.3 / teacher's config.go).
type Config struct {
	Name string

	Proposals protocol.Proposals
	Mode      platform.Mode

	IpCompEnabled   bool
	PreferredKe     protocol.KeMethodId
	InactivityTimeout int // seconds; 0 disables

	ReqidStatic uint32

	LabelMode LabelMode
	Label     []byte

	OptProxyMode bool

	LocalTs, RemoteTs protocol.Selectors

	PreferLocalProposals bool
	AllowPrivateAlgorithms bool

	Childless ChildlessPolicy
}

// SelectLabel returns the label to use for a negotiation given the two
// hints carried by TSi/TSr (spec.md §4.5): in SELinux mode, both hints must
// be non-empty and equal; in simple mode, the configured label always wins.
func (c *Config) SelectLabel(tsiHint, tsrHint []byte) (label []byte, ok bool) {
	if c.LabelMode == LabelModeSelinux {
		if len(tsiHint) == 0 || len(tsrHint) == 0 {
			return nil, false
		}
		if !bytesEqual(tsiHint, tsrHint) {
			return nil, false
		}
		return tsiHint, true
	}
	return c.Label, true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Logger is the structured logger every task component takes, in the
// teacher's go-kit/log style (spec.md §10.1).
type Logger = log.Logger
