// Package eventbus is the fire-and-forget notification sink a CHILD_CREATE
// task reports to: narrow results, alerts, derived keys (for debug capture),
// and child up/down transitions (spec.md §5 "the event bus receives
// fire-and-forget notifications").
package eventbus

import "github.com/vpnsetup/strongswan/protocol"

// AlertKind enumerates the task-raised alerts spec.md names explicitly.
type AlertKind uint8

const (
	AlertInstallChildSaFailed AlertKind = iota
	AlertInstallChildPolicyFailed
	AlertKeyExchangeInvalid
	AlertTsMismatch
)

func (a AlertKind) String() string {
	switch a {
	case AlertInstallChildSaFailed:
		return "ALERT_INSTALL_CHILD_SA_FAILED"
	case AlertInstallChildPolicyFailed:
		return "ALERT_INSTALL_CHILD_POLICY_FAILED"
	case AlertKeyExchangeInvalid:
		return "ALERT_KE_INVALID"
	case AlertTsMismatch:
		return "ALERT_TS_MISMATCH"
	default:
		return "ALERT_UNKNOWN"
	}
}

// NarrowResult reports the outcome of traffic-selector narrowing for a
// single negotiation, successful or not.
type NarrowResult struct {
	ChildName string
	Local     protocol.Selectors
	Remote    protocol.Selectors
	Ok        bool
}

// ChildKeys carries the four derived keying chunks for debug/test capture
// only; production sinks should not log these.
type ChildKeys struct {
	ChildName           string
	EncrI, IntegI        []byte
	EncrR, IntegR        []byte
}

// UpDown reports a CHILD_SA transitioning to installed or torn down.
type UpDown struct {
	ChildName string
	Up        bool
}

// Bus is the sink interface a task holds; it never blocks the protocol
// state machine on a slow subscriber.
type Bus interface {
	Narrow(NarrowResult)
	Alert(kind AlertKind, childName string, err error)
	ChildKeys(ChildKeys)
	ChildUpDown(UpDown)
}
