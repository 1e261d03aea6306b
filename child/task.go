package child

import (
	"bytes"
	"net"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/vpnsetup/strongswan/crypto"
	"github.com/vpnsetup/strongswan/eventbus"
	"github.com/vpnsetup/strongswan/platform"
	"github.com/vpnsetup/strongswan/protocol"
)

// defaultRetryInterval/defaultRetryJitter are the fallback TEMPORARY_FAILURE
// back-off constants when UseRetryPolicy is never called; RETRY_INTERVAL and
// RETRY_JITTER are deployment policy, not protocol (spec.md §9 open
// question (a)).
const (
	defaultRetryInterval = 30 * time.Second
	defaultRetryJitter   = 10 * time.Second
)

// Status is the outcome of one build or process round (spec.md §2).
type Status uint8

const (
	NeedMore Status = iota
	Success
	Failed
	DestroyMe
)

func (s Status) String() string {
	switch s {
	case NeedMore:
		return "NEED_MORE"
	case Success:
		return "SUCCESS"
	case Failed:
		return "FAILED"
	case DestroyMe:
		return "DESTROY_ME"
	default:
		return "UNKNOWN"
	}
}

// IkeSaView is the subset of IKE_SA state the task observes (spec.md §3
// "IKE_SA (external)"); the real IKE_SA is an external collaborator, this
// is the read-only slice a task is constructed with.
type IkeSaView struct {
	IsInitiator     bool
	LocalAddr       net.IP
	RemoteAddr      net.IP
	Nat             NatCondition
	DynamicLocalTs  protocol.Selectors
	DynamicRemoteTs protocol.Selectors
	VirtualIps      []net.IP
	PeerIsStrongswanExtended bool
	PeerSupportsChildless    bool
	InterfaceIn, InterfaceOut uint32
	Prf                      *crypto.Prf
	SkD                      []byte

	// ExistingChildren lists the IKE_SA's already-negotiated CHILD_SAs, used
	// by the duplicate check (spec.md §4.7) before a first-round
	// CREATE_CHILD_SA is built.
	ExistingChildren []*SA
}

// Task drives one CHILD_SA negotiation: an initiator instance is built with
// a Config up front; a responder instance starts with none and acquires one
// during its first process round (spec.md §4.1).
type Task struct {
	log log.Logger

	ike  IkeSaView
	kern platform.Kernel
	bus  eventbus.Bus

	cfg *Config
	sa  *SA

	isInitiator bool

	reqid               uint32
	markIn, markOut     uint32
	ifIn, ifOut         uint32
	label               []byte
	keMethod            protocol.KeMethodId
	keMethodForced      bool

	myNonce, otherNonce []byte

	plan *Plan

	retried   bool
	aborted   bool
	isRekey   bool

	linkToken       []byte
	linkTokenSeen   bool

	exchangeType protocol.IkeExchangeType

	offer *offer

	retryInterval, retryJitter time.Duration
	pendingRetry               *RetryPlan
	pendingInactivityTimer     *InactivityTimer
}

// NewInitiatorTask builds a task that will emit the proposal-offer message
// on its first build call.
func NewInitiatorTask(logger log.Logger, ike IkeSaView, kern platform.Kernel, bus eventbus.Bus, cfg *Config) *Task {
	return &Task{
		log: logger, ike: ike, kern: kern, bus: bus, cfg: cfg,
		isInitiator: true,
		markIn: 0, markOut: 0,
		retryInterval: defaultRetryInterval, retryJitter: defaultRetryJitter,
	}
}

// NewResponderTask builds a task with no configuration; SetConfig must run
// (via configuration selection) before the first build.
func NewResponderTask(logger log.Logger, ike IkeSaView, kern platform.Kernel, bus eventbus.Bus) *Task {
	return &Task{
		log: logger, ike: ike, kern: kern, bus: bus, isInitiator: false,
		retryInterval: defaultRetryInterval, retryJitter: defaultRetryJitter,
	}
}

// UseRetryPolicy overrides the TEMPORARY_FAILURE back-off constants; both
// are seconds-scale deployment policy (spec.md §9 open question (a)).
func (t *Task) UseRetryPolicy(interval, jitter time.Duration) {
	t.retryInterval, t.retryJitter = interval, jitter
}

// GetPendingRetry returns the retry plan queued by the last process round,
// nil if none. The caller (the collaborator owning the task's lifetime) is
// responsible for actually scheduling it.
func (t *Task) GetPendingRetry() *RetryPlan { return t.pendingRetry }

// GetPendingInactivityTimer returns the inactivity timer queued by a
// successful install, nil if the configuration defines none. The caller
// arms the timer and tears the CHILD_SA down when it fires.
func (t *Task) GetPendingInactivityTimer() *InactivityTimer { return t.pendingInactivityTimer }

// UseReqid reserves reqid r if non-zero, dropping any previous reservation.
// Kernel allocator failures are swallowed: the request is silently ignored
// (spec.md §4.1 operations table).
func (t *Task) UseReqid(r uint32) {
	if r == 0 {
		return
	}
	got, err := t.kern.RefReqid(r)
	if err != nil {
		level.Warn(t.log).Log("msg", "use_reqid: allocator rejected reqid, ignoring", "reqid", r, "err", err)
		return
	}
	if t.reqid != 0 {
		t.kern.ReleaseReqid(t.reqid)
	}
	t.reqid = got
}

func (t *Task) UseMarks(in, out uint32)   { t.markIn, t.markOut = in, out }
func (t *Task) UseIfIds(in, out uint32)   { t.ifIn, t.ifOut = in, out }

// UseLabel clones the label, replacing any prior one.
func (t *Task) UseLabel(l []byte) { t.label = append([]byte{}, l...) }

// UseKeMethod forces the primary key-exchange method; used for retry after
// INVALID_KE_PAYLOAD.
func (t *Task) UseKeMethod(m protocol.KeMethodId) {
	t.keMethod = m
	t.keMethodForced = true
}

// SetConfig installs the child configuration (responder path, after
// selection).
func (t *Task) SetConfig(c *Config) { t.cfg = c }

// GetLowerNonce returns the lexicographically smaller of (my_nonce,
// other_nonce) by byte prefix of length min(len_a, len_b); ties favor
// my_nonce (spec.md §4.1 operations table).
func (t *Task) GetLowerNonce() []byte {
	n := len(t.myNonce)
	if len(t.otherNonce) < n {
		n = len(t.otherNonce)
	}
	if bytes.Compare(t.otherNonce[:n], t.myNonce[:n]) < 0 {
		return t.otherNonce
	}
	return t.myNonce
}

// Abort sets the aborted flag; the next round emits a DELETE for any
// allocated SPIs, then terminates.
func (t *Task) Abort() { t.aborted = true }

// GetChild returns the CHILD_SA handle, nil if not yet constructed.
func (t *Task) GetChild() *SA { return t.sa }

// GetOtherSpi returns the peer SPI once negotiated, nil before then.
func (t *Task) GetOtherSpi() protocol.Spi {
	if t.sa == nil {
		return nil
	}
	return t.sa.OtherSpi
}
