package child

import (
	"math/rand"
	"time"
)

// IsDuplicate implements the non-rekey CREATE_CHILD_SA duplicate check
// (spec.md §4.7): a CHILD_SA is a duplicate iff it is INSTALLED, carries the
// same child config name, has equal marks, equal interface IDs, equal
// labels, and either both reqids are zero or the static reqids match. The
// child config is compared by name only; its other fields are not compared.
// Callers run this over the set of already-installed CHILD_SAs before
// building a first-round CREATE_CHILD_SA; a match makes the task return
// SUCCESS with an undefined exchange type instead of emitting a wire
// message.
func IsDuplicate(existing *SA, cfg *Config, markIn, markOut, ifIn, ifOut uint32, label []byte, reqid uint32) bool {
	if existing == nil || existing.State != StateInstalled {
		return false
	}
	if existing.Name != cfg.Name {
		return false
	}
	if existing.MarkIn != markIn || existing.MarkOut != markOut {
		return false
	}
	if existing.InterfaceIn != ifIn || existing.InterfaceOut != ifOut {
		return false
	}
	if !bytesEqual(existing.Label, label) {
		return false
	}
	if existing.Reqid == 0 && reqid == 0 {
		return true
	}
	return existing.Reqid == reqid
}

// InactivityTimer is what a successful install schedules when the config
// defines an inactivity timeout (spec.md §4.4 step 7). Like RetryPlan, this
// package only computes it; the caller owns actually arming the timer and
// tearing the CHILD_SA down when it fires.
type InactivityTimer struct {
	ChildName string
	Timeout   time.Duration
}

// RetryPlan is what a TEMPORARY_FAILURE response schedules: a new
// child_create task cloned from the failed one's reqid/marks/if-ids/label,
// delayed by RETRY_INTERVAL minus a random jitter (spec.md §4.8). The
// caller owns actually scheduling it; this only computes the delay and
// carries the fields to clone.
type RetryPlan struct {
	ConfigName              string
	Reqid                   uint32
	MarkIn, MarkOut         uint32
	IfIn, IfOut             uint32
	Label                   []byte
	Delay                   time.Duration
}

// ScheduleRetry builds the RetryPlan for a TEMPORARY_FAILURE response,
// unless the task is a rekey (which reschedules itself instead) or has
// been aborted. retryInterval/retryJitter are deployment policy, not
// protocol (spec.md §9 open question (a)); both are seconds.
func (t *Task) ScheduleRetry(retryInterval, retryJitter time.Duration) *RetryPlan {
	if t.isRekey || t.aborted {
		return nil
	}
	jitter := time.Duration(0)
	if retryJitter > 0 {
		jitter = time.Duration(rand.Int63n(int64(retryJitter)))
	}
	delay := retryInterval - jitter
	if delay < 0 {
		delay = 0
	}
	return &RetryPlan{
		ConfigName: t.cfg.Name,
		Reqid:      t.reqid,
		MarkIn:     t.markIn, MarkOut: t.markOut,
		IfIn: t.ifIn, IfOut: t.ifOut,
		Label: append([]byte{}, t.label...),
		Delay: delay,
	}
}
