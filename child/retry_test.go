package child

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateMatchesInstalledSa(t *testing.T) {
	cfg := &Config{Name: "net0"}
	existing := &SA{Name: "net0", State: StateInstalled, MarkIn: 1, MarkOut: 2, InterfaceIn: 3, InterfaceOut: 4, Label: []byte("app")}

	assert.True(t, IsDuplicate(existing, cfg, 1, 2, 3, 4, []byte("app"), 0))
}

func TestIsDuplicateRejectsUninstalled(t *testing.T) {
	cfg := &Config{Name: "net0"}
	existing := &SA{Name: "net0", State: StateInstalling}
	assert.False(t, IsDuplicate(existing, cfg, 0, 0, 0, 0, nil, 0))
}

func TestIsDuplicateRejectsDifferentLabel(t *testing.T) {
	cfg := &Config{Name: "net0"}
	existing := &SA{Name: "net0", State: StateInstalled, Label: []byte("app-a")}
	assert.False(t, IsDuplicate(existing, cfg, 0, 0, 0, 0, []byte("app-b"), 0))
}

func TestIsDuplicateRequiresMatchingReqidWhenBothNonzero(t *testing.T) {
	cfg := &Config{Name: "net0"}
	existing := &SA{Name: "net0", State: StateInstalled, Reqid: 5}
	assert.False(t, IsDuplicate(existing, cfg, 0, 0, 0, 0, nil, 7))
	assert.True(t, IsDuplicate(existing, cfg, 0, 0, 0, 0, nil, 5))
}

func TestScheduleRetrySkipsRekeyAndAborted(t *testing.T) {
	task := &Task{cfg: &Config{Name: "net0"}, isRekey: true}
	assert.Nil(t, task.ScheduleRetry(30*time.Second, 10*time.Second))

	task2 := &Task{cfg: &Config{Name: "net0"}, aborted: true}
	assert.Nil(t, task2.ScheduleRetry(30*time.Second, 10*time.Second))
}

func TestScheduleRetryDelayWithinBounds(t *testing.T) {
	task := &Task{cfg: &Config{Name: "net0"}, reqid: 3, markIn: 1, markOut: 2}
	plan := task.ScheduleRetry(30*time.Second, 10*time.Second)
	if assert.NotNil(t, plan) {
		assert.Equal(t, "net0", plan.ConfigName)
		assert.Equal(t, uint32(3), plan.Reqid)
		assert.GreaterOrEqual(t, plan.Delay, 20*time.Second)
		assert.LessOrEqual(t, plan.Delay, 30*time.Second)
	}
}

func TestScheduleRetryZeroJitter(t *testing.T) {
	task := &Task{cfg: &Config{Name: "net0"}}
	plan := task.ScheduleRetry(15*time.Second, 0)
	if assert.NotNil(t, plan) {
		assert.Equal(t, 15*time.Second, plan.Delay)
	}
}
