package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckoons/argo-sub001/registry"
)

func TestLifecycleTransitionOrder(t *testing.T) {
	// Scenario 4 from spec §8 literally: create "alpha" (builder, model m);
	// start; assign_task("t1"); complete_task(success=true);
	// stop(graceful=true). Expected history (most-recent first):
	// shutdown<-shutdown_requested, ready<-task_complete, busy<-task_assigned,
	// starting<-initializing, offline<-created. current_status ends shutdown.
	reg := registry.New(registry.DefaultConfig(), nil)
	_, err := reg.AddCI("alpha", "builder", "m")
	require.NoError(t, err)

	sup := NewSupervisor(reg, DefaultConfig())
	entry, err := sup.CreateCI("alpha")
	require.NoError(t, err)
	require.Equal(t, registry.StatusOffline, entry.CurrentStatus)

	require.NoError(t, sup.StartCI("alpha"))
	require.NoError(t, sup.AssignTask("alpha", "t1"))
	require.NoError(t, sup.CompleteTask("alpha", true))
	require.NoError(t, sup.StopCI("alpha", true))

	history := entry.History()
	require.Len(t, history, 5)
	assert.Equal(t, registry.StatusShutdown, history[0].To)
	assert.Equal(t, EventShutdownRequested, history[0].Event)
	assert.Equal(t, registry.StatusReady, history[1].To)
	assert.Equal(t, EventTaskComplete, history[1].Event)
	assert.Equal(t, registry.StatusBusy, history[2].To)
	assert.Equal(t, EventTaskAssigned, history[2].Event)
	assert.Equal(t, registry.StatusStarting, history[3].To)
	assert.Equal(t, EventInitializing, history[3].Event)
	assert.Equal(t, registry.StatusOffline, history[4].To)
	assert.Equal(t, EventCreated, history[4].Event)

	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i].To, history[i-1].From, "history[%d].To must equal history[%d].From", i, i-1)
	}

	assert.Equal(t, registry.StatusShutdown, entry.CurrentStatus)

	found, _ := reg.FindByName("alpha")
	assert.Equal(t, registry.StatusShutdown, found.Status)
}

func TestHeartbeatEscalation(t *testing.T) {
	// Scenario 5 from spec §8: 3 consecutive missed heartbeats escalate to error.
	reg := registry.New(registry.DefaultConfig(), nil)
	_, err := reg.AddCI("alpha", "builder", "m")
	require.NoError(t, err)

	cfg := Config{HeartbeatTimeout: time.Second, MaxMissed: 3}
	sup := NewSupervisor(reg, cfg)
	entry, err := sup.CreateCI("alpha")
	require.NoError(t, err)
	require.NoError(t, sup.StartCI("alpha"))
	require.NoError(t, sup.MarkReady("alpha"))

	now := time.Now()
	last := map[string]time.Time{"alpha": now.Add(-10 * time.Second)}

	sup.CheckHeartbeats(now, last)
	assert.Equal(t, 1, entry.MissedHeartbeats)
	assert.Equal(t, registry.StatusReady, entry.CurrentStatus)

	sup.CheckHeartbeats(now, last)
	assert.Equal(t, 2, entry.MissedHeartbeats)
	assert.Equal(t, registry.StatusReady, entry.CurrentStatus)

	sup.CheckHeartbeats(now, last)
	assert.Equal(t, 3, entry.MissedHeartbeats)
	assert.Equal(t, registry.StatusError, entry.CurrentStatus)
	assert.Equal(t, 1, entry.ErrorCount)
}

func TestAssignTaskRejectsOfflineCI(t *testing.T) {
	reg := registry.New(registry.DefaultConfig(), nil)
	_, _ = reg.AddCI("alpha", "builder", "m")
	sup := NewSupervisor(reg, DefaultConfig())
	_, err := sup.CreateCI("alpha")
	require.NoError(t, err)

	err = sup.AssignTask("alpha", "task")
	require.Error(t, err)
}

func TestStopCIGracefulVsImmediate(t *testing.T) {
	reg := registry.New(registry.DefaultConfig(), nil)
	_, _ = reg.AddCI("alpha", "builder", "m")
	sup := NewSupervisor(reg, DefaultConfig())
	entry, _ := sup.CreateCI("alpha")
	require.NoError(t, sup.StartCI("alpha"))

	require.NoError(t, sup.StopCI("alpha", true))
	assert.Equal(t, registry.StatusShutdown, entry.CurrentStatus)

	require.NoError(t, sup.StopCI("alpha", false))
	assert.Equal(t, registry.StatusOffline, entry.CurrentStatus)
}
