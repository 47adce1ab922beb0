package shutdown

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDestroyable struct {
	destroyed int32
}

func (f *fakeDestroyable) Destroy() {
	atomic.AddInt32(&f.destroyed, 1)
}

func TestRegisterUnregisterIdempotent(t *testing.T) {
	tr := newTracker(nil)
	obj := &fakeDestroyable{}

	require.NoError(t, tr.RegisterWorkflow(obj))
	require.NoError(t, tr.RegisterWorkflow(obj)) // idempotent: same object twice
	assert.Equal(t, 1, tr.Snapshot().Workflows)

	tr.UnregisterWorkflow(obj)
	assert.Equal(t, 0, tr.Snapshot().Workflows)

	// unregistering an unknown object is a no-op, not an error
	tr.UnregisterWorkflow(&fakeDestroyable{})
}

func TestRegisterRefusesPastCapacity(t *testing.T) {
	tr := newTracker(nil)
	for i := 0; i < maxSupervisors; i++ {
		require.NoError(t, tr.RegisterSupervisor(&fakeDestroyable{}))
	}
	err := tr.RegisterSupervisor(&fakeDestroyable{})
	require.Error(t, err)
}

func TestCleanupAllDestroysEveryTrackedObject(t *testing.T) {
	tr := newTracker(nil)
	wf := &fakeDestroyable{}
	sup := &fakeDestroyable{}
	reg := &fakeDestroyable{}
	shared := &fakeDestroyable{}

	require.NoError(t, tr.RegisterWorkflow(wf))
	require.NoError(t, tr.RegisterSupervisor(sup))
	require.NoError(t, tr.RegisterRegistry(reg))
	require.NoError(t, tr.RegisterShared(shared))

	tr.CleanupAll()

	assert.EqualValues(t, 1, wf.destroyed)
	assert.EqualValues(t, 1, sup.destroyed)
	assert.EqualValues(t, 1, reg.destroyed)
	assert.EqualValues(t, 1, shared.destroyed)

	assert.Equal(t, Counts{}, tr.Snapshot())
}

func TestCleanupAllIsSafeToCallTwice(t *testing.T) {
	tr := newTracker(nil)
	obj := &fakeDestroyable{}
	require.NoError(t, tr.RegisterWorkflow(obj))

	tr.CleanupAll()
	tr.CleanupAll() // second call: nothing tracked, must not panic

	assert.EqualValues(t, 1, obj.destroyed)
}

func TestGetReturnsProcessWideSingleton(t *testing.T) {
	a := Get()
	b := Get()
	assert.Same(t, a, b)
}

func TestInstallSignalHandlersStopCancelsWithoutCleanup(t *testing.T) {
	tr := newTracker(nil)
	obj := &fakeDestroyable{}
	require.NoError(t, tr.RegisterWorkflow(obj))

	stop := tr.InstallSignalHandlers()
	stop()

	time.Sleep(10 * time.Millisecond)
	assert.EqualValues(t, 0, obj.destroyed, "stop must disarm without running cleanup")
}
