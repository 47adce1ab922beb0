package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckoons/argo-sub001/rterrors"
)

type fakeTransport struct {
	delivered []string
	fail      bool
}

func (f *fakeTransport) Deliver(from, to, payload string) error {
	if f.fail {
		return assertError
	}
	f.delivered = append(f.delivered, from+"->"+to)
	return nil
}

var assertError = rterrors.New("fake.Deliver", rterrors.KindSocket, "boom")

func TestAddFindRemoveCI(t *testing.T) {
	r := New(DefaultConfig(), &fakeTransport{})
	entry, err := r.AddCI("alpha", "builder", "model-x")
	require.NoError(t, err)
	assert.Equal(t, 9000, entry.Port)

	found, ok := r.FindByName("alpha")
	require.True(t, ok)
	assert.Equal(t, entry, found)

	require.NoError(t, r.RemoveCI("alpha"))
	_, ok = r.FindByName("alpha")
	assert.False(t, ok)
}

func TestAddCIRejectsNameOverMaxLength(t *testing.T) {
	r := New(DefaultConfig(), nil)
	longName := ""
	for len(longName) <= 31 {
		longName += "x"
	}
	_, err := r.AddCI(longName, "builder", "model-x")
	require.Error(t, err)
	assert.Equal(t, rterrors.KindTooLarge, rterrors.KindOf(err))

	okName := longName[:31]
	_, err = r.AddCI(okName, "builder", "model-x")
	require.NoError(t, err)
}

func TestPortAllocationInjective(t *testing.T) {
	r := New(DefaultConfig(), nil)
	seen := map[int]bool{}
	for i := 0; i < 10; i++ {
		entry, err := r.AddCI(string(rune('a'+i)), "coordinator", "m")
		require.NoError(t, err)
		assert.False(t, seen[entry.Port], "port reused: %d", entry.Port)
		seen[entry.Port] = true
	}
	_, err := r.AddCI("overflow", "coordinator", "m")
	require.Error(t, err)
	assert.Equal(t, rterrors.KindQueueFull, rterrors.KindOf(err))
}

func TestCapacityCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 1
	r := New(cfg, nil)
	_, err := r.AddCI("a", "builder", "m")
	require.NoError(t, err)
	_, err = r.AddCI("b", "builder", "m")
	require.Error(t, err)
	assert.Equal(t, rterrors.KindQueueFull, rterrors.KindOf(err))
}

func TestSendMessageRequiresReadyOrBusy(t *testing.T) {
	tr := &fakeTransport{}
	r := New(DefaultConfig(), tr)
	_, err := r.AddCI("alpha", "builder", "m")
	require.NoError(t, err)
	_, err = r.AddCI("beta", "builder", "m")
	require.NoError(t, err)

	err = r.SendMessage("alpha", "beta", "hi")
	require.Error(t, err)
	assert.Equal(t, rterrors.KindDisconnected, rterrors.KindOf(err))

	require.NoError(t, r.UpdateStatus("beta", StatusReady))
	require.NoError(t, r.SendMessage("alpha", "beta", "hi"))
	assert.Equal(t, []string{"alpha->beta"}, tr.delivered)

	alpha, _ := r.FindByName("alpha")
	beta, _ := r.FindByName("beta")
	assert.Equal(t, 1, alpha.Counters.MessagesSent)
	assert.Equal(t, 1, beta.Counters.MessagesReceived)
}

func TestBroadcastSucceedsIfAnyDelivered(t *testing.T) {
	tr := &fakeTransport{}
	r := New(DefaultConfig(), tr)
	_, _ = r.AddCI("alpha", "builder", "m")
	_, _ = r.AddCI("beta", "builder", "m")
	_, _ = r.AddCI("gamma", "coordinator", "m")
	require.NoError(t, r.UpdateStatus("beta", StatusReady))
	require.NoError(t, r.UpdateStatus("gamma", StatusReady))

	err := r.Broadcast("alpha", "builder", "go")
	require.NoError(t, err)
	assert.Contains(t, tr.delivered, "alpha->beta")
	assert.NotContains(t, tr.delivered, "alpha->gamma")
}

func TestCheckHealthCountsStale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StaleAfter = 0
	r := New(cfg, nil)
	_, _ = r.AddCI("alpha", "builder", "m")
	assert.Equal(t, 1, r.CheckHealth())
}
