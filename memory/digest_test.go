package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckoons/argo-sub001/rterrors"
)

func TestDigestCapEnforcement(t *testing.T) {
	// Scenario 3 from spec §8: context_limit=200 -> max_allowed=100.
	d := New("sess-1", "alpha", 200)
	require.Equal(t, 100, d.MaxAllowed())

	_, err := d.AddItem(ItemFact, make([]byte, 60), "alpha")
	require.NoError(t, err)

	_, err = d.AddItem(ItemFact, make([]byte, 50), "alpha")
	require.Error(t, err)
	assert.Equal(t, rterrors.KindSize, rterrors.KindOf(err))

	assert.NoError(t, d.Validate())
	assert.Equal(t, 60, d.Size())
}

func TestDigestItemCap(t *testing.T) {
	d := New("sess-2", "alpha", 1<<20)
	for i := 0; i < maxItems; i++ {
		_, err := d.AddItem(ItemBreadcrumb, []byte("x"), "alpha")
		require.NoError(t, err)
	}
	_, err := d.AddItem(ItemBreadcrumb, []byte("x"), "alpha")
	require.Error(t, err)
	assert.Equal(t, rterrors.KindQueueFull, rterrors.KindOf(err))
	assert.Equal(t, maxItems, d.ItemCount())
}

func TestDigestBreadcrumbCap(t *testing.T) {
	d := New("sess-3", "alpha", 1<<20)
	for i := 0; i < maxBreadcrumbs; i++ {
		require.NoError(t, d.AddBreadcrumb("step"))
	}
	err := d.AddBreadcrumb("overflow")
	require.Error(t, err)
	assert.Equal(t, rterrors.KindQueueFull, rterrors.KindOf(err))
	assert.Len(t, d.Breadcrumbs(), maxBreadcrumbs)
}

func TestDigestJSONRoundTrip(t *testing.T) {
	d := New("sess-4", "beta", 1000)
	_, err := d.AddItem(ItemDecision, []byte("chose approach A"), "beta")
	require.NoError(t, err)
	require.NoError(t, d.AddBreadcrumb("wrote tests"))

	j := d.ToJSON()
	restored := FromJSON(j, 1000)
	assert.Equal(t, j, restored.ToJSON())
}

func TestRelevanceUpdateRejectsOutOfRange(t *testing.T) {
	var r Relevance
	require.Error(t, r.Update(1.5))
	require.Error(t, r.Update(-0.1))
	require.NoError(t, r.Update(0.5))
	assert.Equal(t, 0.5, r.Score)
}

func TestDigestDecay(t *testing.T) {
	d := New("sess-5", "gamma", 1<<20)
	item, err := d.AddItem(ItemSuccess, []byte("shipped"), "gamma")
	require.NoError(t, err)
	require.Equal(t, 1.0, item.Relevance.Score)

	d.Decay(0.5)
	got, err := d.SelectItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got.Relevance.Score)
	assert.Equal(t, 1, got.Relevance.AccessCount)
}
