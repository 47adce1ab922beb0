package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckoons/argo-sub001/memory"
	"github.com/ckoons/argo-sub001/rterrors"
)

func TestMockProviderCyclesResponses(t *testing.T) {
	p := NewMockProvider("m", "one", "two")
	require.NoError(t, p.Init())

	var got []string
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Query(context.Background(), "prompt", func(r Response) { got = append(got, r.Content) }, nil))
	}
	assert.Equal(t, []string{"one", "two", "one"}, got)
	assert.Equal(t, 3, p.CallCount)
	assert.Equal(t, "prompt", p.LastPrompt)
}

func TestMockProviderSetError(t *testing.T) {
	p := NewMockProvider("m", "one")
	wantErr := rterrors.New("test", rterrors.KindConfused, "boom")
	p.SetError(wantErr)

	err := p.Query(context.Background(), "prompt", func(r Response) { t.Fatal("callback must not run on error") }, nil)
	require.Error(t, err)
}

func TestMockProviderAugmentsPromptFromBoundMemory(t *testing.T) {
	d := memory.New("sess", "alpha", 10000)
	require.NoError(t, d.AddBreadcrumb("wrote the parser"))
	require.NoError(t, d.SetSunriseBrief("resuming work on the tokenizer"))

	p := NewMockProvider("m", "reply")
	p.BindMemory(d)

	require.NoError(t, p.Query(context.Background(), "what's next?", func(r Response) {}, nil))
	assert.Contains(t, p.LastPrompt, "Progress Breadcrumbs")
	assert.Contains(t, p.LastPrompt, "wrote the parser")
	assert.Contains(t, p.LastPrompt, "## Current Task")
	assert.Contains(t, p.LastPrompt, "what's next?")
}

func TestMockProviderCleanupIdempotent(t *testing.T) {
	p := NewMockProvider("m")
	require.NoError(t, p.Cleanup())
	require.NoError(t, p.Cleanup())
}
