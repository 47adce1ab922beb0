package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckoons/argo-sub001/rterrors"
)

func TestSubprocessProviderConnectResolvesBinary(t *testing.T) {
	p := NewSubprocessProvider("m", "cat")
	require.NoError(t, p.Init())
	require.NoError(t, p.Connect(context.Background()))
}

func TestSubprocessProviderConnectFailsForMissingBinary(t *testing.T) {
	p := NewSubprocessProvider("m", "no-such-binary-argo-test")
	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, rterrors.KindNoProvider, rterrors.KindOf(err))
}

func TestSubprocessProviderQueryEchoesStdin(t *testing.T) {
	p := NewSubprocessProvider("m", "cat")
	require.NoError(t, p.Init())
	require.NoError(t, p.Connect(context.Background()))

	var got Response
	err := p.Query(context.Background(), "hello from argo", func(r Response) { got = r }, nil)
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Contains(t, got.Content, "hello from argo")
}

func TestSubprocessProviderQueryFailsOnNonZeroExit(t *testing.T) {
	p := NewSubprocessProvider("m", "false")
	require.NoError(t, p.Init())

	err := p.Query(context.Background(), "prompt", func(r Response) { t.Fatal("callback must not run on failure") }, nil)
	require.Error(t, err)
	assert.Equal(t, rterrors.KindConfused, rterrors.KindOf(err))
}

func TestSubprocessProviderStreamNotImplemented(t *testing.T) {
	p := NewSubprocessProvider("m", "cat")
	err := p.Stream(context.Background(), "prompt", func(r Response) {}, nil)
	require.Error(t, err)
	assert.Equal(t, rterrors.KindNotImplemented, rterrors.KindOf(err))
}

func TestSubprocessProviderCleanupIdempotent(t *testing.T) {
	p := NewSubprocessProvider("m", "cat")
	require.NoError(t, p.Cleanup())
	require.NoError(t, p.Cleanup())
}
