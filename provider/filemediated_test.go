package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckoons/argo-sub001/rterrors"
)

func TestFileMediatedProviderQueryWaitsForOperatorResponse(t *testing.T) {
	dir := t.TempDir()
	p := NewFileMediatedProvider("m", dir, 5*time.Second)
	require.NoError(t, p.Init())

	go func() {
		deadline := time.Now().Add(4 * time.Second)
		for time.Now().Before(deadline) {
			entries, err := os.ReadDir(dir)
			if err == nil {
				for _, e := range entries {
					if strings.HasSuffix(e.Name(), ".prompt") {
						responseFile := filepath.Join(dir, strings.TrimSuffix(e.Name(), ".prompt")+".response")
						_ = os.WriteFile(responseFile, []byte("operator reply"), 0o644)
						return
					}
				}
			}
			time.Sleep(50 * time.Millisecond)
		}
	}()

	var got Response
	err := p.Query(context.Background(), "need a human", func(r Response) { got = r }, nil)
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, "operator reply", got.Content)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "prompt/response files should be cleaned up")
}

func TestFileMediatedProviderQueryTimesOutWithoutResponse(t *testing.T) {
	dir := t.TempDir()
	p := NewFileMediatedProvider("m", dir, 200*time.Millisecond)
	p.pollInterval = 50 * time.Millisecond
	require.NoError(t, p.Init())

	err := p.Query(context.Background(), "nobody is watching", func(r Response) { t.Fatal("callback must not run on timeout") }, nil)
	require.Error(t, err)
	assert.Equal(t, rterrors.KindTimeout, rterrors.KindOf(err))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "prompt file should be cleaned up even on timeout")
}

func TestFileMediatedProviderCleanupIdempotent(t *testing.T) {
	p := NewFileMediatedProvider("m", t.TempDir(), time.Second)
	require.NoError(t, p.Cleanup())
	require.NoError(t, p.Cleanup())
}
