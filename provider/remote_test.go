package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckoons/argo-sub001/rterrors"
)

func buildBody(model, prompt string) ([]byte, error) {
	return json.Marshal(map[string]any{"model": model, "prompt": prompt, "max_tokens": 4096})
}

func TestRemoteProviderHappyPath(t *testing.T) {
	// Scenario 1 from spec §8.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"content":[{"text":"OK"}]}`))
	}))
	defer srv.Close()

	cfg := NewConfig("test-vendor", srv.URL,
		WithAuth(AuthBearerHeader, "", "a-real-long-credential"),
		WithResponsePath("content", "text"),
		WithBodyBuilder(buildBody),
		WithDefaultModel("test-model"))

	p := NewRemoteProvider(cfg, "", DefaultHTTPTimeouts())
	require.NoError(t, p.Init())
	require.NoError(t, p.Connect(context.Background()))

	var got Response
	err := p.Query(context.Background(), "Reply with just 'OK' and nothing else.", func(r Response) { got = r }, nil)
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, "OK", got.Content)
	assert.Equal(t, "test-model", got.ModelUsed)
}

func TestRemoteProviderRateLimitSurfaces(t *testing.T) {
	// Scenario 2 from spec §8: 429 surfaces as an error; per DESIGN.md's
	// pinned decision, the callback is not invoked on this path.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate"}`))
	}))
	defer srv.Close()

	cfg := NewConfig("test-vendor", srv.URL,
		WithAuth(AuthBearerHeader, "", "a-real-long-credential"),
		WithResponsePath("content", "text"),
		WithBodyBuilder(buildBody))

	p := NewRemoteProvider(cfg, "test-model", DefaultHTTPTimeouts())
	require.NoError(t, p.Init())

	called := false
	err := p.Query(context.Background(), "prompt", func(r Response) { called = true }, nil)
	require.Error(t, err)
	assert.Equal(t, rterrors.KindHTTPRateLimit, rterrors.KindOf(err))
	assert.False(t, called)
}

func TestRemoteProviderConnectRequiresCredential(t *testing.T) {
	cfg := NewConfig("test-vendor", "http://example.invalid",
		WithAuth(AuthBearerHeader, "", "short"))
	p := NewRemoteProvider(cfg, "m", DefaultHTTPTimeouts())
	err := p.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, rterrors.KindNoProvider, rterrors.KindOf(err))
}

func TestRemoteProviderCleanupIdempotent(t *testing.T) {
	cfg := NewConfig("test-vendor", "http://example.invalid", WithBodyBuilder(buildBody))
	p := NewRemoteProvider(cfg, "m", DefaultHTTPTimeouts())
	require.NoError(t, p.Init())
	require.NoError(t, p.Cleanup())
	require.NoError(t, p.Cleanup())
}
