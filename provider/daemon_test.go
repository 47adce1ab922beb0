package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDaemon(t *testing.T, handler http.HandlerFunc) *LocalDaemonProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	p := NewLocalDaemonProvider("test-model", port, DefaultHTTPTimeouts())
	p.host = "127.0.0.1"
	return p
}

func TestLocalDaemonProviderConnectProbesTCP(t *testing.T) {
	p := newTestDaemon(t, func(w http.ResponseWriter, r *http.Request) {})
	require.NoError(t, p.Init())
	require.NoError(t, p.Connect(context.Background()))
}

func TestLocalDaemonProviderConnectFailsWhenNothingListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	p := NewLocalDaemonProvider("m", port, HTTPTimeouts{Daemon: 200 * time.Millisecond})
	err = p.Connect(context.Background())
	require.Error(t, err)
}

func TestLocalDaemonProviderQueryNonStreaming(t *testing.T) {
	p := newTestDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"response":"hello","done":true}`)
	})
	require.NoError(t, p.Init())

	var got Response
	err := p.Query(context.Background(), "prompt", func(r Response) { got = r }, nil)
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, "hello", got.Content)
}

func TestLocalDaemonProviderStreamAccumulatesUntilDone(t *testing.T) {
	p := newTestDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		flusher, _ := w.(http.Flusher)
		fmt.Fprintln(w, `{"response":"hel","done":false}`)
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"response":"lo","done":false}`)
		if flusher != nil {
			flusher.Flush()
		}
		fmt.Fprintln(w, `{"response":"","done":true}`)
	})
	require.NoError(t, p.Init())

	var got Response
	err := p.Stream(context.Background(), "prompt", func(r Response) { got = r }, nil)
	require.NoError(t, err)
	assert.True(t, got.Success)
	assert.Equal(t, "hello", got.Content)
}

func TestLocalDaemonProviderStreamFailsWithoutDoneSentinel(t *testing.T) {
	p := newTestDaemon(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"response":"partial","done":false}`)
	})
	require.NoError(t, p.Init())

	err := p.Stream(context.Background(), "prompt", func(r Response) { t.Fatal("callback must not run") }, nil)
	require.Error(t, err)
}

func TestLocalDaemonProviderCleanupIdempotent(t *testing.T) {
	p := NewLocalDaemonProvider("m", 0, DefaultHTTPTimeouts())
	require.NoError(t, p.Cleanup())
	require.NoError(t, p.Cleanup())
}
