package provider

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ckoons/argo-sub001/rterrors"
)

// defaultDaemonPort is the reference backend's port (spec §4.C: "default
// 11434 for the reference backend" — Ollama).
const defaultDaemonPort = 11434

// ndjsonLine is one line of an Ollama-style NDJSON stream.
type ndjsonLine struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// LocalDaemonProvider talks to a model daemon listening on
// 127.0.0.1:<port> (spec §4.C). Grounded on gomind's Ollama-via-OpenAI-
// compatible handling (ai/provider.go's WithProviderAlias "ollama" case)
// for the shape of a local, unauthenticated HTTP backend; the NDJSON
// streaming sentinel protocol itself has no gomind analog and is built
// directly from spec §4.C.
type LocalDaemonProvider struct {
	instance

	host       string
	port       int
	httpClient *http.Client
	timeout    time.Duration
	poll       time.Duration
}

// NewLocalDaemonProvider creates a provider targeting 127.0.0.1:port
// (port 0 selects the reference default).
func NewLocalDaemonProvider(model string, port int, timeouts HTTPTimeouts) *LocalDaemonProvider {
	if port == 0 {
		port = defaultDaemonPort
	}
	return &LocalDaemonProvider{
		instance:   instance{model: model},
		host:       "127.0.0.1",
		port:       port,
		httpClient: &http.Client{Timeout: timeouts.Daemon},
		timeout:    timeouts.Daemon,
		poll:       timeouts.Poll,
	}
}

func (p *LocalDaemonProvider) Init() error {
	if p.scratch == nil {
		p.scratch = make([]byte, 0, scratchHeadroom)
	}
	return nil
}

// Connect opens and immediately closes a TCP probe connection, matching
// spec §4.C's "connect opens a TCP connection" check without holding it
// open (both query paths disconnect after completion and don't reuse a
// connection).
func (p *LocalDaemonProvider) Connect(ctx context.Context) error {
	d := net.Dialer{Timeout: p.timeout}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", p.host, p.port))
	if err != nil {
		return rterrors.Wrap("provider.LocalDaemonProvider.Connect", rterrors.KindSocket, err)
	}
	return conn.Close()
}

func (p *LocalDaemonProvider) SupportsStreaming() bool { return true }

func (p *LocalDaemonProvider) url(path string) string {
	return fmt.Sprintf("http://%s:%d%s", p.host, p.port, path)
}

// Query issues a non-streaming POST and reads the full body, per spec
// §4.C ("reads until a sentinel — a final '}'"); a non-streaming daemon
// response is itself one JSON object, so the standard decoder suffices.
func (p *LocalDaemonProvider) Query(ctx context.Context, prompt string, cb Callback, userdata any) error {
	finalPrompt := augmentPrompt(p.digest, prompt)
	body, err := json.Marshal(map[string]any{"model": p.model, "prompt": finalPrompt, "stream": false})
	if err != nil {
		return rterrors.Wrap("provider.LocalDaemonProvider.Query", rterrors.KindInvalidValue, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url("/api/generate"), strings.NewReader(string(body)))
	if err != nil {
		return rterrors.Wrap("provider.LocalDaemonProvider.Query", rterrors.KindInvalidValue, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return rterrors.Wrap("provider.LocalDaemonProvider.Query", rterrors.KindSocket, err)
	}
	defer resp.Body.Close()

	var line ndjsonLine
	if err := json.NewDecoder(resp.Body).Decode(&line); err != nil {
		return rterrors.Wrap("provider.LocalDaemonProvider.Query", rterrors.KindFormat, err)
	}

	p.commitScratch(line.Response)
	cb(Response{Success: true, Content: line.Response, ModelUsed: p.model, Timestamp: time.Now()})
	return nil
}

// Stream issues a streaming POST, accumulating each NDJSON object's
// "response" field until one with "done":true arrives (spec §4.C), then
// invokes cb exactly once with the concatenated content, honoring the
// variant contract's "callback invoked exactly once" rule.
func (p *LocalDaemonProvider) Stream(ctx context.Context, prompt string, cb Callback, userdata any) error {
	finalPrompt := augmentPrompt(p.digest, prompt)
	body, err := json.Marshal(map[string]any{"model": p.model, "prompt": finalPrompt, "stream": true})
	if err != nil {
		return rterrors.Wrap("provider.LocalDaemonProvider.Stream", rterrors.KindInvalidValue, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url("/api/generate"), strings.NewReader(string(body)))
	if err != nil {
		return rterrors.Wrap("provider.LocalDaemonProvider.Stream", rterrors.KindInvalidValue, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return rterrors.Wrap("provider.LocalDaemonProvider.Stream", rterrors.KindSocket, err)
	}
	defer resp.Body.Close()

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var obj ndjsonLine
		if err := json.Unmarshal(line, &obj); err != nil {
			return rterrors.Wrap("provider.LocalDaemonProvider.Stream", rterrors.KindFormat, err)
		}
		full.WriteString(obj.Response)
		if obj.Done {
			p.commitScratch(full.String())
			cb(Response{Success: true, Content: full.String(), ModelUsed: p.model, Timestamp: time.Now()})
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return rterrors.Wrap("provider.LocalDaemonProvider.Stream", rterrors.KindIO, err)
	}
	return rterrors.New("provider.LocalDaemonProvider.Stream", rterrors.KindConfused, "stream ended without done sentinel")
}

func (p *LocalDaemonProvider) Cleanup() error {
	if p.cleanedUp {
		return nil
	}
	p.scratch = nil
	p.cleanedUp = true
	return nil
}
