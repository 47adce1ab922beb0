package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/ckoons/argo-sub001/rterrors"
)

// RemoteProvider is the generic Remote HTTP Provider variant (spec
// §4.C): one adapter replaces the N per-vendor clients
// (ai/providers/{anthropic,openai,gemini}), parameterized entirely by
// Config.
type RemoteProvider struct {
	instance

	cfg     *Config
	adapter *httpJSONAdapter
}

// NewRemoteProvider is generic_create(config, model_override) from spec
// §4.C: copies the model string (falling back to the config default) and
// defers scratch-buffer initialization to Init.
func NewRemoteProvider(cfg *Config, modelOverride string, timeouts HTTPTimeouts) *RemoteProvider {
	model := cfg.DefaultModel
	if modelOverride != "" {
		model = modelOverride
	}
	return &RemoteProvider{
		instance: instance{model: model},
		cfg:      cfg,
		adapter:  newHTTPJSONAdapter(timeouts.HTTP),
	}
}

// Init allocates the response scratch buffer. Safe to call more than
// once.
func (p *RemoteProvider) Init() error {
	if p.scratch == nil {
		p.scratch = make([]byte, 0, scratchHeadroom)
	}
	return nil
}

// Connect makes no network call for remote HTTP providers; it only fails
// with a no-provider error when the configured credential is unavailable.
func (p *RemoteProvider) Connect(ctx context.Context) error {
	if !p.cfg.Available() {
		return rterrors.New("provider.RemoteProvider.Connect", rterrors.KindNoProvider, "credential missing or too short").WithID(p.cfg.Name)
	}
	return nil
}

func (p *RemoteProvider) SupportsStreaming() bool { return p.cfg.SupportsStreaming }

// Query implements api_query (spec §4.A): augments the prompt with bound
// memory context, builds and posts the request body, extracts the
// response string, commits it to the scratch buffer, and invokes cb
// exactly once.
func (p *RemoteProvider) Query(ctx context.Context, prompt string, cb Callback, userdata any) error {
	finalPrompt := augmentPrompt(p.digest, prompt)

	body, err := p.cfg.BuildBody(p.model, finalPrompt)
	if err != nil {
		return rterrors.Wrap("provider.RemoteProvider.Query", rterrors.KindInvalidValue, err)
	}

	url := p.cfg.Endpoint
	if p.cfg.URLIncludesModel {
		url = fmt.Sprintf("%s/%s:generateContent", url, p.model)
	}

	res, err := p.adapter.postJSON(ctx, url, body, p.cfg.Auth, p.cfg.ExtraHeaders)
	if err != nil {
		return rterrors.Wrap("provider.RemoteProvider.Query", rterrors.KindSocket, err)
	}
	if kind := kindForStatus(res.Status); kind != "" {
		return rterrors.New("provider.RemoteProvider.Query", kind, fmt.Sprintf("status %d", res.Status)).WithID(p.cfg.Name)
	}

	content, err := extractStringByPath(res.Body, p.cfg.ResponsePath)
	if err != nil {
		return err
	}

	p.commitScratch(content)
	cb(Response{Success: true, Content: content, ModelUsed: p.model, Timestamp: time.Now()})
	return nil
}

// Stream delegates to Query and invokes cb once with the full content,
// per spec §4.A's "streaming implemented by delegating to api_query."
func (p *RemoteProvider) Stream(ctx context.Context, prompt string, cb Callback, userdata any) error {
	return p.Query(ctx, prompt, cb, userdata)
}

// Cleanup releases the scratch buffer; safe to call more than once.
func (p *RemoteProvider) Cleanup() error {
	if p.cleanedUp {
		return nil
	}
	p.scratch = nil
	p.cleanedUp = true
	return nil
}
