package provider

import (
	"context"
	"time"

	"github.com/ckoons/argo-sub001/rterrors"
)

// MockProvider returns a configured response or cycles through a
// configured sequence, recording the last prompt and a query count
// (spec §4.C). Grounded directly on ai/providers/mock/provider.go's
// Client: same "configured responses, call count, last prompt" shape.
type MockProvider struct {
	instance

	Responses     []string
	ResponseIndex int
	Err           error
	CallCount     int
	LastPrompt    string
}

// NewMockProvider creates a MockProvider that cycles through responses.
func NewMockProvider(model string, responses ...string) *MockProvider {
	if len(responses) == 0 {
		responses = []string{"mock response"}
	}
	return &MockProvider{instance: instance{model: model}, Responses: responses}
}

func (p *MockProvider) Init() error {
	if p.scratch == nil {
		p.scratch = make([]byte, 0, scratchHeadroom)
	}
	return nil
}

func (p *MockProvider) Connect(ctx context.Context) error { return nil }

func (p *MockProvider) SupportsStreaming() bool { return true }

// SetError configures Query/Stream to fail with err on every call until
// SetError(nil) clears it.
func (p *MockProvider) SetError(err error) { p.Err = err }

func (p *MockProvider) Query(ctx context.Context, prompt string, cb Callback, userdata any) error {
	p.CallCount++
	p.LastPrompt = augmentPrompt(p.digest, prompt)

	if p.Err != nil {
		return p.Err
	}
	if len(p.Responses) == 0 {
		return rterrors.New("provider.MockProvider.Query", rterrors.KindConfused, "no responses configured")
	}

	response := p.Responses[p.ResponseIndex%len(p.Responses)]
	p.ResponseIndex++

	p.commitScratch(response)
	cb(Response{Success: true, Content: response, ModelUsed: p.model, Timestamp: time.Now()})
	return nil
}

func (p *MockProvider) Stream(ctx context.Context, prompt string, cb Callback, userdata any) error {
	return p.Query(ctx, prompt, cb, userdata)
}

func (p *MockProvider) Cleanup() error {
	if p.cleanedUp {
		return nil
	}
	p.scratch = nil
	p.cleanedUp = true
	return nil
}
