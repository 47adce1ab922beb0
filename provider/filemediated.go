package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ckoons/argo-sub001/rterrors"
)

// FileMediatedProvider hands a prompt to a human operator via a pair of
// files rather than a live process (spec §4.C). Per DESIGN.md's Open
// Question #3, only this real file-polling variant is implemented; no
// "simulated" variant is built. Grounded on the same acquire/release-on-
// every-exit-path idiom as SubprocessProvider.
type FileMediatedProvider struct {
	instance

	dir          string
	pollInterval time.Duration
	timeout      time.Duration
}

// NewFileMediatedProvider creates a provider that stages prompt/response
// files under dir.
func NewFileMediatedProvider(model, dir string, timeout time.Duration) *FileMediatedProvider {
	return &FileMediatedProvider{
		instance:     instance{model: model},
		dir:          dir,
		pollInterval: time.Second,
		timeout:      timeout,
	}
}

func (p *FileMediatedProvider) Init() error {
	if p.scratch == nil {
		p.scratch = make([]byte, 0, scratchHeadroom)
	}
	return os.MkdirAll(p.dir, 0o755)
}

func (p *FileMediatedProvider) Connect(ctx context.Context) error { return nil }

func (p *FileMediatedProvider) SupportsStreaming() bool { return false }

func (p *FileMediatedProvider) sessionFiles() (promptFile, responseFile string) {
	id := uuid.NewString()
	return filepath.Join(p.dir, id+".prompt"), filepath.Join(p.dir, id+".response")
}

// Query writes the prompt file, prints an operator banner, polls once per
// second for the response file, and removes both files on completion or
// timeout (spec §4.C).
func (p *FileMediatedProvider) Query(ctx context.Context, prompt string, cb Callback, userdata any) error {
	finalPrompt := augmentPrompt(p.digest, prompt)
	promptFile, responseFile := p.sessionFiles()

	if err := os.WriteFile(promptFile, []byte(finalPrompt), 0o644); err != nil {
		return rterrors.Wrap("provider.FileMediatedProvider.Query", rterrors.KindFile, err)
	}
	defer func() {
		_ = os.Remove(promptFile)
		_ = os.Remove(responseFile)
	}()

	fmt.Printf("argo: waiting for a human response — write it to %s\n", responseFile)

	deadline := time.Now().Add(p.timeout)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return rterrors.Wrap("provider.FileMediatedProvider.Query", rterrors.KindTimeout, ctx.Err())
		case <-ticker.C:
			if time.Now().After(deadline) {
				return rterrors.New("provider.FileMediatedProvider.Query", rterrors.KindTimeout, "no response file within timeout").WithID(responseFile)
			}
			data, err := os.ReadFile(responseFile)
			if err != nil {
				continue
			}
			content := string(data)
			p.commitScratch(content)
			cb(Response{Success: true, Content: content, ModelUsed: p.model, Timestamp: time.Now()})
			return nil
		}
	}
}

func (p *FileMediatedProvider) Stream(ctx context.Context, prompt string, cb Callback, userdata any) error {
	return p.Query(ctx, prompt, cb, userdata)
}

func (p *FileMediatedProvider) Cleanup() error {
	if p.cleanedUp {
		return nil
	}
	p.scratch = nil
	p.cleanedUp = true
	return nil
}
