package provider

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/ckoons/argo-sub001/rterrors"
)

// SubprocessProvider forks a CLI binary per query, piping the augmented
// prompt on stdin and reading stdout to EOF (spec §4.C). No gomind analog
// shells out to a CLI AI backend; grounded on the corpus's general
// resource-handling idiom (acquire at top of function, release on every
// exit path) used throughout core/component.go's lifecycle methods.
type SubprocessProvider struct {
	instance

	binary string
	args   []string
}

// NewSubprocessProvider targets binary (resolved via PATH at Connect
// time) invoked with args on every query.
func NewSubprocessProvider(model, binary string, args ...string) *SubprocessProvider {
	return &SubprocessProvider{instance: instance{model: model}, binary: binary, args: args}
}

func (p *SubprocessProvider) Init() error {
	if p.scratch == nil {
		p.scratch = make([]byte, 0, scratchHeadroom)
	}
	return nil
}

// Connect verifies the CLI binary resolves on PATH (spec §4.C).
func (p *SubprocessProvider) Connect(ctx context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return rterrors.Wrap("provider.SubprocessProvider.Connect", rterrors.KindNoProvider, err).WithID(p.binary)
	}
	return nil
}

func (p *SubprocessProvider) SupportsStreaming() bool { return false }

// Query forks the child, writes the augmented prompt to stdin, closes
// stdin to signal EOF, reads stdout to EOF, waits for the child, and
// fails with a confused error on a non-zero exit (spec §4.C).
func (p *SubprocessProvider) Query(ctx context.Context, prompt string, cb Callback, userdata any) error {
	finalPrompt := augmentPrompt(p.digest, prompt)

	cmd := exec.CommandContext(ctx, p.binary, p.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return rterrors.Wrap("provider.SubprocessProvider.Query", rterrors.KindProcess, err)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return rterrors.Wrap("provider.SubprocessProvider.Query", rterrors.KindProcess, err)
	}

	if _, err := stdin.Write([]byte(finalPrompt)); err != nil {
		_ = stdin.Close()
		_ = cmd.Process.Kill()
		return rterrors.Wrap("provider.SubprocessProvider.Query", rterrors.KindIO, err)
	}
	if err := stdin.Close(); err != nil {
		_ = cmd.Process.Kill()
		return rterrors.Wrap("provider.SubprocessProvider.Query", rterrors.KindIO, err)
	}

	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return rterrors.New("provider.SubprocessProvider.Query", rterrors.KindConfused, strings.TrimSpace(stderr.String())).WithID(p.binary)
		}
		return rterrors.Wrap("provider.SubprocessProvider.Query", rterrors.KindProcess, err)
	}

	content := strings.TrimRight(stdout.String(), "\n")
	p.commitScratch(content)
	cb(Response{Success: true, Content: content, ModelUsed: p.model, Timestamp: time.Now()})
	return nil
}

// Stream is not implemented for subprocess CLIs (spec §4.C lists no
// streaming path for this variant).
func (p *SubprocessProvider) Stream(ctx context.Context, prompt string, cb Callback, userdata any) error {
	return rterrors.New("provider.SubprocessProvider.Stream", rterrors.KindNotImplemented, "subprocess provider has no streaming path")
}

func (p *SubprocessProvider) Cleanup() error {
	if p.cleanedUp {
		return nil
	}
	p.scratch = nil
	p.cleanedUp = true
	return nil
}
