package provider

import (
	"context"
	"time"

	"github.com/ckoons/argo-sub001/memory"
	"github.com/ckoons/argo-sub001/rterrors"
)

// Response is what every variant's callback is invoked with exactly once
// per query (spec §4.C's contract).
type Response struct {
	Success      bool
	Content      string
	ModelUsed    string
	Timestamp    time.Time
	ErrorKind    rterrors.Kind
	ErrorMessage string
}

// Callback receives a provider's single Response per query/stream call.
type Callback func(Response)

// Provider is the polymorphic contract every backend variant implements
// (spec §4.C): init/connect/query/stream/cleanup.
type Provider interface {
	Init() error
	Connect(ctx context.Context) error
	Query(ctx context.Context, prompt string, cb Callback, userdata any) error
	Stream(ctx context.Context, prompt string, cb Callback, userdata any) error
	Cleanup() error
	SupportsStreaming() bool
}

// scratchHeadroom is the grow-only headroom added to the response scratch
// buffer on each resize (spec §4.A step 5).
const scratchHeadroom = 1024

// instance holds the mutable state common to every Provider variant
// (spec §3's ProviderInstance): model, scratch buffer, counters, and an
// optional bound memory digest. Concrete variants embed it.
type instance struct {
	model       string
	scratch     []byte
	queryCount  int
	lastQueryAt time.Time
	digest      *memory.Digest
	cleanedUp   bool
}

func (i *instance) commitScratch(content string) {
	need := len(content)
	if cap(i.scratch) < need {
		i.scratch = make([]byte, 0, need+scratchHeadroom)
	}
	i.scratch = append(i.scratch[:0], content...)
	i.queryCount++
	i.lastQueryAt = time.Now()
}

// BindMemory attaches a MemoryDigest whose sunset/sunrise/breadcrumbs are
// prepended to every subsequent query (spec §4.A step 1). Pass nil to
// detach.
func (i *instance) BindMemory(d *memory.Digest) {
	i.digest = d
}
