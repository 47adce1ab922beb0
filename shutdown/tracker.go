// Package shutdown implements the process-wide singleton that guarantees
// every live Orchestrator/Registry/Supervisor is torn down on normal exit
// or a fatal signal (spec §3, §4.I). There is no gomind analog for a
// single shared teardown registry; grounded on core/discovery.go's
// mutex-guarded-map style for the bookkeeping and on
// golang.org/x/sync/errgroup for bounded-concurrency fan-out within a
// tier, the same dependency the teacher lists but never imports.
package shutdown

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ckoons/argo-sub001/internal/obslog"
	"github.com/ckoons/argo-sub001/rterrors"
)

const (
	maxWorkflows  = 32
	maxRegistries = 8
	maxSupervisors = 8
)

// Destroyable is anything the tracker can unconditionally tear down.
type Destroyable interface {
	Destroy()
}

// Tracker is the process-wide registry of live objects awaiting
// coordinated teardown. All access is serialized by mu (spec §5's
// "shutdown tracker is shared across threads and must be lock-guarded").
type Tracker struct {
	mu          sync.Mutex
	workflows   []Destroyable
	registries  []Destroyable
	supervisors []Destroyable
	shared      []Destroyable // "shared services" singletons, destroyed last
	log         obslog.Logger
}

var (
	singleton     *Tracker
	singletonOnce sync.Once
)

// Get returns the process-wide Tracker, constructing it on first use.
func Get() *Tracker {
	singletonOnce.Do(func() {
		singleton = newTracker(obslog.NoOp{})
	})
	return singleton
}

func newTracker(log obslog.Logger) *Tracker {
	if log == nil {
		log = obslog.NoOp{}
	}
	return &Tracker{log: log.WithComponent("shutdown")}
}

func registerInto(mu *sync.Mutex, slice *[]Destroyable, cap int, obj Destroyable) error {
	mu.Lock()
	defer mu.Unlock()
	for _, existing := range *slice {
		if existing == obj {
			return nil // idempotent: already registered
		}
	}
	if len(*slice) >= cap {
		return rterrors.New("shutdown.register", rterrors.KindQueueFull, "tier at capacity")
	}
	*slice = append(*slice, obj)
	return nil
}

func unregisterFrom(mu *sync.Mutex, slice *[]Destroyable, obj Destroyable) {
	mu.Lock()
	defer mu.Unlock()
	for i, existing := range *slice {
		if existing == obj {
			*slice = append((*slice)[:i], (*slice)[i+1:]...)
			return
		}
	}
	// unknown object: idempotent no-op (spec §4.I)
}

// RegisterWorkflow adds obj to the workflow tier (cap 32).
func (t *Tracker) RegisterWorkflow(obj Destroyable) error {
	return registerInto(&t.mu, &t.workflows, maxWorkflows, obj)
}

// UnregisterWorkflow removes obj from the workflow tier, a no-op if
// unknown.
func (t *Tracker) UnregisterWorkflow(obj Destroyable) {
	unregisterFrom(&t.mu, &t.workflows, obj)
}

// RegisterRegistry adds obj to the registry tier (cap 8).
func (t *Tracker) RegisterRegistry(obj Destroyable) error {
	return registerInto(&t.mu, &t.registries, maxRegistries, obj)
}

// UnregisterRegistry removes obj from the registry tier.
func (t *Tracker) UnregisterRegistry(obj Destroyable) {
	unregisterFrom(&t.mu, &t.registries, obj)
}

// RegisterSupervisor adds obj to the supervisor tier (cap 8).
func (t *Tracker) RegisterSupervisor(obj Destroyable) error {
	return registerInto(&t.mu, &t.supervisors, maxSupervisors, obj)
}

// UnregisterSupervisor removes obj from the supervisor tier.
func (t *Tracker) UnregisterSupervisor(obj Destroyable) {
	unregisterFrom(&t.mu, &t.supervisors, obj)
}

// RegisterShared adds a long-lived shared-service singleton, destroyed
// last by CleanupAll.
func (t *Tracker) RegisterShared(obj Destroyable) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shared = append(t.shared, obj)
	return nil
}

// destroyTier tears down every object in tier concurrently via errgroup,
// bounded implicitly by the tier's own small capacity.
func destroyTier(tier []Destroyable) {
	g, _ := errgroup.WithContext(context.Background())
	for _, obj := range tier {
		obj := obj
		g.Go(func() error {
			obj.Destroy()
			return nil
		})
	}
	_ = g.Wait()
}

// CleanupAll destroys every tracked object in order: workflows ->
// supervisors -> registries -> shared services, then clears the tracker
// (spec §4.I). Safe to call more than once; a second call is a no-op.
func (t *Tracker) CleanupAll() {
	t.mu.Lock()
	workflows := t.workflows
	supervisors := t.supervisors
	registries := t.registries
	shared := t.shared
	t.workflows = nil
	t.supervisors = nil
	t.registries = nil
	t.shared = nil
	t.mu.Unlock()

	t.log.Info("cleanup starting", map[string]interface{}{
		"workflows": len(workflows), "supervisors": len(supervisors), "registries": len(registries),
	})

	destroyTier(workflows)
	destroyTier(supervisors)
	destroyTier(registries)
	destroyTier(shared)

	t.log.Info("cleanup complete", nil)
}

// Counts reports how many objects are currently tracked per tier, for
// diagnostics and tests.
type Counts struct {
	Workflows   int
	Supervisors int
	Registries  int
	Shared      int
}

// Snapshot returns the current per-tier object counts.
func (t *Tracker) Snapshot() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Counts{
		Workflows:   len(t.workflows),
		Supervisors: len(t.supervisors),
		Registries:  len(t.registries),
		Shared:      len(t.shared),
	}
}
