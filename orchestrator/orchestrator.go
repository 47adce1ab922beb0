// Package orchestrator composes the registry, lifecycle supervisor,
// message bus, and an optional merge negotiation into one session
// handle (spec §3, §4.H). Grounded on core/component.go's pattern of
// one struct owning several collaborator subsystems behind thin facade
// methods, generalized from gomind's single-agent scope to a
// multi-CI session.
package orchestrator

import (
	"time"

	"github.com/ckoons/argo-sub001/bus"
	"github.com/ckoons/argo-sub001/internal/obslog"
	"github.com/ckoons/argo-sub001/lifecycle"
	"github.com/ckoons/argo-sub001/merge"
	"github.com/ckoons/argo-sub001/registry"
	"github.com/ckoons/argo-sub001/rterrors"
	"github.com/ckoons/argo-sub001/runtimeconfig"
	"github.com/ckoons/argo-sub001/shutdown"
)

// Phase is the workflow handle's coarse progress marker. The workflow
// step execution engine itself is out of scope (spec Non-goals); the
// orchestrator only tracks whether one is running, its current phase
// label, and whether it's paused.
type Phase string

// workflow is the "external" handle the spec describes (§3's Orchestrator
// "owns ... one Workflow handle (external)"): running/paused flags and a
// phase label, with no step-execution semantics of its own.
type workflow struct {
	name    string
	running bool
	paused  bool
	phase   Phase
}

// Destroy marks the handle stopped, satisfying shutdown.Destroyable
// (spec §5: workflow teardown is cooperative, not a forced abort).
func (w *workflow) Destroy() {
	w.running = false
}

// Orchestrator owns exactly one Registry, one LifecycleSupervisor, one
// workflow handle, and optionally one active MergeNegotiation (spec §3).
type Orchestrator struct {
	SessionID    string
	BaseBranch   string
	FeatureBranch string
	running      bool
	startedAt    time.Time

	reg        *registry.Registry
	supervisor *lifecycle.Supervisor
	transport  bus.Transport
	workflow   *workflow
	negotiation *merge.Negotiation

	tracker *shutdown.Tracker
	log     obslog.Logger
}

// busAdapter satisfies registry.Transport by wrapping a bus.Transport,
// since the registry's SendMessage/Broadcast contract predates (and is
// simpler than) the bus package's Message-typed Transport (spec §4.D/§4.F
// wire together, but neither depends on the other's shape).
type busAdapter struct {
	t bus.Transport
}

func (a busAdapter) Deliver(from, to, payload string) error {
	return a.t.Send(bus.NewMessage(from, to, "message", payload))
}

// New creates an Orchestrator for one session, wiring a fresh Registry
// and Supervisor over the given bus transport.
func New(cfg *runtimeconfig.Config, sessionID, baseBranch string, transport bus.Transport, log obslog.Logger) *Orchestrator {
	if log == nil {
		log = obslog.NoOp{}
	}
	log = log.WithComponent("orchestrator")

	regCfg := registry.Config{
		BasePort:     cfg.Registry.BasePort,
		SlotsPerRole: cfg.Registry.SlotsPerRole,
		Capacity:     cfg.Registry.Capacity,
		StaleAfter:   cfg.Registry.StaleAfter,
	}
	reg := registry.New(regCfg, busAdapter{t: transport})

	supCfg := lifecycle.Config{
		HeartbeatTimeout: cfg.Lifecycle.HeartbeatTimeout,
		MaxMissed:        cfg.Lifecycle.MaxMissed,
	}
	sup := lifecycle.NewSupervisor(reg, supCfg)

	tracker := shutdown.Get()
	_ = tracker.RegisterRegistry(reg)
	_ = tracker.RegisterSupervisor(sup)

	return &Orchestrator{
		SessionID:  sessionID,
		BaseBranch: baseBranch,
		reg:        reg,
		supervisor: sup,
		transport:  transport,
		tracker:    tracker,
		log:        log,
	}
}

// AddCI registers a CI with both the registry and the lifecycle
// supervisor, mirroring every mutation into both (spec §4.H invariant).
func (o *Orchestrator) AddCI(name, role, model string) error {
	if _, err := o.reg.AddCI(name, role, model); err != nil {
		return err
	}
	if _, err := o.supervisor.CreateCI(name); err != nil {
		return err
	}
	if mb, ok := o.transport.(interface{ RegisterRole(name, role string) }); ok {
		mb.RegisterRole(name, role)
	}
	o.log.Info("ci added", map[string]interface{}{"name": name, "role": role})
	return nil
}

// StartCI transitions a CI offline -> starting.
func (o *Orchestrator) StartCI(name string) error {
	return o.supervisor.StartCI(name)
}

// StopCI transitions a CI to shutdown (graceful) or offline (immediate).
func (o *Orchestrator) StopCI(name string, graceful bool) error {
	return o.supervisor.StopCI(name, graceful)
}

// CreateTask assigns a task description to a CI.
func (o *Orchestrator) CreateTask(name, description string) error {
	return o.supervisor.AssignTask(name, description)
}

// CompleteTask marks a CI's current task complete.
func (o *Orchestrator) CompleteTask(name string, success bool) error {
	return o.supervisor.CompleteTask(name, success)
}

// SendMessage routes a payload from one CI to another through the
// registry (which tallies counters) and the underlying bus.
func (o *Orchestrator) SendMessage(from, to, payload string) error {
	return o.reg.SendMessage(from, to, payload)
}

// BroadcastMessage routes a payload from one CI to every CI matching
// roleFilter (empty = all).
func (o *Orchestrator) BroadcastMessage(from, roleFilter, payload string) error {
	return o.reg.Broadcast(from, roleFilter, payload)
}

// StartWorkflow begins the workflow handle, refusing if one is already
// running (spec §4.H invariant).
func (o *Orchestrator) StartWorkflow(name string) error {
	if o.workflow != nil && o.workflow.running {
		return rterrors.New("orchestrator.StartWorkflow", rterrors.KindInvalid, "workflow already running").WithID(name)
	}
	o.workflow = &workflow{name: name, running: true, phase: "init"}
	o.running = true
	o.startedAt = time.Now()
	if o.tracker != nil {
		_ = o.tracker.RegisterWorkflow(o.workflow)
	}
	o.log.Info("workflow started", map[string]interface{}{"name": name})
	return nil
}

// AdvancePhase moves the running workflow to a new phase label.
func (o *Orchestrator) AdvancePhase(phase Phase) error {
	if o.workflow == nil || !o.workflow.running {
		return rterrors.New("orchestrator.AdvancePhase", rterrors.KindInvalid, "no workflow running")
	}
	o.workflow.phase = phase
	return nil
}

// PauseWorkflow marks the running workflow paused.
func (o *Orchestrator) PauseWorkflow() error {
	if o.workflow == nil || !o.workflow.running {
		return rterrors.New("orchestrator.PauseWorkflow", rterrors.KindInvalid, "no workflow running")
	}
	o.workflow.paused = true
	return nil
}

// ResumeWorkflow clears a running workflow's paused flag.
func (o *Orchestrator) ResumeWorkflow() error {
	if o.workflow == nil || !o.workflow.running {
		return rterrors.New("orchestrator.ResumeWorkflow", rterrors.KindInvalid, "no workflow running")
	}
	o.workflow.paused = false
	return nil
}

// StartMerge opens a merge negotiation between branchA and branchB,
// refusing if one is already active (spec §4.H invariant).
func (o *Orchestrator) StartMerge(branchA, branchB string) error {
	if o.negotiation != nil {
		return rterrors.New("orchestrator.StartMerge", rterrors.KindInvalid, "negotiation already active").WithID(o.SessionID)
	}
	o.negotiation = merge.New(o.SessionID, branchA, branchB)
	o.FeatureBranch = branchB
	return nil
}

// AddConflict registers a conflict region on the active negotiation.
func (o *Orchestrator) AddConflict(file string, lineStart, lineEnd int, contentA, contentB string) (*merge.Conflict, error) {
	if o.negotiation == nil {
		return nil, rterrors.New("orchestrator.AddConflict", rterrors.KindInvalid, "no active negotiation")
	}
	return o.negotiation.AddConflict(file, lineStart, lineEnd, contentA, contentB), nil
}

// ProposeResolution records ciName's proposal for conflict.
func (o *Orchestrator) ProposeResolution(conflict *merge.Conflict, ciName, content string, confidence int) (*merge.Proposal, error) {
	if o.negotiation == nil {
		return nil, rterrors.New("orchestrator.ProposeResolution", rterrors.KindInvalid, "no active negotiation")
	}
	return o.negotiation.ProposeResolution(conflict, ciName, content, confidence), nil
}

// FinalizeMerge closes the active negotiation, refusing if any conflict
// remains unresolved (spec §4.H invariant), then clears it.
func (o *Orchestrator) FinalizeMerge() error {
	if o.negotiation == nil {
		return rterrors.New("orchestrator.FinalizeMerge", rterrors.KindInvalid, "no active negotiation")
	}
	if err := o.negotiation.Finalize(); err != nil {
		return err
	}
	o.negotiation = nil
	return nil
}

// Status is the JSON-renderable session summary (spec §4.H's "status
// reporting (textual + JSON)").
type Status struct {
	SessionID     string      `json:"session_id"`
	BaseBranch    string      `json:"base_branch"`
	FeatureBranch string      `json:"feature_branch,omitempty"`
	Running       bool        `json:"running"`
	StartedAt     time.Time   `json:"started_at,omitempty"`
	WorkflowPhase Phase       `json:"workflow_phase,omitempty"`
	Paused        bool        `json:"paused"`
	Negotiation   *merge.JSON `json:"negotiation,omitempty"`
}

// StatusJSON renders the current session status.
func (o *Orchestrator) StatusJSON() Status {
	s := Status{
		SessionID:     o.SessionID,
		BaseBranch:    o.BaseBranch,
		FeatureBranch: o.FeatureBranch,
		Running:       o.running,
		StartedAt:     o.startedAt,
	}
	if o.workflow != nil {
		s.WorkflowPhase = o.workflow.phase
		s.Paused = o.workflow.paused
	}
	if o.negotiation != nil {
		j := o.negotiation.ToJSON()
		s.Negotiation = &j
	}
	return s
}

// StatusText renders a short human-readable status line.
func (o *Orchestrator) StatusText() string {
	state := "idle"
	if o.running {
		state = "running"
	}
	return o.SessionID + ": " + state + " (base=" + o.BaseBranch + ")"
}

// Destroy tears down the owned Registry, Supervisor, and negotiation.
// Workflow teardown is cooperative: the handle is cleared, not aborted
// mid-step (spec §5's "signal-driven shutdown is cooperative for
// workflows").
func (o *Orchestrator) Destroy() {
	if o.workflow != nil {
		o.workflow.Destroy()
		if o.tracker != nil {
			o.tracker.UnregisterWorkflow(o.workflow)
		}
	}
	o.negotiation = nil
	o.running = false

	if o.tracker != nil {
		o.tracker.UnregisterSupervisor(o.supervisor)
		o.tracker.UnregisterRegistry(o.reg)
	}
	o.supervisor.Destroy()
	o.reg.Destroy()

	o.log.Info("orchestrator destroyed", map[string]interface{}{"session_id": o.SessionID})
}

// CI returns the lifecycle entry for name, for callers that need the
// transition history or current task directly.
func (o *Orchestrator) CI(name string) (*lifecycle.Entry, bool) {
	return o.supervisor.Get(name)
}

// RegistryEntry returns the registry entry for name.
func (o *Orchestrator) RegistryEntry(name string) (*registry.Entry, bool) {
	return o.reg.FindByName(name)
}
