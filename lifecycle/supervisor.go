// Package lifecycle implements the per-CI state machine, transition
// history, and heartbeat supervision (spec §3, §4.E). There is no direct
// gomind analog — gomind's agents don't carry an explicit FSM — so this
// package is built straight from the spec's transition table, in the
// small-pure-type style core/component.go uses elsewhere in the teacher.
package lifecycle

import (
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/ckoons/argo-sub001/registry"
	"github.com/ckoons/argo-sub001/rterrors"
)

// Event drives a state transition (spec §4.E).
type Event string

const (
	EventCreated           Event = "created"
	EventInitializing      Event = "initializing"
	EventReady             Event = "ready"
	EventTaskAssigned      Event = "task_assigned"
	EventTaskComplete      Event = "task_complete"
	EventError             Event = "error"
	EventShutdownRequested Event = "shutdown_requested"
	EventShutdown          Event = "shutdown"
	EventTerminated        Event = "terminated"
)

// transitionTable maps each event to the status it always drives the CI
// to, regardless of current status (spec §4.E's table; StartCI and
// AssignTask add a from-state guard on top of this table, StopCI does not).
var transitionTable = map[Event]registry.Status{
	EventInitializing:      registry.StatusStarting,
	EventReady:             registry.StatusReady,
	EventTaskAssigned:      registry.StatusBusy,
	EventTaskComplete:      registry.StatusReady,
	EventError:             registry.StatusError,
	EventShutdownRequested: registry.StatusShutdown,
	EventShutdown:          registry.StatusShutdown,
	EventTerminated:        registry.StatusOffline,
}

// Transition is one immutable, already-appended history record.
type Transition struct {
	Timestamp time.Time
	From      registry.Status
	To        registry.Status
	Event     Event
	Reason    string
}

// Entry is the per-CI lifecycle state (spec §3's LifecycleEntry). History
// is stored in append order; History() presents it head-first
// (most recent first) per spec §4.E/§8 without needing a linked list.
type Entry struct {
	Name              string
	CurrentStatus     registry.Status
	CreatedAt         time.Time
	LastTransition    time.Time
	TransitionCount   int
	history           []Transition // append order; oldest first
	HeartbeatInterval time.Duration
	MissedHeartbeats  int
	ErrorCount        int
	LastError         string
	CurrentTask       string
	TaskStartTime     time.Time
}

// History returns transitions most-recent-first, satisfying spec §8's
// "transitions[0] is the most recent" invariant without mutating storage.
func (e *Entry) History() []Transition {
	out := make([]Transition, len(e.history))
	for i, t := range e.history {
		out[len(e.history)-1-i] = t
	}
	return out
}

func (e *Entry) append(from, to registry.Status, event Event, reason string) {
	e.history = append(e.history, Transition{
		Timestamp: time.Now(),
		From:      from,
		To:        to,
		Event:     event,
		Reason:    reason,
	})
	e.CurrentStatus = to
	e.LastTransition = time.Now()
	e.TransitionCount++
}

// ClearHistory empties the transition history without affecting current
// status (spec §4.E).
func (e *Entry) ClearHistory() {
	e.history = nil
}

// Supervisor owns every CI's lifecycle entry and mirrors status changes
// into a Registry.
type Supervisor struct {
	reg              *registry.Registry
	entries          map[string]*Entry
	heartbeatTimeout time.Duration
	maxMissed        int
	breakers         map[string]*gobreaker.CircuitBreaker[struct{}]
}

// Config controls heartbeat cadence.
type Config struct {
	HeartbeatTimeout time.Duration
	MaxMissed        int
}

// DefaultConfig matches spec §4.E's pinned defaults.
func DefaultConfig() Config {
	return Config{HeartbeatTimeout: 60 * time.Second, MaxMissed: 3}
}

// NewSupervisor creates a Supervisor backed by reg for status mirroring.
func NewSupervisor(reg *registry.Registry, cfg Config) *Supervisor {
	return &Supervisor{
		reg:              reg,
		entries:          make(map[string]*Entry),
		heartbeatTimeout: cfg.HeartbeatTimeout,
		maxMissed:        cfg.MaxMissed,
		breakers:         make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// CreateCI registers a new lifecycle entry in the offline state.
func (s *Supervisor) CreateCI(name string) (*Entry, error) {
	if _, exists := s.entries[name]; exists {
		return nil, rterrors.New("lifecycle.CreateCI", rterrors.KindInvalidValue, "already created").WithID(name)
	}
	entry := &Entry{Name: name, CurrentStatus: registry.StatusOffline, CreatedAt: time.Now(), HeartbeatInterval: s.heartbeatTimeout}
	entry.append(registry.StatusOffline, registry.StatusOffline, EventCreated, "")
	s.entries[name] = entry

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.heartbeatTimeout * time.Duration(s.maxMissed),
		// ConsecutiveFailures crossing 1 trips the breaker on the very
		// first Execute call below, which only happens once
		// MissedHeartbeats has already reached maxMissed: the debounce
		// against a single flapping miss is entry.MissedHeartbeats
		// itself, not the breaker, so escalation lands on exactly the
		// maxMissed-th CheckHeartbeats call (spec §8 scenario 5).
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	}
	s.breakers[name] = gobreaker.NewCircuitBreaker[struct{}](st)

	s.mirror(name)
	return entry, nil
}

func (s *Supervisor) mirror(name string) {
	if s.reg == nil {
		return
	}
	if entry, ok := s.entries[name]; ok {
		_ = s.reg.UpdateStatus(name, entry.CurrentStatus)
	}
}

func (s *Supervisor) get(name string) (*Entry, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, rterrors.Wrap("lifecycle", rterrors.KindInvalid, rterrors.ErrCINotFound).WithID(name)
	}
	return e, nil
}

// StartCI transitions offline -> starting only; any other current state is
// a warn-and-ignore no-op per spec §4.E (returns nil, no transition).
func (s *Supervisor) StartCI(name string) error {
	entry, err := s.get(name)
	if err != nil {
		return err
	}
	if entry.CurrentStatus != registry.StatusOffline {
		return nil
	}
	entry.append(entry.CurrentStatus, transitionTable[EventInitializing], EventInitializing, "")
	s.mirror(name)
	return nil
}

// MarkReady transitions a starting/busy CI to ready.
func (s *Supervisor) MarkReady(name string) error {
	entry, err := s.get(name)
	if err != nil {
		return err
	}
	entry.append(entry.CurrentStatus, transitionTable[EventReady], EventReady, "")
	s.mirror(name)
	return nil
}

// AssignTask requires the CI be active (ready or still starting — spec
// §8 scenario 4 assigns a task right after start_ci with no intervening
// ready event); stores the task description and transitions through
// task_assigned.
func (s *Supervisor) AssignTask(name, description string) error {
	entry, err := s.get(name)
	if err != nil {
		return err
	}
	if entry.CurrentStatus != registry.StatusReady && entry.CurrentStatus != registry.StatusStarting {
		return rterrors.New("lifecycle.AssignTask", rterrors.KindInvalid, "CI not ready").WithID(name)
	}
	entry.CurrentTask = description
	entry.TaskStartTime = time.Now()
	entry.append(entry.CurrentStatus, transitionTable[EventTaskAssigned], EventTaskAssigned, "")
	s.mirror(name)
	return nil
}

// CompleteTask clears the task description and transitions through
// task_complete.
func (s *Supervisor) CompleteTask(name string, success bool) error {
	entry, err := s.get(name)
	if err != nil {
		return err
	}
	entry.CurrentTask = ""
	reason := "success"
	if !success {
		reason = "failed"
	}
	entry.append(entry.CurrentStatus, transitionTable[EventTaskComplete], EventTaskComplete, reason)
	s.mirror(name)
	return nil
}

// ReportError transitions a CI to the error state, recording the cause.
func (s *Supervisor) ReportError(name string, cause error) error {
	entry, err := s.get(name)
	if err != nil {
		return err
	}
	entry.ErrorCount++
	if cause != nil {
		entry.LastError = cause.Error()
	}
	entry.append(entry.CurrentStatus, transitionTable[EventError], EventError, entry.LastError)
	s.mirror(name)
	return nil
}

// StopCI transitions to shutdown (graceful) or directly to offline
// (graceful=false), per spec §4.E.
func (s *Supervisor) StopCI(name string, graceful bool) error {
	entry, err := s.get(name)
	if err != nil {
		return err
	}
	if graceful {
		entry.append(entry.CurrentStatus, transitionTable[EventShutdownRequested], EventShutdownRequested, "")
	} else {
		entry.append(entry.CurrentStatus, transitionTable[EventTerminated], EventTerminated, "")
	}
	s.mirror(name)
	return nil
}

// CheckHeartbeats scans every non-offline entry; a CI whose last
// heartbeat is older than the configured timeout gets one missed-count
// increment, and once missed reaches max_missed the CI is escalated to
// error on that same call via a per-CI circuit breaker (spec §4.E,
// §8 scenario 5). The breaker's role is fail-fast bookkeeping, not the
// miss-count debounce itself: entry.MissedHeartbeats is what absorbs a
// single flapping miss before anything trips.
func (s *Supervisor) CheckHeartbeats(now time.Time, lastHeartbeat map[string]time.Time) {
	for name, entry := range s.entries {
		if entry.CurrentStatus == registry.StatusOffline {
			continue
		}
		last, ok := lastHeartbeat[name]
		if !ok {
			last = entry.CreatedAt
		}
		if now.Sub(last) <= s.heartbeatTimeout {
			continue
		}
		entry.MissedHeartbeats++
		if entry.MissedHeartbeats < s.maxMissed {
			continue
		}

		breaker := s.breakers[name]
		_, _ = breaker.Execute(func() (struct{}, error) {
			return struct{}{}, rterrors.New("lifecycle.CheckHeartbeats", rterrors.KindTimeout, "heartbeat lost").WithID(name)
		})
		if breaker.State() == gobreaker.StateOpen {
			_ = s.ReportError(name, rterrors.New("lifecycle.CheckHeartbeats", rterrors.KindTimeout, "heartbeat missed past threshold").WithID(name))
		}
	}
}

// Get returns the lifecycle entry for name.
func (s *Supervisor) Get(name string) (*Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Destroy releases every tracked lifecycle entry and circuit breaker,
// satisfying shutdown.Destroyable so a Supervisor can be registered
// with the process-wide shutdown tracker (spec §4.I).
func (s *Supervisor) Destroy() {
	s.entries = make(map[string]*Entry)
	s.breakers = make(map[string]*gobreaker.CircuitBreaker[struct{}])
}
