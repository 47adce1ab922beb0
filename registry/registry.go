// Package registry implements the CI name/role/port directory (spec §3,
// §4.D). Registry is a single in-memory directory with role-based port
// allocation and per-entry counters; RedisBackend (redis_registry.go) is
// a separate publisher that can mirror entries into Redis. Registry does
// not call RedisBackend, and RedisBackend does not implement Registry's
// operations.
package registry

import (
	"time"

	"github.com/ckoons/argo-sub001/rterrors"
)

// Status mirrors the lifecycle status vocabulary (spec §3).
type Status string

const (
	StatusOffline  Status = "offline"
	StatusStarting Status = "starting"
	StatusReady    Status = "ready"
	StatusBusy     Status = "busy"
	StatusError    Status = "error"
	StatusShutdown Status = "shutdown"
)

// Counters tracks per-entry message/error bookkeeping (spec §3).
type Counters struct {
	MessagesSent     int
	MessagesReceived int
	Errors           int
	LastErrorTime    time.Time
}

// Entry is one registered CI (spec §3's RegistryEntry).
type Entry struct {
	Name            string
	Role            string
	Model           string
	Host            string
	Port            int
	Socket          int // -1 when disconnected
	Status          Status
	RegisteredAt    time.Time
	LastHeartbeat   time.Time
	Counters        Counters
}

// roleOffsets assigns each role a 10-slot band within the base port,
// per spec §4.D/§6. "reserved" exists so a fifth role can be added
// without renumbering the rest.
var roleOffsets = map[string]int{
	"builder":      0,
	"coordinator":  10,
	"requirements": 20,
	"analysis":     30,
	"reserved":     40,
}

// Config controls port allocation and capacity.
type Config struct {
	BasePort     int
	SlotsPerRole int
	Capacity     int
	StaleAfter   time.Duration
}

// DefaultConfig matches spec §6's pinned defaults.
func DefaultConfig() Config {
	return Config{
		BasePort:     9000,
		SlotsPerRole: 10,
		Capacity:     32,
		StaleAfter:   60 * time.Second,
	}
}

// Registry is the name -> entry directory.
type Registry struct {
	cfg     Config
	entries map[string]*Entry
	ports   map[int]string // port -> owning CI name
	bus     Transport
}

// Transport is the message-bus hand-off the spec describes only as a
// contract (§4.F); Registry.SendMessage/Broadcast delegate delivery to it.
type Transport interface {
	Deliver(from, to, payload string) error
}

// New creates an empty Registry. bus may be nil; SendMessage/Broadcast
// then return a disconnected-kind error since there is nowhere to deliver.
func New(cfg Config, bus Transport) *Registry {
	return &Registry{
		cfg:     cfg,
		entries: make(map[string]*Entry),
		ports:   make(map[int]string),
		bus:     bus,
	}
}

// AddCI registers a new CI, allocating it a port within its role's band.
func (r *Registry) AddCI(name, role, model string) (*Entry, error) {
	if name == "" {
		return nil, rterrors.New("registry.AddCI", rterrors.KindNullArg, "name required")
	}
	if len(name) > 31 {
		return nil, rterrors.New("registry.AddCI", rterrors.KindTooLarge, "name exceeds 31 characters").WithID(name)
	}
	if _, exists := r.entries[name]; exists {
		return nil, rterrors.New("registry.AddCI", rterrors.KindInvalidValue, "name already registered").WithID(name)
	}
	if len(r.entries) >= r.cfg.Capacity {
		return nil, rterrors.New("registry.AddCI", rterrors.KindQueueFull, "registry at capacity").WithID(name)
	}

	port, err := r.allocatePort(role)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		Name:         name,
		Role:         role,
		Model:        model,
		Host:         "127.0.0.1",
		Port:         port,
		Socket:       -1,
		Status:       StatusOffline,
		RegisteredAt: time.Now(),
	}
	r.entries[name] = entry
	r.ports[port] = name
	return entry, nil
}

// RemoveCI unregisters a CI, freeing its port.
func (r *Registry) RemoveCI(name string) error {
	entry, ok := r.entries[name]
	if !ok {
		return rterrors.Wrap("registry.RemoveCI", rterrors.KindInvalid, rterrors.ErrCINotFound).WithID(name)
	}
	delete(r.ports, entry.Port)
	delete(r.entries, name)
	return nil
}

// FindByName looks up a CI by name.
func (r *Registry) FindByName(name string) (*Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// FindByRole returns one entry matching role if firstOnly is true, else
// every entry with that role. Status is not considered, and which entry
// comes first follows map iteration order.
func (r *Registry) FindByRole(role string, firstOnly bool) []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if e.Role == role {
			out = append(out, e)
			if firstOnly {
				return out
			}
		}
	}
	return out
}

// FindAvailable returns every entry currently in the ready state.
func (r *Registry) FindAvailable() []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if e.Status == StatusReady {
			out = append(out, e)
		}
	}
	return out
}

// UpdateStatus mirrors a new status into the registry entry. Lifecycle
// transitions drive this; the registry itself does not validate the
// state machine (that's the lifecycle package's job).
func (r *Registry) UpdateStatus(name string, status Status) error {
	entry, ok := r.entries[name]
	if !ok {
		return rterrors.Wrap("registry.UpdateStatus", rterrors.KindInvalid, rterrors.ErrCINotFound).WithID(name)
	}
	entry.Status = status
	return nil
}

// RecordHeartbeat timestamps the most recent liveness signal from a CI.
func (r *Registry) RecordHeartbeat(name string) error {
	entry, ok := r.entries[name]
	if !ok {
		return rterrors.Wrap("registry.RecordHeartbeat", rterrors.KindInvalid, rterrors.ErrCINotFound).WithID(name)
	}
	entry.LastHeartbeat = time.Now()
	return nil
}

// CheckHealth returns the number of entries whose last heartbeat is
// older than the configured staleness window (spec §4.D: 60s default).
func (r *Registry) CheckHealth() int {
	stale := 0
	cutoff := time.Now().Add(-r.cfg.StaleAfter)
	for _, e := range r.entries {
		if e.LastHeartbeat.Before(cutoff) {
			stale++
		}
	}
	return stale
}

// allocatePort returns the first free port in role's slot band.
func (r *Registry) allocatePort(role string) (int, error) {
	offset, ok := roleOffsets[role]
	if !ok {
		return 0, rterrors.New("registry.allocatePort", rterrors.KindInvalidValue, "unknown role").WithID(role)
	}
	base := r.cfg.BasePort + offset
	for i := 0; i < r.cfg.SlotsPerRole; i++ {
		candidate := base + i
		if _, taken := r.ports[candidate]; !taken {
			return candidate, nil
		}
	}
	return 0, rterrors.Wrap("registry.allocatePort", rterrors.KindQueueFull, rterrors.ErrPortExhausted).WithID(role)
}

// IsPortAvailable reports whether port is currently unassigned.
func (r *Registry) IsPortAvailable(port int) bool {
	_, taken := r.ports[port]
	return !taken
}

// SendMessage delivers a payload from one CI to another, provided the
// recipient is ready or busy, updating both entries' counters.
func (r *Registry) SendMessage(from, to, payload string) error {
	sender, ok := r.entries[from]
	if !ok {
		return rterrors.Wrap("registry.SendMessage", rterrors.KindInvalid, rterrors.ErrCINotFound).WithID(from)
	}
	recipient, ok := r.entries[to]
	if !ok {
		return rterrors.Wrap("registry.SendMessage", rterrors.KindInvalid, rterrors.ErrCINotFound).WithID(to)
	}
	if recipient.Status != StatusReady && recipient.Status != StatusBusy {
		return rterrors.New("registry.SendMessage", rterrors.KindDisconnected, "recipient not ready/busy").WithID(to)
	}

	sender.Counters.MessagesSent++
	recipient.Counters.MessagesReceived++

	if r.bus == nil {
		recipient.Counters.Errors++
		recipient.Counters.LastErrorTime = time.Now()
		return rterrors.New("registry.SendMessage", rterrors.KindDisconnected, "no transport configured").WithID(to)
	}
	if err := r.bus.Deliver(from, to, payload); err != nil {
		recipient.Counters.Errors++
		recipient.Counters.LastErrorTime = time.Now()
		return rterrors.Wrap("registry.SendMessage", rterrors.KindSocket, err).WithID(to)
	}
	return nil
}

// Broadcast delivers payload from `from` to every entry matching
// roleFilter (or all, if empty), excluding the sender and any entry not
// ready/busy. Succeeds iff at least one delivery succeeded.
func (r *Registry) Broadcast(from, roleFilter, payload string) error {
	delivered := false
	for name, entry := range r.entries {
		if name == from {
			continue
		}
		if roleFilter != "" && entry.Role != roleFilter {
			continue
		}
		if entry.Status != StatusReady && entry.Status != StatusBusy {
			continue
		}
		if err := r.SendMessage(from, name, payload); err == nil {
			delivered = true
		}
	}
	if !delivered {
		return rterrors.New("registry.Broadcast", rterrors.KindDisconnected, "no recipient accepted delivery").WithID(from)
	}
	return nil
}

// Destroy releases every tracked entry and port, satisfying
// shutdown.Destroyable so a Registry can be registered with the
// process-wide shutdown tracker (spec §4.I).
func (r *Registry) Destroy() {
	r.entries = make(map[string]*Entry)
	r.ports = make(map[int]string)
}
