package bus

import (
	"sync"
	"time"

	"github.com/ckoons/argo-sub001/rterrors"
)

// MockBus is an in-process Transport: subscribers are plain Go functions
// invoked synchronously on Send/Broadcast, in submission order for any
// given sender->recipient pair (spec §4.F's ordering guarantee). Grounded
// on core/discovery.go's MockDiscovery (mutex-guarded maps, no network).
type MockBus struct {
	mu          sync.Mutex
	subscribers map[string]map[int]Handler
	nextSubID   int
	roles       map[string]string // CI name -> role, for Broadcast's role filter
	pending     map[string]*pendingRequest
	pendingCap  int
	reqTimeout  time.Duration
}

var _ Transport = (*MockBus)(nil)

// NewMockBus creates an empty MockBus.
func NewMockBus() *MockBus {
	return &MockBus{
		subscribers: make(map[string]map[int]Handler),
		roles:       make(map[string]string),
		pending:     make(map[string]*pendingRequest),
		pendingCap:  defaultPendingCap,
		reqTimeout:  defaultRequestTimeout,
	}
}

// RegisterRole associates a CI name with a role so Broadcast can filter by
// it; the registry owns the authoritative mapping, this is a local mirror.
func (b *MockBus) RegisterRole(name, role string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roles[name] = role
}

// Send delivers msg to every handler subscribed under msg.To. Delivery is
// at-most-once: a missing subscriber is not an error, matching spec §4.F's
// "fire and forget, no durable queue" contract.
func (b *MockBus) Send(msg Message) error {
	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.subscribers[msg.To]))
	for _, h := range b.subscribers[msg.To] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		h(msg)
	}
	return nil
}

// Broadcast delivers msg to every subscriber except `from`, optionally
// filtered to those whose registered role equals roleFilter.
func (b *MockBus) Broadcast(from, roleFilter string, msg Message) error {
	b.mu.Lock()
	var targets []string
	for name := range b.subscribers {
		if name == from {
			continue
		}
		if roleFilter != "" && b.roles[name] != roleFilter {
			continue
		}
		targets = append(targets, name)
	}
	b.mu.Unlock()

	for _, name := range targets {
		m := msg
		m.To = name
		if err := b.Send(m); err != nil {
			return err
		}
	}
	return nil
}

// Subscribe registers h to receive messages addressed to name. The
// returned unsubscribe func removes exactly this registration.
func (b *MockBus) Subscribe(name string, h Handler) (func(), error) {
	if name == "" {
		return nil, rterrors.New("bus.Subscribe", rterrors.KindNullArg, "name required")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[name] == nil {
		b.subscribers[name] = make(map[int]Handler)
	}
	id := b.nextSubID
	b.nextSubID++
	b.subscribers[name][id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers[name], id)
	}, nil
}

// Close releases all subscriptions.
func (b *MockBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]map[int]Handler)
	return nil
}

// BeginRequest registers a new pending request and returns its ID and a
// reply channel, failing once pendingCap outstanding requests are tracked
// (spec §4.F's fixed-cap pending table).
func (b *MockBus) BeginRequest() (string, <-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	if len(b.pending) >= b.pendingCap {
		return "", nil, rterrors.New("bus.BeginRequest", rterrors.KindQueueFull, "too many pending requests")
	}
	id := newRequestID()
	reply := make(chan Message, 1)
	b.pending[id] = &pendingRequest{id: id, deadline: time.Now().Add(b.reqTimeout), reply: reply}
	return id, reply, nil
}

// Resolve delivers msg as the reply to a previously begun request,
// returning an invalid-value kind error if id is unknown or already expired.
func (b *MockBus) Resolve(id string, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.pending[id]
	if !ok {
		return rterrors.New("bus.Resolve", rterrors.KindInvalidValue, "unknown or expired request").WithID(id)
	}
	delete(b.pending, id)
	req.reply <- msg
	close(req.reply)
	return nil
}

// expireLocked drops any pending request whose deadline has passed. Must
// be called with b.mu held.
func (b *MockBus) expireLocked() {
	now := time.Now()
	for id, req := range b.pending {
		if now.After(req.deadline) {
			close(req.reply)
			delete(b.pending, id)
		}
	}
}

// PendingCount returns the number of currently tracked pending requests.
func (b *MockBus) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	return len(b.pending)
}
