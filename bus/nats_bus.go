package bus

import (
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/nats-io/nats.go"

	"github.com/ckoons/argo-sub001/rterrors"
)

// subjectPrefix namespaces every subject this bus uses, so multiple
// sessions can share one NATS cluster without colliding.
const subjectPrefix = "argo.ci."

// NATSBus is a Transport backed by a real NATS connection, grounded on
// cartographus's NATS-as-messaging-backbone usage (internal/websocket's
// nats_subscriber.go, internal/supervisor/services/nats_service.go):
// JSON-encoded payloads (goccy/go-json) over subject-addressed pub/sub.
type NATSBus struct {
	conn       *nats.Conn
	mu         sync.Mutex
	subs       map[string]*nats.Subscription
	roles      map[string]string // CI name -> role, mirrors MockBus.RegisterRole
	pending    map[string]*pendingRequest
	pendingCap int
	reqTimeout time.Duration
}

var _ Transport = (*NATSBus)(nil)

// NewNATSBus connects to url and returns a ready-to-use NATSBus.
func NewNATSBus(url string) (*NATSBus, error) {
	conn, err := nats.Connect(url, nats.Timeout(10*time.Second))
	if err != nil {
		return nil, rterrors.Wrap("bus.NewNATSBus", rterrors.KindSocket, err)
	}
	return &NATSBus{
		conn:       conn,
		subs:       make(map[string]*nats.Subscription),
		roles:      make(map[string]string),
		pending:    make(map[string]*pendingRequest),
		pendingCap: defaultPendingCap,
		reqTimeout: defaultRequestTimeout,
	}, nil
}

// RegisterRole associates a CI name with a role so Broadcast can filter by
// it; only CIs subscribed through this connection are reachable.
func (b *NATSBus) RegisterRole(name, role string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roles[name] = role
}

func subjectFor(name string) string {
	return subjectPrefix + name
}

// Send publishes msg to the subject owned by msg.To.
func (b *NATSBus) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return rterrors.Wrap("bus.NATSBus.Send", rterrors.KindFormat, err)
	}
	if err := b.conn.Publish(subjectFor(msg.To), data); err != nil {
		return rterrors.Wrap("bus.NATSBus.Send", rterrors.KindSocket, err)
	}
	return nil
}

// Broadcast publishes an individually addressed copy of msg to every
// locally known CI matching roleFilter, excluding the sender. NATS core
// pub/sub has no server-side role filter, so the filtering happens
// against the roles this connection has seen via RegisterRole/Subscribe.
func (b *NATSBus) Broadcast(from, roleFilter string, msg Message) error {
	b.mu.Lock()
	var targets []string
	for name := range b.subs {
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

// Subscribe registers a durable-for-the-connection subscription on name's
// subject. unsubscribe tears down exactly this subscription.
func (b *NATSBus) Subscribe(name string, h Handler) (func(), error) {
	sub, err := b.conn.Subscribe(subjectFor(name), func(m *nats.Msg) {
		var msg Message
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			return
		}
		h(msg)
	})
	if err != nil {
		return nil, rterrors.Wrap("bus.NATSBus.Subscribe", rterrors.KindSocket, err)
	}
	b.mu.Lock()
	b.subs[name] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[name]; ok {
			_ = s.Unsubscribe()
			delete(b.subs, name)
		}
	}, nil
}

// BeginRequest registers a pending request, failing once pendingCap
// outstanding requests are tracked (spec §4.F's fixed-cap pending table).
func (b *NATSBus) BeginRequest() (string, <-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	if len(b.pending) >= b.pendingCap {
		return "", nil, rterrors.New("bus.NATSBus.BeginRequest", rterrors.KindQueueFull, "too many pending requests")
	}
	id := newRequestID()
	reply := make(chan Message, 1)
	b.pending[id] = &pendingRequest{id: id, deadline: time.Now().Add(b.reqTimeout), reply: reply}
	return id, reply, nil
}

// Resolve delivers msg as the reply to a previously begun request.
func (b *NATSBus) Resolve(id string, msg Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.pending[id]
	if !ok {
		return rterrors.New("bus.NATSBus.Resolve", rterrors.KindInvalidValue, "unknown or expired request").WithID(id)
	}
	delete(b.pending, id)
	req.reply <- msg
	close(req.reply)
	return nil
}

func (b *NATSBus) expireLocked() {
	now := time.Now()
	for id, req := range b.pending {
		if now.After(req.deadline) {
			close(req.reply)
			delete(b.pending, id)
		}
	}
}

// Close drains all subscriptions and closes the underlying connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	for _, s := range b.subs {
		_ = s.Unsubscribe()
	}
	b.subs = make(map[string]*nats.Subscription)
	b.mu.Unlock()
	b.conn.Close()
	return nil
}
