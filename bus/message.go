// Package bus implements the CI-to-CI message transport contract (spec
// §3, §4.F): one Transport interface, an in-process MockBus and a
// nats-io/nats.go-backed NATSBus, plus pending-request timeout tracking.
// Grounded on core/interfaces.go's small-interface-multiple-implementation
// style (Logger/ComponentAwareLogger, AIClient).
package bus

import (
	"time"

	"github.com/google/uuid"

	json "github.com/goccy/go-json"
)

// Metadata carries optional per-message hints (spec §6).
type Metadata struct {
	Priority  string `json:"priority,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

// Message is the wire shape exchanged between CIs (spec §3/§6).
type Message struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// wireMessage mirrors Message but pins Timestamp to spec §6's
// unix_seconds integer shape rather than encoding/json's default RFC3339
// string rendering of time.Time.
type wireMessage struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp int64     `json:"timestamp"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Metadata  *Metadata `json:"metadata,omitempty"`
}

// MarshalJSON renders Timestamp as unix_seconds per spec §6's canonical
// inter-CI message shape.
func (m Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{
		From:      m.From,
		To:        m.To,
		Timestamp: m.Timestamp.Unix(),
		Type:      m.Type,
		Content:   m.Content,
		ThreadID:  m.ThreadID,
		Metadata:  m.Metadata,
	})
}

// UnmarshalJSON parses a unix_seconds Timestamp back into a time.Time.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.From = w.From
	m.To = w.To
	m.Timestamp = time.Unix(w.Timestamp, 0)
	m.Type = w.Type
	m.Content = w.Content
	m.ThreadID = w.ThreadID
	m.Metadata = w.Metadata
	return nil
}

// NewMessage stamps from/to/type/content with the current time.
func NewMessage(from, to, msgType, content string) Message {
	return Message{From: from, To: to, Timestamp: time.Now(), Type: msgType, Content: content}
}

// WithThread attaches a thread ID, returning the same message for chaining.
func (m Message) WithThread(threadID string) Message {
	m.ThreadID = threadID
	return m
}

// Handler processes one delivered message.
type Handler func(Message)

// Transport is the delivery contract every bus implementation satisfies:
// addressed delivery, role broadcast, and subscription registration.
type Transport interface {
	Send(msg Message) error
	Broadcast(from, roleFilter string, msg Message) error
	Subscribe(name string, h Handler) (unsubscribe func(), err error)
	Close() error
}

// pendingCap bounds how many outstanding requests the bus tracks at once
// (spec §4.F); default request timeout per spec §6.
const (
	defaultPendingCap     = 64
	defaultRequestTimeout = 30 * time.Second
)

// pendingRequest tracks one outstanding request awaiting a reply.
type pendingRequest struct {
	id       string
	deadline time.Time
	reply    chan Message
}

// newRequestID generates a unique pending-request correlation ID.
func newRequestID() string {
	return uuid.NewString()
}
