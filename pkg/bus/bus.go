package bus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for hand-off and document lifecycle events.
const (
	SubjectSessionCreated    = "scribed.handoff.created"
	SubjectSessionCompleted  = "scribed.handoff.completed"
	SubjectSessionFailed     = "scribed.handoff.failed"
	SubjectSessionExpired    = "scribed.handoff.expired"
	SubjectDocumentGenerated = "scribed.documents.generated"
)

// Bus wraps a NATS JetStream connection for publishing hand-off lifecycle events.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New creates a Bus connected to the provided NATS endpoint.
func New(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	return &Bus{conn: nc, js: js}, nil
}

// Close shuts down the underlying NATS connection.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Event is the envelope published for every lifecycle change.
type Event struct {
	Subject   string         `json:"-"`
	SessionID string         `json:"session_id,omitempty"`
	OwnerID   string         `json:"owner_id,omitempty"`
	At        time.Time      `json:"at"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Publish encodes the event as JSON and publishes it to its subject.
// Callers treat event delivery as fire-and-forget; a nil Bus is an error the
// caller is expected to ignore.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	if b == nil {
		return errors.New("nil bus")
	}
	if ev.Subject == "" {
		return errors.New("event subject required")
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = b.js.Publish(ev.Subject, data, nats.Context(ctx))
	return err
}
