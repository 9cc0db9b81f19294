package sink

import (
	"context"
	"encoding/json"

	nats "github.com/nats-io/nats.go"
	"github.com/rzbill/turnstile/internal/gate"
)

// NATS publishes admissions as JSON messages on
// "<subjectPrefix>.<gate>", one message per admission.
type NATS struct {
	conn          *nats.Conn
	subjectPrefix string
	ownsConn      bool
}

// NewNATS wraps an existing connection.
func NewNATS(conn *nats.Conn, subjectPrefix string) *NATS {
	return &NATS{conn: conn, subjectPrefix: subjectPrefix}
}

// ConnectNATS dials url and returns a NATS sink owning the connection.
func ConnectNATS(url, subjectPrefix string) (*NATS, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	return &NATS{conn: conn, subjectPrefix: subjectPrefix, ownsConn: true}, nil
}

type natsAdmission struct {
	Gate         string            `json:"gate"`
	ID           string            `json:"id"`
	Key          string            `json:"key"`
	Payload      []byte            `json:"payload,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
	EnqueuedAtMs int64             `json:"enqueued_at_ms"`
}

// Publish sends each admission on the gate's subject, preserving order.
func (n *NATS) Publish(_ context.Context, gateName string, admissions []gate.Admission) error {
	subject := n.subjectPrefix + "." + gateName
	for _, adm := range admissions {
		b, err := json.Marshal(natsAdmission{
			Gate:         gateName,
			ID:           adm.ID.String(),
			Key:          adm.Key,
			Payload:      adm.Payload,
			Headers:      adm.Headers,
			EnqueuedAtMs: adm.EnqueuedAtMs,
		})
		if err != nil {
			return err
		}
		if err := n.conn.Publish(subject, b); err != nil {
			return err
		}
	}
	return n.conn.Flush()
}

// Close flushes and, when the sink owns the connection, closes it.
func (n *NATS) Close() error {
	if n.ownsConn {
		n.conn.Close()
	}
	return nil
}
