// Package events publishes pipeline run lifecycle events to NATS. Event
// delivery is best-effort; a nil publisher disables it entirely.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event names emitted over the run lifecycle.
const (
	EventRunStarted    = "run_started"
	EventStageFinished = "stage_finished"
	EventRunFinished   = "run_finished"
)

// Envelope is the JSON wire format for published events.
type Envelope struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// Publisher sends run events to a NATS subject.
type Publisher struct {
	conn    *nats.Conn
	subject string
}

// Connect establishes the NATS connection. The daemon treats a failure here
// as fatal at startup; afterwards publishing is best-effort.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("docpub"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	slog.Info("Connected to NATS", "url", url, "subject", subject)
	return &Publisher{conn: conn, subject: subject}, nil
}

// Publish sends one event. Errors are logged, never propagated; a nil
// publisher is a no-op.
func (p *Publisher) Publish(event string, data any) {
	if p == nil || p.conn == nil {
		return
	}
	payload, err := json.Marshal(Envelope{Event: event, Timestamp: time.Now().UTC(), Data: data})
	if err != nil {
		slog.Warn("Failed to marshal event", "event", event, "error", err)
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		slog.Warn("Failed to publish event", "event", event, "subject", p.subject, "error", err)
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
