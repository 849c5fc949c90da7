// Package notify publishes job status transitions so external consumers
// (desktop notifiers, chat bridges) can react without polling the job API.
// Publishing is best-effort: a broken broker never fails a run.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/stubborncoder/vdocs/internal/logfields"
)

// Event is one published job transition.
type Event struct {
	JobID     string    `json:"job_id"`
	UserID    string    `json:"user_id,omitempty"`
	VideoName string    `json:"video_name,omitempty"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	DocID     string    `json:"doc_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher ships job transition events somewhere.
type Publisher interface {
	Publish(event Event) error
	Close() error
}

// NATSPublisher publishes events to a NATS subject, one sub-subject per
// user ({subject}.{user_id}).
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to the broker.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	slog.Info("NATS publisher initialized", "url", url, "subject", subject)
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

// Publish sends one event. The subject carries the user id so consumers
// can subscribe per user.
func (p *NATSPublisher) Publish(event Event) error {
	event.Timestamp = time.Now().UTC()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.subject
	if event.UserID != "" {
		subject = p.subject + "." + event.UserID
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("published job event",
		logfields.JobID(event.JobID),
		logfields.JobStatus(event.Status))
	return nil
}

// Close closes the NATS connection.
func (p *NATSPublisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
