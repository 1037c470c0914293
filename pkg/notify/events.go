// Package notify announces content changes made in the admin area to
// anything listening: a NATS subject tree and optional chat webhooks.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Op is the kind of change applied to a record.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Event describes one successful admin write.
type Event struct {
	// ID is the unique event identifier
	ID string `json:"id"`

	// Collection is "speakers" or "partners"
	Collection string `json:"collection"`

	Op       Op     `json:"op"`
	RecordID string `json:"record_id"`

	// Title is the record name, empty for deletes
	Title string `json:"title,omitempty"`

	// Actor is the email of the administrator who made the change
	Actor string `json:"actor,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// Summary is a one-line human description of the event.
func (e *Event) Summary() string {
	name := e.Title
	if name == "" {
		name = e.RecordID
	}
	s := fmt.Sprintf("%s %s %q", singular(e.Collection), e.Op, name)
	if e.Actor != "" {
		s += " by " + e.Actor
	}
	return s
}

func singular(collection string) string {
	if n := len(collection); n > 1 && collection[n-1] == 's' {
		return collection[:n-1]
	}
	return collection
}

// Publisher publishes events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Adapter delivers events to a human-facing channel.
type Adapter interface {
	Name() string
	Send(ctx context.Context, event *Event) error
	Close() error
}

// Manager fans an event out to the publisher and every adapter.
type Manager struct {
	adapters  []Adapter
	publisher Publisher
	logger    *zap.Logger
}

// NewManager creates a notification manager. publisher may be nil.
func NewManager(publisher Publisher, logger *zap.Logger, adapters ...Adapter) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		adapters:  adapters,
		publisher: publisher,
		logger:    logger.Named("notify"),
	}
}

// Enabled reports whether any destination is configured.
func (m *Manager) Enabled() bool {
	return m != nil && (m.publisher != nil || len(m.adapters) > 0)
}

// Notify delivers event everywhere. Every destination is attempted; the
// last failure is returned.
func (m *Manager) Notify(ctx context.Context, event *Event) error {
	if !m.Enabled() {
		return nil
	}
	var lastErr error
	if m.publisher != nil {
		if err := m.publisher.Publish(ctx, event); err != nil {
			lastErr = fmt.Errorf("publish event: %w", err)
		}
	}
	for _, adapter := range m.adapters {
		if err := adapter.Send(ctx, event); err != nil {
			lastErr = fmt.Errorf("%s: %w", adapter.Name(), err)
		}
	}
	if lastErr == nil {
		m.logger.Debug("change announced", zap.String("summary", event.Summary()))
	}
	return lastErr
}

// Close closes all adapters and the publisher.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	var lastErr error
	for _, adapter := range m.adapters {
		if err := adapter.Close(); err != nil {
			lastErr = err
		}
	}
	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// JSON encodes the event.
func (e *Event) JSON() []byte {
	data, _ := json.Marshal(e)
	return data
}

// ParseEvent decodes an event published by JSON.
func ParseEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
