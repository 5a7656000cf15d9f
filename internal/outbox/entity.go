// Package outbox bridges the gap between committing a transaction and
// publishing its events. An Entry is staged in the same transaction as
// the state change it announces; after commit the event is published
// directly and the entry marked SENT. Entries that stay PENDING past a
// grace period (process crashed between commit and publish) are
// republished by the Relay. The entry ID doubles as the event envelope
// ID, so a republished event carries the same idempotency token and
// subscribers deduplicate it.
package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"go.botmind.dev/internal/bus"
	"go.botmind.dev/internal/tsid"
)

// Status of an outbox entry.
type Status int

const (
	// StatusPending - entry is committed but its publish is unconfirmed.
	StatusPending Status = 0

	// StatusSent - the event was handed to the bus.
	StatusSent Status = 1
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusSent:
		return "SENT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// Entry is one staged event publish.
type Entry struct {
	ID            string          `bson:"_id" json:"id"`
	Topic         string          `bson:"topic" json:"topic"`
	Payload       json.RawMessage `bson:"payload" json:"payload"`
	CorrelationID string          `bson:"correlation_id" json:"correlation_id"`
	Status        Status          `bson:"status" json:"status"`
	Attempts      int             `bson:"attempts" json:"attempts"`
	CreatedAt     time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at" json:"updated_at"`
}

// NewEntry stages a publish of payload to topic. The payload is
// marshaled immediately so a malformed payload fails before the
// transaction commits.
func NewEntry(topic string, payload any) (*Entry, error) {
	env, err := bus.NewEnvelope(topic, payload)
	if err != nil {
		return nil, err
	}
	return FromEnvelope(env), nil
}

// FromEnvelope stages a publish of an already-built envelope.
func FromEnvelope(env bus.Envelope) *Entry {
	now := time.Now().UTC()
	return &Entry{
		ID:            env.ID,
		Topic:         env.Topic,
		Payload:       env.Payload,
		CorrelationID: env.CorrelationID,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Envelope rebuilds the event envelope for this entry. The envelope ID
// is the entry ID, so retries stay idempotent downstream.
func (e *Entry) Envelope() bus.Envelope {
	publishedAt := e.CreatedAt
	if publishedAt.IsZero() {
		if ts, err := tsid.Timestamp(e.ID); err == nil {
			publishedAt = ts
		}
	}
	return bus.Envelope{
		ID:            e.ID,
		Topic:         e.Topic,
		Payload:       e.Payload,
		CorrelationID: e.CorrelationID,
		PublishedAt:   publishedAt,
	}
}
