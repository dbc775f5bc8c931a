// Package events writes versioned domain events to the transactional outbox.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvalidEvent marks an event that cannot be enveloped.
var ErrInvalidEvent = errors.New("events: invalid event")

// Event is a versioned domain event.
type Event interface {
	EventType() string
}

// Envelope is the outbox row payload: the event plus routing metadata.
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	EventType     string          `json:"event_type"`
	Aggregate     string          `json:"aggregate"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into dst after checking the event type.
func (e Envelope) Decode(dst Event) error {
	if dst.EventType() != e.EventType {
		return fmt.Errorf("%w: envelope holds %s, not %s", ErrInvalidEvent, e.EventType, dst.EventType())
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("events: decode %s: %w", e.EventType, err)
	}
	return nil
}

type Option func(*Envelope)

// WithEventID pins the event id; the zero uuid is ignored.
func WithEventID(id uuid.UUID) Option {
	return func(e *Envelope) {
		if id != uuid.Nil {
			e.EventID = id
		}
	}
}

// WithOccurredAt stamps the envelope with the domain time of the event.
func WithOccurredAt(ts time.Time) Option {
	return func(e *Envelope) {
		if !ts.IsZero() {
			e.OccurredAt = ts.UTC()
		}
	}
}

var nowFunc = time.Now

// NewEnvelope wraps evt for aggregate. correlationID ties the event back to
// the session that caused it.
func NewEnvelope(aggregate, correlationID string, evt Event, opts ...Option) (Envelope, error) {
	aggregate = strings.TrimSpace(aggregate)
	switch {
	case aggregate == "":
		return Envelope{}, fmt.Errorf("%w: aggregate required", ErrInvalidEvent)
	case evt == nil:
		return Envelope{}, fmt.Errorf("%w: nil event", ErrInvalidEvent)
	case strings.TrimSpace(evt.EventType()) == "":
		return Envelope{}, fmt.Errorf("%w: event type missing", ErrInvalidEvent)
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", evt.EventType(), err)
	}
	env := Envelope{
		EventID:       uuid.New(),
		EventType:     strings.TrimSpace(evt.EventType()),
		Aggregate:     aggregate,
		OccurredAt:    nowFunc().UTC(),
		CorrelationID: strings.TrimSpace(correlationID),
		Payload:       payload,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&env)
		}
	}
	return env, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Append writes evt to the outbox through exec. Pass the transaction that
// made the change so the event commits or rolls back with it.
func Append(ctx context.Context, exec execer, aggregate, correlationID string, evt Event, opts ...Option) (Envelope, error) {
	if exec == nil {
		return Envelope{}, fmt.Errorf("events: exec required")
	}
	env, err := NewEnvelope(aggregate, correlationID, evt, opts...)
	if err != nil {
		return Envelope{}, err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal envelope: %w", err)
	}
	query := `
		INSERT INTO outbox (id, aggregate, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := exec.Exec(ctx, query, env.EventID, env.Aggregate, env.EventType, data, env.OccurredAt); err != nil {
		return Envelope{}, fmt.Errorf("events: append: %w", err)
	}
	return env, nil
}
