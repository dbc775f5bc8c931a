// Package appointments stores confirmed visits and converts held drafts into
// them.
package appointments

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/catalog"
)

var (
	// ErrNotFound is returned when an appointment id is unknown.
	ErrNotFound = errors.New("appointments: not found")
	// ErrAlreadyExists is returned by Create when the id is already stored.
	ErrAlreadyExists = errors.New("appointments: already exists")
)

// Appointment is a visit on the timeline.
type Appointment struct {
	ID         string                  `json:"id"`
	SessionID  string                  `json:"session_id"`
	ProviderID string                  `json:"provider_id"`
	Start      time.Time               `json:"start"`
	End        time.Time               `json:"end"`
	Channel    catalog.Channel         `json:"channel"`
	Reason     string                  `json:"reason"`
	Status     agent.AppointmentStatus `json:"status"`
	Meta       map[string]string       `json:"meta,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// Upcoming reports whether the visit has not started yet.
func (a Appointment) Upcoming(now time.Time) bool {
	return !a.Start.Before(now)
}

// Repository persists appointments. List returns newest first; an empty
// sessionID lists or counts every session.
type Repository interface {
	Create(ctx context.Context, appt Appointment) error
	Get(ctx context.Context, id string) (Appointment, error)
	List(ctx context.Context, sessionID string, limit int) ([]Appointment, error)
	CountUpcoming(ctx context.Context, sessionID string, now time.Time) (int, error)
}

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 100

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > DefaultListLimit {
		return DefaultListLimit
	}
	return limit
}
