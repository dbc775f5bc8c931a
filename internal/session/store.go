// Package session persists per-session booking state between pipeline runs.
package session

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/wolfman30/astracare/internal/agent"
)

// ErrNotFound is returned when a session id has no stored state.
var ErrNotFound = errors.New("session: not found")

// Store loads and saves working state by session id.
type Store interface {
	Load(ctx context.Context, id string) (agent.State, error)
	Save(ctx context.Context, id string, state agent.State) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh session id.
func NewID() string {
	return "sess-" + uuid.NewString()
}

// ValidID reports whether id has the shape NewID produces.
func ValidID(id string) bool {
	rest, ok := strings.CutPrefix(id, "sess-")
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil
}
