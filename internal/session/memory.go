package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfman30/astracare/internal/agent"
)

type memoryEntry struct {
	state   agent.State
	expires time.Time
}

// MemoryStore is an in-process Store used when Redis is not configured and
// in tests. Entries expire after the TTL like their Redis counterparts.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{entries: map[string]memoryEntry{}, ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, id string, state agent.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{state: state.Clone(), expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (agent.State, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok || !s.now().Before(entry.expires) {
		return agent.State{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entry.state.Clone(), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}
