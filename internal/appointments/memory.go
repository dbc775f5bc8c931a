package appointments

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps appointments in process when no database is
// configured.
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]Appointment
	order []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: map[string]Appointment{}}
}

func (r *MemoryRepository) Create(_ context.Context, appt Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byID[appt.ID]; dup {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, appt.ID)
	}
	r.byID[appt.ID] = copyAppointment(appt)
	r.order = append(r.order, appt.ID)
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.byID[id]
	if !ok {
		return Appointment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyAppointment(appt), nil
}

func (r *MemoryRepository) List(_ context.Context, sessionID string, limit int) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Appointment, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		appt := r.byID[r.order[i]]
		if sessionID != "" && appt.SessionID != sessionID {
			continue
		}
		out = append(out, copyAppointment(appt))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit = normalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copyAppointment(a Appointment) Appointment {
	if a.Meta != nil {
		meta := make(map[string]string, len(a.Meta))
		for k, v := range a.Meta {
			meta[k] = v
		}
		a.Meta = meta
	}
	return a
}

func (r *MemoryRepository) CountUpcoming(_ context.Context, sessionID string, now time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, appt := range r.byID {
		if (sessionID == "" || appt.SessionID == sessionID) && appt.Upcoming(now) {
			n++
		}
	}
	return n, nil
}
