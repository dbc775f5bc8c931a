package agent

import (
	"strings"
	"time"

	"github.com/wolfman30/astracare/internal/catalog"
)

// ScheduleStatus describes what the Slot Selector did in one run.
type ScheduleStatus int

const (
	// ScheduleHeld means a new draft was produced.
	ScheduleHeld ScheduleStatus = iota + 1
	// ScheduleNoSuggestion means the shortlist was empty.
	ScheduleNoSuggestion
	// ScheduleNoSlots means the top provider has no upcoming slots.
	ScheduleNoSlots
)

// ScheduleOutcome is the Slot Selector's result. Draft is nil unless Status
// is ScheduleHeld; the caller keeps any previous draft in that case.
type ScheduleOutcome struct {
	Status       ScheduleStatus
	ProviderID   string
	ProviderName string
	Draft        *DraftAppointment
	Relaxed      []Constraint
}

type searchPass struct {
	channel   bool
	timeOfDay bool
}

// Passes in relaxation order: both constraints, then time of day relaxed,
// then channel relaxed as well.
var searchPasses = []searchPass{
	{channel: true, timeOfDay: true},
	{channel: true, timeOfDay: false},
	{channel: false, timeOfDay: false},
}

// Schedule picks the first upcoming slot of the top suggestion's provider
// that satisfies the signals, relaxing time of day before channel.
func Schedule(s Settings, sig Signals, top *Suggestion, dir Directory, now time.Time) (ScheduleOutcome, error) {
	if top == nil {
		return ScheduleOutcome{Status: ScheduleNoSuggestion}, nil
	}
	p, ok := dir.Lookup(top.ProviderID)
	if !ok {
		return ScheduleOutcome{}, &IntegrityError{Ref: "suggestion " + top.ID, ProviderID: top.ProviderID}
	}
	out := ScheduleOutcome{ProviderID: p.ID, ProviderName: p.Name}

	upcoming := p.Upcoming(now)
	if len(upcoming) == 0 {
		out.Status = ScheduleNoSlots
		return out, nil
	}

	for _, pass := range searchPasses {
		for _, slot := range upcoming {
			if pass.channel && !slotAccepts(sig.Channel, slot, p) {
				continue
			}
			if pass.timeOfDay && !inBucket(s, sig.TimeOfDay, slot.Start) {
				continue
			}
			out.Status = ScheduleHeld
			out.Relaxed = relaxedBy(pass, sig)
			out.Draft = buildDraft(s, sig, p, slot, out.Relaxed)
			return out, nil
		}
	}
	// The final pass is unconstrained, so a non-empty upcoming list always
	// returns above.
	out.Status = ScheduleNoSlots
	return out, nil
}

func inBucket(s Settings, t TimeOfDay, start time.Time) bool {
	if t == "" {
		return true
	}
	r, ok := s.TimeBuckets[t]
	if !ok {
		return true
	}
	return r.Contains(start)
}

// relaxedBy lists the specified constraints a pass ignores.
func relaxedBy(pass searchPass, sig Signals) []Constraint {
	var out []Constraint
	if !pass.timeOfDay && sig.TimeOfDay != "" {
		out = append(out, ConstraintTimeOfDay)
	}
	if !pass.channel && sig.Channel != "" {
		out = append(out, ConstraintChannel)
	}
	return out
}

func buildDraft(s Settings, sig Signals, p catalog.Provider, slot catalog.Slot, relaxed []Constraint) *DraftAppointment {
	reason := strings.TrimSpace(sig.Symptoms)
	if reason == "" {
		reason = s.DefaultReason
	}
	meta := map[string]string{
		"Held by":  RoleScheduling.String(),
		"Provider": p.Name,
	}
	if len(relaxed) > 0 {
		labels := make([]string, len(relaxed))
		for i, c := range relaxed {
			labels[i] = c.label()
		}
		meta["Relaxed"] = strings.Join(labels, ", ")
	}
	return &DraftAppointment{
		ProviderID: p.ID,
		Start:      slot.Start,
		End:        slot.End,
		Channel:    slotChannel(sig.Channel, slot, p),
		Reason:     reason,
		Status:     StatusPending,
		Relaxed:    relaxed,
		Meta:       meta,
	}
}
