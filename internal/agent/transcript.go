package agent

import (
	"fmt"
	"strings"
	"time"
)

const slotLayout = "Mon Jan 2 at 3:04 PM MST"

// Report carries each stage's outcome into the composer.
type Report struct {
	Signals     Signals
	Suggestions []Suggestion
	Schedule    ScheduleOutcome
	// KeptDraft is the previous draft still held when Scheduling produced
	// nothing new.
	KeptDraft *DraftAppointment
}

// NewMessage builds a transcript entry for position pos (zero-based). Ids are
// zero-padded positions, so they are unique within a transcript and sort in
// causal order.
func NewMessage(pos int, role Role, text string, now time.Time) Message {
	return Message{
		ID:        fmt.Sprintf("msg-%06d-%s", pos+1, strings.ToLower(role.String())),
		Role:      role,
		Text:      text,
		Timestamp: now.UTC(),
	}
}

// AppendMessage returns a copy of s with one message appended.
func AppendMessage(s State, role Role, text string, now time.Time) State {
	out := s.Clone()
	out.Transcript = append(out.Transcript, NewMessage(len(out.Transcript), role, text, now))
	return out
}

// Compose appends the Triage, Matchmaker, Scheduling and Concierge messages
// for one run to a copy of transcript.
func Compose(s Settings, transcript []Message, r Report, dir Directory, now time.Time) []Message {
	out := append(make([]Message, 0, len(transcript)+4), transcript...)
	add := func(role Role, text string) {
		out = append(out, NewMessage(len(out), role, text, now))
	}
	add(RoleTriage, triageText(r.Signals))
	add(RoleMatchmaker, matchmakerText(s, r.Suggestions, dir))
	add(RoleScheduling, schedulingText(r))
	add(RoleConcierge, conciergeText(r))
	return out
}

func triageText(sig Signals) string {
	specialty := "no specialty yet"
	if sig.Specialty != "" {
		specialty = "specialty " + string(sig.Specialty)
	}
	channel := "any visit channel"
	if sig.Channel != "" {
		channel = string(sig.Channel) + " visit"
	}
	timing := "flexible timing"
	if sig.TimeOfDay != "" {
		timing = strings.ToLower(string(sig.TimeOfDay)) + " preferred"
	}
	return fmt.Sprintf("Signals resolved: %s, %s, %s urgency, %s.", specialty, channel, sig.Urgency, timing)
}

func matchmakerText(s Settings, suggestions []Suggestion, dir Directory) string {
	if len(suggestions) == 0 {
		return "No providers in the network matched this request yet."
	}
	names := make([]string, len(suggestions))
	for i, sg := range suggestions {
		names[i] = providerName(dir, sg.ProviderID)
	}
	top := suggestions[0]
	var b strings.Builder
	fmt.Fprintf(&b, "Shortlisted %d provider", len(suggestions))
	if len(suggestions) != 1 {
		b.WriteString("s")
	}
	fmt.Fprintf(&b, ". Top match: %s (%.0f%% confidence). %s", names[0], top.Confidence(s.DefaultConfidence)*100, top.Rationale)
	if len(names) > 1 {
		fmt.Fprintf(&b, " Also considered: %s.", strings.Join(names[1:], ", "))
	}
	return b.String()
}

func schedulingText(r Report) string {
	out := r.Schedule
	switch out.Status {
	case ScheduleHeld:
		d := out.Draft
		text := fmt.Sprintf("Holding %s (%s) with %s.", d.Start.Format(slotLayout), d.Channel, out.ProviderName)
		if len(out.Relaxed) > 0 {
			labels := make([]string, len(out.Relaxed))
			for i, c := range out.Relaxed {
				labels[i] = c.label()
			}
			text += fmt.Sprintf(" Nothing fit every preference, so I relaxed %s.", strings.Join(labels, " and then "))
		}
		return text
	case ScheduleNoSlots:
		text := fmt.Sprintf("%s has no open slots right now.", out.ProviderName)
		if r.KeptDraft != nil {
			text += " Your earlier hold stays in place."
		}
		return text
	default:
		text := "No slot held because there is no provider match yet."
		if r.KeptDraft != nil {
			text += " Your earlier hold stays in place."
		}
		return text
	}
}

func conciergeText(r Report) string {
	switch {
	case r.Schedule.Status == ScheduleHeld:
		return "Draft on hold. Confirm it to lock the appointment, or send a new instruction for alternatives."
	case len(r.Suggestions) == 0:
		return "Could you tell me more? Share your symptoms, the kind of specialist you want, or how soon you need to be seen."
	default:
		return "I'll keep watching for openings. Try another channel or time of day, or pick a different provider from the shortlist."
	}
}

func providerName(dir Directory, id string) string {
	if dir != nil {
		if p, ok := dir.Lookup(id); ok && p.Name != "" {
			return p.Name
		}
	}
	return id
}
