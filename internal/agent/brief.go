package agent

import (
	"strings"
	"time"
)

// QuickPrompts are canned example requests offered to new sessions.
var QuickPrompts = []string{
	"I need a virtual follow-up for my heart check this week.",
	"My child has a fever, who is available tomorrow morning?",
	"Find a dermatologist for a new rash, earliest possible slot.",
}

const defaultBrief = "Coordinate a doctor visit soon."

// ComposeBrief renders the dispatch message the booking composer sends for
// the current preferences plus free-form notes.
func ComposeBrief(sig Signals, notes string) string {
	parts := []string{"Please coordinate a doctor visit."}
	if sig.Specialty != "" {
		parts = append(parts, "Specialty focus: "+string(sig.Specialty)+".")
	}
	if sig.Channel != "" {
		parts = append(parts, "Channel preference: "+string(sig.Channel)+".")
	}
	if sig.Urgency != "" {
		parts = append(parts, "Urgency level: "+string(sig.Urgency)+".")
	}
	if sig.TimeOfDay != "" {
		parts = append(parts, "Prefer "+strings.ToLower(string(sig.TimeOfDay))+".")
	}
	if notes = strings.TrimSpace(notes); notes != "" {
		parts = append(parts, "Context: "+notes)
	}
	if len(parts) == 1 {
		return defaultBrief
	}
	return strings.Join(parts, " ")
}

// BriefRequest wraps ComposeBrief into a pipeline request. The notes also
// override the symptoms so scoring sees them verbatim.
func BriefRequest(sig Signals, notes string) Request {
	return Request{
		Message:   ComposeBrief(sig, notes),
		Overrides: Signals{Symptoms: strings.TrimSpace(notes)},
	}
}

// Summary is the dashboard metrics row for a session.
type Summary struct {
	AgentMatches   int           `json:"agent_matches"`
	HeldSlots      int           `json:"held_slots"`
	UpcomingVisits int           `json:"upcoming_visits"`
	LastAgentRun   time.Time     `json:"last_agent_run"`
	SinceLastRun   time.Duration `json:"since_last_run_ns,omitempty"`
}

// Summarize counts the session's shortlist, held draft and upcoming visits,
// and reports when the latest agent message was written.
func Summarize(s State, upcomingVisits int, now time.Time) Summary {
	out := Summary{
		AgentMatches:   len(s.Suggestions),
		UpcomingVisits: upcomingVisits,
	}
	if s.Draft != nil {
		out.HeldSlots = 1
	}
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		m := s.Transcript[i]
		if m.Role.IsAgent() {
			out.LastAgentRun = m.Timestamp
			if d := now.Sub(m.Timestamp); d > 0 {
				out.SinceLastRun = d
			}
			break
		}
	}
	return out
}
