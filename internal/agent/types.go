// Package agent implements the booking decision pipeline: Triage resolves
// booking signals from free text, Matchmaker ranks catalog providers,
// Scheduling holds a draft slot and the composer explains each stage in an
// append-only transcript.
//
// Every stage is a pure function over plain values. Pipeline.Run composes
// them and returns a new State without touching the one it was given.
package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/astracare/internal/catalog"
)

// Urgency expresses how soon the patient needs to be seen.
type Urgency string

const (
	UrgencyRoutine Urgency = "Routine"
	UrgencySoon    Urgency = "Soon"
	UrgencyUrgent  Urgency = "Urgent"
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool {
	return u == UrgencyRoutine || u == UrgencySoon || u == UrgencyUrgent
}

// ParseUrgency matches an urgency case-insensitively.
func ParseUrgency(v string) (Urgency, bool) {
	for _, u := range []Urgency{UrgencyRoutine, UrgencySoon, UrgencyUrgent} {
		if strings.EqualFold(strings.TrimSpace(v), string(u)) {
			return u, true
		}
	}
	return "", false
}

// TimeOfDay is a coarse preferred part of the day.
type TimeOfDay string

const (
	Mornings   TimeOfDay = "Mornings"
	Afternoons TimeOfDay = "Afternoons"
	Evenings   TimeOfDay = "Evenings"
)

// Valid reports whether t is a known time-of-day bucket.
func (t TimeOfDay) Valid() bool {
	return t == Mornings || t == Afternoons || t == Evenings
}

// ParseTimeOfDay matches a bucket case-insensitively, accepting singular forms.
func ParseTimeOfDay(v string) (TimeOfDay, bool) {
	v = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(v)), "s")
	for _, t := range []TimeOfDay{Mornings, Afternoons, Evenings} {
		if strings.TrimSuffix(strings.ToLower(string(t)), "s") == v {
			return t, true
		}
	}
	return "", false
}

// Signals are booking preferences. As a pipeline input they are explicit
// overrides; in State they are the resolved signal set for the latest run.
// The zero value of each field means unset.
type Signals struct {
	Specialty catalog.Specialty `json:"specialty,omitempty"`
	Channel   catalog.Channel   `json:"channel,omitempty"`
	Urgency   Urgency           `json:"urgency,omitempty"`
	TimeOfDay TimeOfDay         `json:"date_flexibility,omitempty"`
	Symptoms  string            `json:"symptoms,omitempty"`
}

// IsZero reports whether no field is set.
func (s Signals) IsZero() bool {
	return s == Signals{}
}

// overlay returns s with every valid field of top written over it.
func (s Signals) overlay(top Signals) Signals {
	if top.Specialty.Valid() {
		s.Specialty = top.Specialty
	}
	if top.Channel.Valid() {
		s.Channel = top.Channel
	}
	if top.Urgency.Valid() {
		s.Urgency = top.Urgency
	}
	if top.TimeOfDay.Valid() {
		s.TimeOfDay = top.TimeOfDay
	}
	if sym := strings.TrimSpace(top.Symptoms); sym != "" {
		s.Symptoms = sym
	}
	return s
}

// Role identifies who authored a transcript message. The set is closed.
type Role int

const (
	RoleUser Role = iota + 1
	RoleTriage
	RoleMatchmaker
	RoleScheduling
	RoleConcierge
)

var roleNames = map[Role]string{
	RoleUser:       "User",
	RoleTriage:     "Triage",
	RoleMatchmaker: "Matchmaker",
	RoleScheduling: "Scheduling",
	RoleConcierge:  "Concierge",
}

// Roles lists every role in pipeline order.
var Roles = []Role{RoleUser, RoleTriage, RoleMatchmaker, RoleScheduling, RoleConcierge}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// IsAgent reports whether the role belongs to one of the pipeline agents.
func (r Role) IsAgent() bool {
	return r.Valid() && r != RoleUser
}

// ParseRole is the inverse of String.
func ParseRole(v string) (Role, error) {
	for _, r := range Roles {
		if strings.EqualFold(roleNames[r], strings.TrimSpace(v)) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("agent: unknown role %q", v)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("agent: cannot encode %s", r)
	}
	return []byte(roleNames[r]), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Message is a single transcript entry.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MatchedSlot is a provider slot annotated with how well it fits the signals.
type MatchedSlot struct {
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	Channel    catalog.Channel `json:"channel,omitempty"`
	Confidence float64         `json:"confidence"`
}

// ScoreBreakdown holds the unweighted sub-scores behind a composite score.
type ScoreBreakdown struct {
	Specialty float64 `json:"specialty"`
	Focus     float64 `json:"focus"`
	Channel   float64 `json:"channel"`
	Urgency   float64 `json:"urgency"`
	Rating    float64 `json:"rating"`
}

// Suggestion is one shortlisted provider.
type Suggestion struct {
	ID           string         `json:"id"`
	ProviderID   string         `json:"provider_id"`
	Rationale    string         `json:"rationale"`
	Score        float64        `json:"score"`
	Breakdown    ScoreBreakdown `json:"breakdown"`
	MatchedSlots []MatchedSlot  `json:"matched_slots"`
}

// Confidence is the first matched slot's confidence, or fallback when the
// suggestion carries no slots. The result is a [0,1] fraction.
func (s Suggestion) Confidence(fallback float64) float64 {
	if len(s.MatchedSlots) == 0 {
		return fallback
	}
	return s.MatchedSlots[0].Confidence
}

// Constraint names a slot-selection constraint that can be relaxed.
type Constraint string

const (
	ConstraintTimeOfDay Constraint = "time_of_day"
	ConstraintChannel   Constraint = "channel"
)

func (c Constraint) label() string {
	if c == ConstraintTimeOfDay {
		return "time of day"
	}
	return string(c)
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusConfirmed AppointmentStatus = "Confirmed"
)

// DraftAppointment is a held, unconfirmed slot.
type DraftAppointment struct {
	ProviderID string            `json:"provider_id"`
	Start      time.Time         `json:"start"`
	End        time.Time         `json:"end"`
	Channel    catalog.Channel   `json:"channel"`
	Reason     string            `json:"reason"`
	Status     AppointmentStatus `json:"status"`
	Relaxed    []Constraint      `json:"relaxed,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
}

func (d *DraftAppointment) clone() *DraftAppointment {
	if d == nil {
		return nil
	}
	out := *d
	if d.Relaxed != nil {
		out.Relaxed = append(make([]Constraint, 0, len(d.Relaxed)), d.Relaxed...)
	}
	if d.Meta != nil {
		out.Meta = make(map[string]string, len(d.Meta))
		for k, v := range d.Meta {
			out.Meta[k] = v
		}
	}
	return &out
}

// State is the working state of one booking session.
type State struct {
	Signals     Signals           `json:"preferences"`
	Suggestions []Suggestion      `json:"suggestions"`
	Transcript  []Message         `json:"transcript"`
	Draft       *DraftAppointment `json:"drafted_appointment,omitempty"`
}

// Clone returns a deep copy of s. Nil collections stay nil.
func (s State) Clone() State {
	out := State{Signals: s.Signals, Draft: s.Draft.clone()}
	if s.Transcript != nil {
		out.Transcript = append(make([]Message, 0, len(s.Transcript)+5), s.Transcript...)
	}
	if s.Suggestions != nil {
		out.Suggestions = make([]Suggestion, len(s.Suggestions))
		for i, sg := range s.Suggestions {
			if sg.MatchedSlots != nil {
				sg.MatchedSlots = append(make([]MatchedSlot, 0, len(sg.MatchedSlots)), sg.MatchedSlots...)
			}
			out.Suggestions[i] = sg
		}
	}
	return out
}

// WithSignals returns a copy of s with updates written over its signals. An
// empty update resets the signals entirely, matching the composer's reset.
func (s State) WithSignals(updates Signals) State {
	out := s.Clone()
	if updates.IsZero() {
		out.Signals = Signals{}
		return out
	}
	out.Signals = out.Signals.overlay(updates)
	return out
}

// ResetSignals returns a copy of s with every signal cleared.
func (s State) ResetSignals() State {
	return s.WithSignals(Signals{})
}

// WithoutDraft returns a copy of s with the held draft cleared.
func (s State) WithoutDraft() State {
	out := s.Clone()
	out.Draft = nil
	return out
}

// Request is one pipeline invocation.
type Request struct {
	Message   string  `json:"message"`
	Overrides Signals `json:"overrides"`
}

// ParseSignals builds a signal set from loosely formatted strings, as typed on
// a form or command line. Blank fields stay unset; anything else must parse.
func ParseSignals(specialty, channel, urgency, timeOfDay, symptoms string) (Signals, error) {
	var out Signals
	if v := strings.TrimSpace(specialty); v != "" {
		sp, ok := catalog.ParseSpecialty(v)
		if !ok {
			return Signals{}, fmt.Errorf("agent: unknown specialty %q", v)
		}
		out.Specialty = sp
	}
	if v := strings.TrimSpace(channel); v != "" {
		ch, ok := catalog.ParseChannel(v)
		if !ok {
			return Signals{}, fmt.Errorf("agent: unknown channel %q", v)
		}
		out.Channel = ch
	}
	if v := strings.TrimSpace(urgency); v != "" {
		u, ok := ParseUrgency(v)
		if !ok {
			return Signals{}, fmt.Errorf("agent: unknown urgency %q", v)
		}
		out.Urgency = u
	}
	if v := strings.TrimSpace(timeOfDay); v != "" {
		t, ok := ParseTimeOfDay(v)
		if !ok {
			return Signals{}, fmt.Errorf("agent: unknown time of day %q", v)
		}
		out.TimeOfDay = t
	}
	out.Symptoms = strings.TrimSpace(symptoms)
	return out, nil
}
