package agent

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/astracare/internal/catalog"
)

const heartCheck = "I need a virtual follow-up for my heart check this week."

func roles(msgs []Message) []Role {
	out := make([]Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestRunHeartCheck(t *testing.T) {
	p := testPipeline(t)

	got, err := p.Run(State{}, Request{Message: heartCheck})
	require.NoError(t, err)

	assert.Equal(t, Signals{
		Specialty: catalog.SpecialtyCardiology,
		Channel:   catalog.ChannelVirtual,
		Urgency:   UrgencySoon,
		Symptoms:  heartCheck,
	}, got.Signals)

	require.NotEmpty(t, got.Suggestions)
	assert.Equal(t, "card-virtual", got.Suggestions[0].ProviderID)

	require.NotNil(t, got.Draft)
	assert.Equal(t, "card-virtual", got.Draft.ProviderID)
	assert.Equal(t, catalog.ChannelVirtual, got.Draft.Channel)
	assert.Equal(t, at(1, 9, 0), got.Draft.Start)
	assert.Equal(t, StatusPending, got.Draft.Status)
	assert.Equal(t, heartCheck, got.Draft.Reason)

	require.Len(t, got.Transcript, 5)
	assert.Equal(t, Roles, roles(got.Transcript))
	assert.Equal(t, "msg-000001-user", got.Transcript[0].ID)
	assert.Equal(t, "msg-000005-concierge", got.Transcript[4].ID)
	assert.Equal(t, heartCheck, got.Transcript[0].Text)
	for _, m := range got.Transcript {
		assert.Equal(t, testNow, m.Timestamp)
	}
	assert.Contains(t, got.Transcript[1].Text, "specialty Cardiology")
	assert.Contains(t, got.Transcript[2].Text, "Top match: Dr. Ada Vance (")
	assert.Contains(t, got.Transcript[2].Text, "% confidence")
	assert.Contains(t, got.Transcript[2].Text, "Also considered: Dr. Ben Cole.")
	assert.Equal(t, "Holding Tue Mar 10 at 9:00 AM UTC (Virtual) with Dr. Ada Vance.", got.Transcript[3].Text)
	assert.Contains(t, got.Transcript[4].Text, "Confirm it")
}

func TestRunNoKeywordKeepsDraft(t *testing.T) {
	p := testPipeline(t)
	draft := &DraftAppointment{
		ProviderID: "derm",
		Start:      at(0, 18, 0),
		End:        at(0, 18, 30),
		Channel:    catalog.ChannelVirtual,
		Reason:     "rash",
		Status:     StatusPending,
	}
	prev := State{Draft: draft}

	got, err := p.Run(prev, Request{Message: "Hello there"})
	require.NoError(t, err)

	assert.Empty(t, got.Suggestions)
	assert.Equal(t, draft, got.Draft)
	assert.NotSame(t, draft, got.Draft)
	require.Len(t, got.Transcript, 5)
	assert.Contains(t, got.Transcript[2].Text, "No providers")
	assert.Contains(t, got.Transcript[3].Text, "earlier hold stays")
	assert.Contains(t, got.Transcript[4].Text, "Could you tell me more?")
}

func TestRunFocusOnlyTextKeepsDraft(t *testing.T) {
	dir, err := catalog.LoadDefault(testNow)
	require.NoError(t, err)
	p, err := NewPipeline(dir, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)

	first, err := p.Run(State{}, Request{Message: heartCheck})
	require.NoError(t, err)
	require.NotNil(t, first.Draft)

	got, err := p.Run(first.ResetSignals(), Request{Message: "Following up on my hypertension"})
	require.NoError(t, err)
	assert.Empty(t, got.Signals.Specialty)
	assert.Empty(t, got.Suggestions)
	assert.Equal(t, first.Draft, got.Draft)
	assert.Contains(t, got.Transcript[len(got.Transcript)-1].Text, "Could you tell me more?")
}

func TestRunNoSlotsKeepsDraft(t *testing.T) {
	p := testPipeline(t)
	first, err := p.Run(State{}, Request{Message: heartCheck})
	require.NoError(t, err)

	got, err := p.Run(first, Request{Message: "My knee pain is back", Overrides: Signals{Specialty: catalog.SpecialtyOrthopedics}})
	require.NoError(t, err)
	require.NotEmpty(t, got.Suggestions)
	assert.Equal(t, "ortho", got.Suggestions[0].ProviderID)
	assert.Equal(t, first.Draft, got.Draft)
	assert.Equal(t, "Dr. Finn Ortiz has no open slots right now. Your earlier hold stays in place.", got.Transcript[8].Text)
}

func TestRunOverrideBeatsText(t *testing.T) {
	p := testPipeline(t)
	got, err := p.Run(State{}, Request{
		Message:   "heart palpitations",
		Overrides: Signals{Specialty: catalog.SpecialtyDermatology},
	})
	require.NoError(t, err)
	assert.Equal(t, catalog.SpecialtyDermatology, got.Signals.Specialty)
	require.NotEmpty(t, got.Suggestions)
	assert.Equal(t, "derm", got.Suggestions[0].ProviderID)
	assert.Equal(t, "derm", got.Draft.ProviderID)
}

func TestRunReplayIsIdempotent(t *testing.T) {
	p := testPipeline(t)
	req := Request{Message: heartCheck}

	first, err := p.Run(State{}, req)
	require.NoError(t, err)
	second, err := p.Run(first, req)
	require.NoError(t, err)

	assert.Equal(t, first.Signals, second.Signals)
	assert.Equal(t, first.Suggestions, second.Suggestions)
	assert.Equal(t, first.Draft, second.Draft)

	require.Len(t, second.Transcript, len(first.Transcript)+5)
	assert.Equal(t, first.Transcript, second.Transcript[:len(first.Transcript)])
	assert.Equal(t, "msg-000006-user", second.Transcript[5].ID)
}

func TestRunDoesNotMutateInput(t *testing.T) {
	p := testPipeline(t)
	first, err := p.Run(State{}, Request{Message: heartCheck})
	require.NoError(t, err)
	snapshot := first.Clone()

	_, err = p.Run(first, Request{Message: "Actually I'd prefer an in-person afternoon visit", Overrides: Signals{Urgency: UrgencyUrgent}})
	require.NoError(t, err)
	assert.Equal(t, snapshot, first)
}

func TestRunTranscriptAlwaysGrows(t *testing.T) {
	p := testPipeline(t)
	state := State{}
	for _, msg := range append([]string{"", "Hello there", "cough"}, QuickPrompts...) {
		before := state.Transcript
		next, err := p.Run(state, Request{Message: msg})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(next.Transcript), len(before)+2)
		assert.Equal(t, before, next.Transcript[:len(before)])
		state = next
	}
	seen := map[string]bool{}
	for _, m := range state.Transcript {
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
}

func TestRunIntegrityErrors(t *testing.T) {
	p := testPipeline(t)
	tests := []struct {
		name  string
		state State
		ref   string
	}{
		{"draft", State{Draft: &DraftAppointment{ProviderID: "ghost"}}, "draft appointment"},
		{"suggestion", State{Suggestions: []Suggestion{{ID: "sugg-ghost", ProviderID: "ghost"}}}, "suggestion sugg-ghost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Run(tt.state, Request{Message: heartCheck})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnknownProvider))
			var ie *IntegrityError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tt.ref, ie.Ref)
		})
	}
}

func TestNewPipelineRejectsInvalidSettings(t *testing.T) {
	s := DefaultSettings()
	s.Weights.Rating = 0.5
	_, err := NewPipeline(testCatalog(t), WithSettings(s))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights sum")

	assert.Panics(t, func() { _, _ = NewPipeline(nil) })
}

func TestStateJSON(t *testing.T) {
	p := testPipeline(t)
	state, err := p.Run(State{}, Request{Message: heartCheck})
	require.NoError(t, err)

	raw, err := json.Marshal(state)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"role":"Matchmaker"`)
	assert.Contains(t, string(raw), `"drafted_appointment"`)
	assert.Contains(t, string(raw), `"timestamp":"2026-03-09T08:00:00Z"`)

	var decoded State
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, state.Transcript, decoded.Transcript)

	var m Message
	assert.Error(t, json.Unmarshal([]byte(`{"role":"Robot"}`), &m))
	_, err = json.Marshal(Message{Role: Role(42)})
	assert.Error(t, err)
}

func TestWithSignals(t *testing.T) {
	s := State{Signals: Signals{Specialty: catalog.SpecialtyCardiology, Urgency: UrgencySoon}}

	updated := s.WithSignals(Signals{Channel: catalog.ChannelVirtual})
	assert.Equal(t, Signals{Specialty: catalog.SpecialtyCardiology, Urgency: UrgencySoon, Channel: catalog.ChannelVirtual}, updated.Signals)
	assert.Empty(t, s.Signals.Channel)

	assert.True(t, s.WithSignals(Signals{}).Signals.IsZero())
	assert.True(t, s.ResetSignals().Signals.IsZero())
}

func TestAppendMessage(t *testing.T) {
	s := AppendMessage(State{}, RoleConcierge, "hi", time.Date(2026, 3, 9, 3, 0, 0, 0, time.FixedZone("EST", -5*3600)))
	require.Len(t, s.Transcript, 1)
	assert.Equal(t, "msg-000001-concierge", s.Transcript[0].ID)
	assert.Equal(t, time.UTC, s.Transcript[0].Timestamp.Location())
}

func TestExecuteReportsStageOutcomes(t *testing.T) {
	p := testPipeline(t)

	res, err := p.Execute(State{}, Request{Message: heartCheck})
	require.NoError(t, err)
	assert.Equal(t, ScheduleHeld, res.Report.Schedule.Status)
	assert.Equal(t, res.State.Suggestions, res.Report.Suggestions)
	assert.Nil(t, res.Report.KeptDraft)

	again, err := p.Execute(res.State.ResetSignals(), Request{Message: "Hello there"})
	require.NoError(t, err)
	assert.Equal(t, ScheduleNoSuggestion, again.Report.Schedule.Status)
	assert.Equal(t, res.State.Draft, again.Report.KeptDraft)
}

func TestParseSignals(t *testing.T) {
	got, err := ParseSignals(" cardiology ", "in person", "SOON", "morning", "  chest tightness ")
	require.NoError(t, err)
	assert.Equal(t, Signals{
		Specialty: catalog.SpecialtyCardiology,
		Channel:   catalog.ChannelInPerson,
		Urgency:   UrgencySoon,
		TimeOfDay: Mornings,
		Symptoms:  "chest tightness",
	}, got)

	empty, err := ParseSignals("", "", "", "", "")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	for _, bad := range [][5]string{
		{"astrology", "", "", "", ""},
		{"", "carrier pigeon", "", "", ""},
		{"", "", "whenever", "", ""},
		{"", "", "", "midnight", ""},
	} {
		_, err := ParseSignals(bad[0], bad[1], bad[2], bad[3], bad[4])
		assert.Error(t, err, bad)
	}
}
