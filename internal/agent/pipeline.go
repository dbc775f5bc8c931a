package agent

import (
	"time"
)

// Pipeline runs Triage, Matchmaker, Scheduling and the composer over one
// request. It holds only read-only collaborators and is safe for concurrent
// use.
type Pipeline struct {
	dir      Directory
	settings Settings
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) Option {
	return func(p *Pipeline) { p.settings = s }
}

// WithClock sets the clock used for slot filtering and message timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline builds a pipeline over dir. It returns an error when the
// configured settings do not validate.
func NewPipeline(dir Directory, opts ...Option) (*Pipeline, error) {
	if dir == nil {
		panic("agent: provider directory required")
	}
	p := &Pipeline{dir: dir, settings: DefaultSettings(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.settings.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Settings returns the pipeline's tuning settings.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// Now returns the pipeline clock's current time.
func (p *Pipeline) Now() time.Time {
	return p.now()
}

// Result is a run's next state plus the stage outcomes behind its transcript.
type Result struct {
	State  State
	Report Report
}

// Run processes one request against prev and returns the next state. prev is
// never modified. Soft outcomes (no match, no slot) still return a valid
// state; the only error is an *IntegrityError.
func (p *Pipeline) Run(prev State, req Request) (State, error) {
	res, err := p.Execute(prev, req)
	if err != nil {
		return State{}, err
	}
	return res.State, nil
}

// Execute is Run that also returns the stage report.
func (p *Pipeline) Execute(prev State, req Request) (Result, error) {
	if err := CheckIntegrity(prev, p.dir); err != nil {
		return Result{}, err
	}
	now := p.now()
	next := AppendMessage(prev, RoleUser, req.Message, now)

	sig := Triage(p.settings, req.Message, prev.Signals, req.Overrides)
	suggestions := Match(p.settings, sig, p.dir, now)
	if err := checkSuggestions(suggestions, p.dir); err != nil {
		return Result{}, err
	}

	var top *Suggestion
	if len(suggestions) > 0 {
		top = &suggestions[0]
	}
	outcome, err := Schedule(p.settings, sig, top, p.dir, now)
	if err != nil {
		return Result{}, err
	}

	next.Signals = sig
	next.Suggestions = suggestions
	report := Report{Signals: sig, Suggestions: suggestions, Schedule: outcome}
	if outcome.Status == ScheduleHeld {
		next.Draft = outcome.Draft
	} else {
		report.KeptDraft = next.Draft
	}
	next.Transcript = Compose(p.settings, next.Transcript, report, p.dir, now)
	return Result{State: next, Report: report}, nil
}

// CheckIntegrity verifies that every provider id referenced by s exists in
// dir.
func CheckIntegrity(s State, dir Directory) error {
	if d := s.Draft; d != nil {
		if _, ok := dir.Lookup(d.ProviderID); !ok {
			return &IntegrityError{Ref: "draft appointment", ProviderID: d.ProviderID}
		}
	}
	return checkSuggestions(s.Suggestions, dir)
}

func checkSuggestions(suggestions []Suggestion, dir Directory) error {
	for _, sg := range suggestions {
		if _, ok := dir.Lookup(sg.ProviderID); !ok {
			return &IntegrityError{Ref: "suggestion " + sg.ID, ProviderID: sg.ProviderID}
		}
	}
	return nil
}
