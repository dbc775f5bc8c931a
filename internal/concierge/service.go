// Package concierge runs booking pipeline turns against stored sessions and
// exposes them over HTTP.
package concierge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/appointments"
	"github.com/wolfman30/astracare/internal/catalog"
	"github.com/wolfman30/astracare/internal/observability/metrics"
	"github.com/wolfman30/astracare/internal/session"
	"github.com/wolfman30/astracare/pkg/logging"
)

const (
	greeting        = "Hi, I'm your care concierge. Tell me what's going on and how you'd like to be seen, and I'll line up a provider and hold a slot."
	confirmedText   = "Appointment locked on the provider schedule and synced to patient calendar."
	profileOpenings = 5
)

// Deps wires the service. Pipeline, Directory, Sessions and Appointments are
// required.
type Deps struct {
	Pipeline     *agent.Pipeline
	Directory    agent.Directory
	Sessions     session.Store
	Appointments *appointments.Service
	Metrics      *metrics.PipelineMetrics
	Gatherer     prometheus.Gatherer
	Logger       *logging.Logger
	Tracer       trace.Tracer
}

// Service owns the session lifecycle around the pipeline.
type Service struct {
	pipeline *agent.Pipeline
	dir      agent.Directory
	sessions session.Store
	appts    *appointments.Service
	metrics  *metrics.PipelineMetrics
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	tracer   trace.Tracer
	locks    *sessionLocks
}

func NewService(deps Deps) *Service {
	if deps.Pipeline == nil {
		panic("concierge: pipeline required")
	}
	if deps.Directory == nil {
		panic("concierge: provider directory required")
	}
	if deps.Sessions == nil {
		panic("concierge: session store required")
	}
	if deps.Appointments == nil {
		panic("concierge: appointments service required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer("astracare.internal.concierge")
	}
	return &Service{
		pipeline: deps.Pipeline,
		dir:      deps.Directory,
		sessions: deps.Sessions,
		appts:    deps.Appointments,
		metrics:  deps.Metrics,
		gatherer: deps.Gatherer,
		logger:   deps.Logger,
		tracer:   deps.Tracer,
		locks:    newSessionLocks(),
	}
}

// NewSession stores a fresh state opened with the concierge greeting.
func (s *Service) NewSession(ctx context.Context) (string, agent.State, error) {
	id := session.NewID()
	state := agent.AppendMessage(agent.State{}, agent.RoleConcierge, greeting, s.pipeline.Now())
	if err := s.sessions.Save(ctx, id, state); err != nil {
		return "", agent.State{}, fmt.Errorf("concierge: create session: %w", err)
	}
	s.logger.Info("session created", "session_id", id)
	return id, state, nil
}

// Session returns the stored state for id.
func (s *Service) Session(ctx context.Context, id string) (agent.State, error) {
	if !session.ValidID(id) {
		return agent.State{}, fmt.Errorf("%w: %s", session.ErrNotFound, id)
	}
	return s.sessions.Load(ctx, id)
}

// Send runs one pipeline turn for the session.
func (s *Service) Send(ctx context.Context, id string, req agent.Request) (agent.State, error) {
	if strings.TrimSpace(req.Message) == "" && req.Overrides.IsZero() {
		return agent.State{}, ErrEmptyRequest
	}
	return s.run(ctx, id, func(agent.State) agent.Request { return req })
}

// Brief runs the composer flow: notes plus the session's current signals
// become a dispatch message, with the notes standing in as symptoms.
func (s *Service) Brief(ctx context.Context, id, notes string) (agent.State, error) {
	return s.run(ctx, id, func(prev agent.State) agent.Request {
		return agent.BriefRequest(prev.Signals, notes)
	})
}

func (s *Service) run(ctx context.Context, id string, build func(agent.State) agent.Request) (agent.State, error) {
	ctx, span := s.tracer.Start(ctx, "concierge.run", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	unlock := s.locks.lock(id)
	defer unlock()

	start := time.Now()
	prev, err := s.Session(ctx, id)
	if err != nil {
		span.RecordError(err)
		return agent.State{}, err
	}

	res, err := s.pipeline.Execute(prev, build(prev))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		var integrity *agent.IntegrityError
		if errors.As(err, &integrity) {
			s.metrics.ObserveRun(metrics.OutcomeIntegrityError, time.Since(start).Seconds())
			s.logger.Error("session state references unknown provider",
				"session_id", id,
				"ref", integrity.Ref,
				"provider_id", integrity.ProviderID,
			)
		}
		return agent.State{}, err
	}

	if err := s.sessions.Save(ctx, id, res.State); err != nil {
		span.RecordError(err)
		return agent.State{}, fmt.Errorf("concierge: save session: %w", err)
	}

	outcome := runOutcome(res.Report)
	s.metrics.ObserveRun(outcome, time.Since(start).Seconds())
	s.metrics.ObserveShortlist(len(res.Report.Suggestions))
	relaxed := make([]string, 0, len(res.Report.Schedule.Relaxed))
	for _, c := range res.Report.Schedule.Relaxed {
		relaxed = append(relaxed, string(c))
	}
	s.metrics.ObserveRelaxed(relaxed...)

	span.SetAttributes(
		attribute.String("pipeline.outcome", outcome),
		attribute.Int("pipeline.shortlist", len(res.Report.Suggestions)),
	)
	s.logger.Info("pipeline run completed",
		"session_id", id,
		"outcome", outcome,
		"shortlist", len(res.Report.Suggestions),
		"relaxed", relaxed,
	)
	return res.State, nil
}

func runOutcome(r agent.Report) string {
	switch {
	case r.Schedule.Status == agent.ScheduleHeld:
		return metrics.OutcomeHeld
	case len(r.Suggestions) == 0:
		return metrics.OutcomeNoMatch
	default:
		return metrics.OutcomeNoSlots
	}
}

// UpdatePreferences edits the session's signals between runs. An empty update
// resets them.
func (s *Service) UpdatePreferences(ctx context.Context, id string, updates agent.Signals) (agent.State, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	prev, err := s.Session(ctx, id)
	if err != nil {
		return agent.State{}, err
	}
	next := prev.WithSignals(updates)
	if err := s.sessions.Save(ctx, id, next); err != nil {
		return agent.State{}, fmt.Errorf("concierge: save session: %w", err)
	}
	return next, nil
}

// Confirm books the held draft, clears it and records the confirmation in
// the transcript.
func (s *Service) Confirm(ctx context.Context, id string) (appointments.Appointment, agent.State, error) {
	ctx, span := s.tracer.Start(ctx, "concierge.confirm", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	unlock := s.locks.lock(id)
	defer unlock()

	prev, err := s.Session(ctx, id)
	if err != nil {
		span.RecordError(err)
		return appointments.Appointment{}, agent.State{}, err
	}
	if prev.Draft == nil {
		return appointments.Appointment{}, agent.State{}, ErrNoDraft
	}
	if err := agent.CheckIntegrity(prev, s.dir); err != nil {
		span.RecordError(err)
		s.logger.Error("refusing to confirm draft for unknown provider", "session_id", id, "error", err)
		return appointments.Appointment{}, agent.State{}, err
	}

	appt, err := s.appts.Confirm(ctx, id, prev.Draft)
	if err != nil {
		span.RecordError(err)
		return appointments.Appointment{}, agent.State{}, err
	}

	next := agent.AppendMessage(prev.WithoutDraft(), agent.RoleConcierge, confirmedText, s.pipeline.Now())
	if err := s.sessions.Save(ctx, id, next); err != nil {
		// The visit is persisted and the draft still held; a retried Confirm
		// resolves to the same appointment.
		s.logger.Error("appointment confirmed but session not updated",
			"session_id", id,
			"appointment_id", appt.ID,
			"error", err,
		)
		return appointments.Appointment{}, agent.State{}, fmt.Errorf("concierge: save session: %w", err)
	}
	s.metrics.ObserveConfirmation()
	s.logger.Info("appointment confirmed",
		"session_id", id,
		"appointment_id", appt.ID,
		"provider_id", appt.ProviderID,
	)
	return appt, next, nil
}

// Summary returns the dashboard metrics row for the session.
func (s *Service) Summary(ctx context.Context, id string) (agent.Summary, error) {
	state, err := s.Session(ctx, id)
	if err != nil {
		return agent.Summary{}, err
	}
	now := s.pipeline.Now()
	upcoming, err := s.appts.CountUpcoming(ctx, id, now)
	if err != nil {
		return agent.Summary{}, fmt.Errorf("concierge: count visits: %w", err)
	}
	return agent.Summarize(state, upcoming, now), nil
}

// Providers lists the catalog in its own order.
func (s *Service) Providers() []catalog.Provider {
	return s.dir.All()
}

// Profile is a provider card with its next openings.
type Profile struct {
	Provider catalog.Provider `json:"provider"`
	Openings []catalog.Slot   `json:"openings"`
}

// Provider returns the profile for id.
func (s *Service) Provider(id string) (Profile, error) {
	p, ok := s.dir.Lookup(id)
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	openings := p.Upcoming(s.pipeline.Now())
	if len(openings) > profileOpenings {
		openings = openings[:profileOpenings]
	}
	return Profile{Provider: p, Openings: openings}, nil
}

// Appointments lists confirmed visits newest first. An empty sessionID lists
// every session's visits.
func (s *Service) Appointments(ctx context.Context, sessionID string, limit int) ([]appointments.Appointment, error) {
	return s.appts.Timeline(ctx, sessionID, limit)
}

// Stats reads the pipeline counters.
func (s *Service) Stats() metrics.Snapshot {
	return metrics.TakeSnapshot(s.gatherer)
}
