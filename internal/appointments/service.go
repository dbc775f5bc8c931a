package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/astracare/internal/agent"
)

// ErrInvalidDraft is returned when there is no usable draft to confirm.
var ErrInvalidDraft = errors.New("appointments: invalid draft")

// Service turns held drafts into confirmed visits.
type Service struct {
	repo   Repository
	tracer trace.Tracer
	now    func() time.Time
	newID  func(sessionID string, draft *agent.DraftAppointment) string
}

var confirmationSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("astracare:appointments"))

// ConfirmationID is the appointment id for booking draft in sessionID. The
// same session, provider and start always give the same id, so a retried
// confirmation finds the visit it already stored.
func ConfirmationID(sessionID string, draft *agent.DraftAppointment) string {
	key := sessionID + "|" + draft.ProviderID + "|" + draft.Start.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(confirmationSpace, []byte(key)).String()
}

func NewService(repo Repository, tracer trace.Tracer) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if tracer == nil {
		tracer = otel.Tracer("astracare.internal.appointments")
	}
	return &Service{repo: repo, tracer: tracer, now: time.Now, newID: ConfirmationID}
}

// Confirm persists draft as a Confirmed appointment. Confirming the same draft
// again returns the stored visit instead of booking it twice. The draft itself
// is left untouched; clearing it from the session is the caller's job.
func (s *Service) Confirm(ctx context.Context, sessionID string, draft *agent.DraftAppointment) (Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.confirm", trace.WithAttributes(
		attribute.String("session.id", sessionID),
	))
	defer span.End()

	if draft == nil || draft.ProviderID == "" || !draft.End.After(draft.Start) {
		span.SetStatus(codes.Error, "invalid draft")
		return Appointment{}, ErrInvalidDraft
	}
	span.SetAttributes(attribute.String("provider.id", draft.ProviderID))

	appt := Appointment{
		ID:         s.newID(sessionID, draft),
		SessionID:  sessionID,
		ProviderID: draft.ProviderID,
		Start:      draft.Start.UTC(),
		End:        draft.End.UTC(),
		Channel:    draft.Channel,
		Reason:     draft.Reason,
		Status:     agent.StatusConfirmed,
		Meta:       copyAppointment(Appointment{Meta: draft.Meta}).Meta,
		CreatedAt:  s.now().UTC(),
	}
	err := s.repo.Create(ctx, appt)
	if errors.Is(err, ErrAlreadyExists) {
		span.SetAttributes(attribute.Bool("appointment.replayed", true))
		existing, err := s.repo.Get(ctx, appt.ID)
		if err != nil {
			span.RecordError(err)
			return Appointment{}, fmt.Errorf("appointments: confirm: %w", err)
		}
		return existing, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return Appointment{}, fmt.Errorf("appointments: confirm: %w", err)
	}
	return appt, nil
}

// Timeline lists a session's visits newest first.
func (s *Service) Timeline(ctx context.Context, sessionID string, limit int) ([]Appointment, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.timeline")
	defer span.End()

	out, err := s.repo.List(ctx, sessionID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// Get returns a single appointment.
func (s *Service) Get(ctx context.Context, id string) (Appointment, error) {
	return s.repo.Get(ctx, id)
}

// CountUpcoming counts the session's visits that have not started.
func (s *Service) CountUpcoming(ctx context.Context, sessionID string, now time.Time) (int, error) {
	ctx, span := s.tracer.Start(ctx, "appointments.count_upcoming")
	defer span.End()

	n, err := s.repo.CountUpcoming(ctx, sessionID, now)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return n, nil
}
