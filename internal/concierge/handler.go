package concierge

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/appointments"
	"github.com/wolfman30/astracare/internal/session"
	"github.com/wolfman30/astracare/pkg/logging"
)

const maxBodyBytes = 64 << 10

// Handler exposes the concierge over JSON HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("concierge: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts every concierge endpoint on a fresh router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/providers", h.ListProviders)
	r.Get("/providers/{providerID}", h.GetProvider)
	r.Post("/sessions", h.CreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/messages", h.SendMessage)
		r.Post("/brief", h.SendBrief)
		r.Patch("/preferences", h.UpdatePreferences)
		r.Post("/confirm", h.Confirm)
		r.Get("/summary", h.GetSummary)
	})
	r.Get("/appointments", h.ListAppointments)
	r.Get("/stats", h.GetStats)
	return r
}

// signalsPayload is the wire form of preferences. Values are parsed leniently
// so "in person" and "morning" are accepted.
type signalsPayload struct {
	Specialty string `json:"specialty"`
	Channel   string `json:"channel"`
	Urgency   string `json:"urgency"`
	TimeOfDay string `json:"date_flexibility"`
	Symptoms  string `json:"symptoms"`
}

func (p signalsPayload) signals() (agent.Signals, error) {
	return agent.ParseSignals(p.Specialty, p.Channel, p.Urgency, p.TimeOfDay, p.Symptoms)
}

type messageRequest struct {
	Message   string         `json:"message"`
	Overrides signalsPayload `json:"overrides"`
}

type briefRequest struct {
	Notes string `json:"notes"`
}

type sessionResponse struct {
	SessionID string      `json:"session_id"`
	State     agent.State `json:"state"`
}

type confirmResponse struct {
	SessionID   string                   `json:"session_id"`
	Appointment appointments.Appointment `json:"appointment"`
	State       agent.State              `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": h.svc.Providers()})
}

func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.Provider(chi.URLParam(r, "providerID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, state, err := h.svc.NewSession(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: id, State: state})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	state, err := h.svc.Session(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, State: state})
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decode(w, r, &req) {
		return
	}
	overrides, err := req.Overrides.signals()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id := chi.URLParam(r, "sessionID")
	state, err := h.svc.Send(r.Context(), id, agent.Request{Message: req.Message, Overrides: overrides})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, State: state})
}

func (h *Handler) SendBrief(w http.ResponseWriter, r *http.Request) {
	var req briefRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "sessionID")
	state, err := h.svc.Brief(r.Context(), id, req.Notes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, State: state})
}

func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req signalsPayload
	if !decode(w, r, &req) {
		return
	}
	updates, err := req.signals()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	id := chi.URLParam(r, "sessionID")
	state, err := h.svc.UpdatePreferences(r.Context(), id, updates)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id, State: state})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	appt, state, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, confirmResponse{SessionID: id, Appointment: appt, State: state})
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.Summary(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	list, err := h.svc.Appointments(r.Context(), r.URL.Query().Get("session_id"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []appointments.Appointment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": list})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats())
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, agent.ErrUnknownProvider):
		status = http.StatusConflict
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, ErrProviderNotFound),
		errors.Is(err, appointments.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrNoDraft):
		status = http.StatusConflict
	case errors.Is(err, ErrEmptyRequest):
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError || errors.Is(err, agent.ErrUnknownProvider) {
		h.logger.Error("concierge request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		if status >= http.StatusInternalServerError {
			writeJSON(w, status, errorResponse{Error: "internal error"})
			return
		}
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
