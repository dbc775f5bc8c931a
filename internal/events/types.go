package events

import "time"

const TypeAppointmentConfirmed = "appointment.confirmed.v1"

// AppointmentConfirmedV1 is emitted when a held slot is booked.
type AppointmentConfirmedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	SessionID     string    `json:"session_id"`
	ProviderID    string    `json:"provider_id"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Channel       string    `json:"channel"`
	Reason        string    `json:"reason,omitempty"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

func (AppointmentConfirmedV1) EventType() string { return TypeAppointmentConfirmed }

// AppointmentAggregate is the outbox aggregate key for an appointment.
func AppointmentAggregate(id string) string { return "appointment:" + id }
