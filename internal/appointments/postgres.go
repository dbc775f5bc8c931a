package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/astracare/internal/agent"
	"github.com/wolfman30/astracare/internal/catalog"
	"github.com/wolfman30/astracare/internal/events"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores appointments in the appointments table. Each new
// row also queues an appointment.confirmed.v1 event in the outbox; inserting
// an existing id changes nothing and returns ErrAlreadyExists.
type PostgresRepository struct {
	pool querier
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithQuerier(q querier) *PostgresRepository {
	if q == nil {
		panic("appointments: querier required")
	}
	return &PostgresRepository{pool: q}
}

const selectColumns = `id::text, session_id, provider_id, starts_at, ends_at, channel, reason, status, meta, created_at`

func (r *PostgresRepository) Create(ctx context.Context, appt Appointment) error {
	meta, err := encodeMeta(appt.Meta)
	if err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("appointments: begin: %w", err)
	}

	query := `
		INSERT INTO appointments (id, session_id, provider_id, starts_at, ends_at, channel, reason, status, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := tx.Exec(ctx, query,
		appt.ID, appt.SessionID, appt.ProviderID, appt.Start, appt.End,
		string(appt.Channel), appt.Reason, string(appt.Status), meta, appt.CreatedAt,
	)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("appointments: insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// The event was queued with the original row.
		_ = tx.Rollback(ctx)
		return fmt.Errorf("%w: %s", ErrAlreadyExists, appt.ID)
	}

	evt := events.AppointmentConfirmedV1{
		AppointmentID: appt.ID,
		SessionID:     appt.SessionID,
		ProviderID:    appt.ProviderID,
		StartsAt:      appt.Start,
		EndsAt:        appt.End,
		Channel:       string(appt.Channel),
		Reason:        appt.Reason,
		ConfirmedAt:   appt.CreatedAt,
	}
	if _, err := events.Append(ctx, tx, events.AppointmentAggregate(appt.ID), appt.SessionID, evt, events.WithOccurredAt(appt.CreatedAt)); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("appointments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("appointments: commit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (Appointment, error) {
	query := `SELECT ` + selectColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Appointment{}, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) List(ctx context.Context, sessionID string, limit int) ([]Appointment, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM appointments
		WHERE ($1::text = '' OR session_id = $1)
		ORDER BY created_at DESC, id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, sessionID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: list rows: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) CountUpcoming(ctx context.Context, sessionID string, now time.Time) (int, error) {
	query := `
		SELECT count(*)
		FROM appointments
		WHERE ($1::text = '' OR session_id = $1) AND starts_at >= $2
	`
	var n int
	if err := r.pool.QueryRow(ctx, query, sessionID, now.UTC()).Scan(&n); err != nil {
		return 0, fmt.Errorf("appointments: count upcoming: %w", err)
	}
	return n, nil
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var (
		appt            Appointment
		channel, status string
		meta            []byte
		start, end, at  time.Time
	)
	if err := row.Scan(&appt.ID, &appt.SessionID, &appt.ProviderID, &start, &end, &channel, &appt.Reason, &status, &meta, &at); err != nil {
		return Appointment{}, err
	}
	appt.Start, appt.End, appt.CreatedAt = start.UTC(), end.UTC(), at.UTC()
	appt.Channel = catalog.Channel(channel)
	appt.Status = agent.AppointmentStatus(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &appt.Meta); err != nil {
			return Appointment{}, fmt.Errorf("decode meta: %w", err)
		}
	}
	return appt, nil
}

func encodeMeta(meta map[string]string) ([]byte, error) {
	if len(meta) == 0 {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("appointments: encode meta: %w", err)
	}
	return data, nil
}
