package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/astracare/pkg/logging"
)

// OutboxEntry is a stored event awaiting delivery.
type OutboxEntry struct {
	ID        uuid.UUID
	Aggregate string
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// HandlerFunc adapts a function to DeliveryHandler.
type HandlerFunc func(ctx context.Context, entry OutboxEntry) error

func (f HandlerFunc) Handle(ctx context.Context, entry OutboxEntry) error { return f(ctx, entry) }

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Relay moves pending outbox rows to a DeliveryHandler. Each flush claims a
// batch with FOR UPDATE SKIP LOCKED, so several API replicas can relay the
// same table without delivering a row twice.
type Relay struct {
	db       beginner
	handler  DeliveryHandler
	logger   *logging.Logger
	batch    int32
	interval time.Duration
}

type RelayOption func(*Relay)

func WithBatchSize(n int32) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func NewRelay(pool *pgxpool.Pool, handler DeliveryHandler, logger *logging.Logger, opts ...RelayOption) *Relay {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newRelay(pool, handler, logger, opts...)
}

func newRelay(db beginner, handler DeliveryHandler, logger *logging.Logger, opts ...RelayOption) *Relay {
	if handler == nil {
		panic("events: delivery handler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Relay{db: db, handler: handler, logger: logger, batch: 25, interval: 2 * time.Second}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run flushes every interval until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Flush(ctx); err != nil {
				r.logger.Error("outbox flush failed", "error", err)
			}
		}
	}
}

// Flush delivers one batch and returns how many rows were marked delivered.
// Rows whose handler fails stay pending for the next flush.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("events: begin flush: %w", err)
	}

	entries, err := claimPending(ctx, tx, r.batch)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}

	delivered := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if err := r.handler.Handle(ctx, entry); err != nil {
			r.logger.Warn("outbox delivery failed", "error", err, "event_id", entry.ID, "type", entry.EventType)
			continue
		}
		delivered = append(delivered, entry.ID)
	}

	if len(delivered) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE outbox SET delivered_at = now() WHERE id = ANY($1)`, delivered); err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("events: mark delivered: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("events: commit flush: %w", err)
	}
	if len(delivered) > 0 {
		r.logger.Debug("outbox flushed", "delivered", len(delivered), "pending", len(entries)-len(delivered))
	}
	return len(delivered), nil
}

func claimPending(ctx context.Context, tx pgx.Tx, limit int32) ([]OutboxEntry, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, aggregate, event_type, payload, created_at
		FROM outbox
		WHERE delivered_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("events: claim pending: %w", err)
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var (
			e       OutboxEntry
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.Aggregate, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		e.Payload = payload
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("events: claim rows: %w", err)
	}
	return out, nil
}

// LogHandler publishes events to the structured log.
func LogHandler(logger *logging.Logger) DeliveryHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return HandlerFunc(func(_ context.Context, entry OutboxEntry) error {
		var env Envelope
		if err := json.Unmarshal(entry.Payload, &env); err != nil {
			return fmt.Errorf("events: decode envelope: %w", err)
		}
		logger.Info("domain event",
			"event_id", env.EventID,
			"type", env.EventType,
			"aggregate", env.Aggregate,
			"correlation_id", env.CorrelationID,
			"payload", string(env.Payload),
		)
		return nil
	})
}
