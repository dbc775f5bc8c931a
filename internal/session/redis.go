package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/astracare/internal/agent"
)

// DefaultTTL bounds how long an idle session survives.
const DefaultTTL = 24 * time.Hour

// RedisStore keeps session state as JSON under "session:<id>" with a sliding
// TTL refreshed on every save.
type RedisStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("astracare.internal.session")
	}
	return &RedisStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisStore) Save(ctx context.Context, id string, state agent.State) error {
	ctx, span := s.tracer.Start(ctx, "session.save", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(id), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to persist state: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, id string) (agent.State, error) {
	ctx, span := s.tracer.Start(ctx, "session.load", trace.WithAttributes(attribute.String("session.id", id)))
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return agent.State{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		span.RecordError(err)
		return agent.State{}, fmt.Errorf("session: failed to load state: %w", err)
	}

	var state agent.State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return agent.State{}, fmt.Errorf("session: failed to decode state: %w", err)
	}
	return state, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "session.delete")
	defer span.End()

	if err := s.redis.Del(ctx, sessionKey(id)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: failed to delete state: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return fmt.Sprintf("session:%s", id)
}
