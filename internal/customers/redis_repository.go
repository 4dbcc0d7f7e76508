package customers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// RedisRepository stores profiles as JSON strings and history as capped lists.
type RedisRepository struct {
	redis  *redis.Client
	limit  int
	tracer trace.Tracer
}

// NewRedisRepository wires a Store on top of an existing redis client.
func NewRedisRepository(client *redis.Client, historyLimit int, tracer trace.Tracer) *RedisRepository {
	if client == nil {
		panic("customers: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("clinic.internal.customers")
	}
	return &RedisRepository{
		redis:  client,
		limit:  normalizeLimit(historyLimit),
		tracer: tracer,
	}
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*Profile, error) {
	ctx, span := r.tracer.Start(ctx, "customers.get_profile")
	defer span.End()

	data, err := r.redis.Get(ctx, profileKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrProfileNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("customers: failed to load profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("customers: failed to decode profile: %w", err)
	}
	return &profile, nil
}

func (r *RedisRepository) Upsert(ctx context.Context, profile *Profile) error {
	ctx, span := r.tracer.Start(ctx, "customers.upsert_profile")
	defer span.End()

	if profile == nil || profile.ID == "" {
		return errors.New("customers: profile id required")
	}
	data, err := json.Marshal(profile)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("customers: failed to marshal profile: %w", err)
	}
	if err := r.redis.Set(ctx, profileKey(profile.ID), data, 0).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("customers: failed to persist profile: %w", err)
	}
	return nil
}

func (r *RedisRepository) Append(ctx context.Context, id string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}
	ctx, span := r.tracer.Start(ctx, "customers.append_history")
	defer span.End()

	values := make([]any, 0, len(turns))
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("customers: failed to marshal turn: %w", err)
		}
		values = append(values, data)
	}

	key := historyKey(id)
	pipe := r.redis.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-r.limit), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("customers: failed to append history: %w", err)
	}
	return nil
}

func (r *RedisRepository) History(ctx context.Context, id string) ([]Turn, error) {
	ctx, span := r.tracer.Start(ctx, "customers.load_history")
	defer span.End()

	raw, err := r.redis.LRange(ctx, historyKey(id), 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("customers: failed to load history: %w", err)
	}
	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("customers: failed to decode turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

func profileKey(id string) string {
	return fmt.Sprintf("customer:%s", id)
}

func historyKey(id string) string {
	return fmt.Sprintf("history:%s", id)
}
