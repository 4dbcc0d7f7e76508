package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a delivered event id is remembered.
const DefaultTTL = 24 * time.Hour

// ProcessedStore records webhook event ids so redelivered events are handled once.
type ProcessedStore interface {
	// MarkProcessed records the event and reports whether it was new.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresProcessedStore keeps event ids in the processed_events table.
type PostgresProcessedStore struct {
	db  execer
	ttl time.Duration
}

func NewPostgresProcessedStore(pool *pgxpool.Pool, ttl time.Duration) *PostgresProcessedStore {
	if pool == nil {
		panic("events: pgx pool required")
	}
	return newPostgresProcessedStore(pool, ttl)
}

func newPostgresProcessedStore(db execer, ttl time.Duration) *PostgresProcessedStore {
	if db == nil {
		panic("events: exec required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresProcessedStore{db: db, ttl: ttl}
}

// MarkProcessed inserts the event id, returning false if it already exists. Expired rows are
// pruned opportunistically on the same call.
func (s *PostgresProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	if _, err := s.db.Exec(ctx,
		`DELETE FROM processed_events WHERE provider = $1 AND processed_at < $2`,
		provider, time.Now().UTC().Add(-s.ttl),
	); err != nil {
		return false, fmt.Errorf("events: prune processed: %w", err)
	}

	ct, err := s.db.Exec(ctx, `
		INSERT INTO processed_events (provider, event_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, provider, eventID)
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}

// RedisProcessedStore uses SETNX keys that expire after the TTL.
type RedisProcessedStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisProcessedStore(client redis.Cmdable, ttl time.Duration) *RedisProcessedStore {
	if client == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisProcessedStore{client: client, ttl: ttl}
}

func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ok, err := s.client.SetNX(ctx, processedKey(provider, eventID), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}

func processedKey(provider, eventID string) string {
	return "processed:" + strings.ToLower(provider) + ":" + eventID
}

// MemoryProcessedStore is a process-local store for development and tests.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryProcessedStore(ttl time.Duration) *MemoryProcessedStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryProcessedStore{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (s *MemoryProcessedStore) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, expires := range s.seen {
		if now.After(expires) {
			delete(s.seen, key)
		}
	}

	key := processedKey(provider, eventID)
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = now.Add(s.ttl)
	return true, nil
}
