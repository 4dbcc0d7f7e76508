package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/wolfman30/clinic-concierge/internal/api/router"
	appconfig "github.com/wolfman30/clinic-concierge/internal/config"
	"github.com/wolfman30/clinic-concierge/internal/customers"
	"github.com/wolfman30/clinic-concierge/internal/events"
	"github.com/wolfman30/clinic-concierge/pkg/logging"
)

const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendPostgres = "postgres"
)

// Stores bundles the persistence chosen by STORE_BACKEND.
type Stores struct {
	Backend      string
	Customers    customers.Store
	Processed    events.ProcessedStore
	HealthChecks map[string]router.HealthCheck
	closers      []func()
}

// Close releases connections held by the stores.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// BuildStores connects the configured backend. Redis and Postgres must be reachable at startup.
func BuildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	stores := &Stores{Backend: cfg.StoreBackend, HealthChecks: map[string]router.HealthCheck{}}
	switch cfg.StoreBackend {
	case "", backendMemory:
		stores.Backend = backendMemory
		stores.Customers = customers.NewInMemoryRepository(cfg.HistoryLimit)
		stores.Processed = events.NewMemoryProcessedStore(cfg.DedupTTL)

	case backendRedis:
		client := BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return nil, fmt.Errorf("bootstrap: redis at %s is not reachable", cfg.RedisAddr)
		}
		stores.Customers = customers.NewRedisRepository(client, cfg.HistoryLimit, otel.Tracer("clinic-concierge/customers"))
		stores.Processed = events.NewRedisProcessedStore(client, cfg.DedupTTL)
		stores.HealthChecks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		stores.closers = append(stores.closers, func() { _ = client.Close() })

	case backendPostgres:
		if strings.TrimSpace(cfg.DatabaseURL) == "" {
			return nil, fmt.Errorf("bootstrap: DATABASE_URL is required for the postgres backend")
		}
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: create postgres pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
		}
		stores.Customers = customers.NewPostgresRepository(pool, cfg.HistoryLimit)
		stores.Processed = events.NewPostgresProcessedStore(pool, cfg.DedupTTL)
		stores.HealthChecks["postgres"] = pool.Ping
		stores.closers = append(stores.closers, pool.Close)

	default:
		return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
	}

	logger.Info("customer store ready", "backend", stores.Backend, "history_limit", cfg.HistoryLimit)
	return stores, nil
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}
