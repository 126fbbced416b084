// Package cache provides the idempotency stores and totals caches behind
// quick collect and the owner rollups, on Redis or in process memory.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	ledgerapp "github.com/khata/backend/internal/application/ledger"
	"github.com/khata/backend/internal/domain/shared"
	"github.com/khata/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const memorySweepInterval = 5 * time.Minute

// Stores bundles the cache-backed components the ledger services use
type Stores struct {
	Idempotency shared.IdempotencyStore
	Totals      ledgerapp.TotalsCache
	Backend     string // "redis" or "memory"

	client redis.UniversalClient
}

// Close releases the stores and the Redis client, if any
func (s *Stores) Close() error {
	var errs []error
	if s.Idempotency != nil {
		errs = append(errs, s.Idempotency.Close())
	}
	if s.client != nil {
		errs = append(errs, s.client.Close())
	}
	return errors.Join(errs...)
}

// Ping checks the Redis connection; memory stores are always healthy
func (s *Stores) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

// StoreFactory creates cache stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory and the stores it builds
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// in-memory stores. Default is true.
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create builds Redis-backed stores when Redis is enabled and reachable,
// in-memory stores otherwise.
func (f *StoreFactory) Create(ctx context.Context) (*Stores, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory ledger caches")
		return f.CreateInMemory(), nil
	}

	stores, err := f.CreateRedis(ctx)
	if err == nil {
		f.logger.Info("Using Redis ledger caches", zap.String("addr", f.redisConfig.RedisAddr()))
		return stores, nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory ledger caches. "+
		"Idempotency keys are not shared between instances.",
		zap.Error(err),
	)
	return f.CreateInMemory(), nil
}

// CreateRedis connects to Redis and builds stores on one shared client
func (f *StoreFactory) CreateRedis(ctx context.Context) (*Stores, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     f.redisConfig.RedisAddr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStores(client, f.logger), nil
}

// NewRedisStores builds stores on an existing client. The returned Stores
// owns the client and closes it.
func NewRedisStores(client redis.UniversalClient, logger *zap.Logger) *Stores {
	return &Stores{
		Idempotency: NewRedisIdempotencyStore(client, ""),
		Totals:      NewRedisTotalsCache(client, logger),
		Backend:     "redis",
		client:      client,
	}
}

// CreateInMemory builds process-local stores
func (f *StoreFactory) CreateInMemory() *Stores {
	return &Stores{
		Idempotency: NewInMemoryIdempotencyStore(memorySweepInterval),
		Totals:      NewInMemoryTotalsCache(),
		Backend:     "memory",
	}
}
