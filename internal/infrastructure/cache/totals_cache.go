package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	ledgerapp "github.com/khata/backend/internal/application/ledger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTotalsPrefix = "ledger:totals:"

func totalsKey(tenantID, ownerID uuid.UUID) string {
	return tenantID.String() + ":" + ownerID.String()
}

// InMemoryTotalsCache keeps per-owner rollups in process memory
type InMemoryTotalsCache struct {
	mu      sync.RWMutex
	entries map[string]totalsEntry
}

type totalsEntry struct {
	totals    ledgerapp.PersonTotals
	expiresAt time.Time
}

// NewInMemoryTotalsCache creates an empty cache
func NewInMemoryTotalsCache() *InMemoryTotalsCache {
	return &InMemoryTotalsCache{entries: make(map[string]totalsEntry)}
}

// Get returns a copy of the cached totals, if present and not expired
func (c *InMemoryTotalsCache) Get(ctx context.Context, tenantID, ownerID uuid.UUID) (*ledgerapp.PersonTotals, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[totalsKey(tenantID, ownerID)]
	c.mu.RUnlock()

	if !ok || !time.Now().Before(e.expiresAt) {
		return nil, false, nil
	}
	totals := e.totals
	return &totals, true, nil
}

// Set stores a copy of totals for ttl
func (c *InMemoryTotalsCache) Set(ctx context.Context, tenantID, ownerID uuid.UUID, totals *ledgerapp.PersonTotals, ttl time.Duration) error {
	if totals == nil {
		return nil
	}
	c.mu.Lock()
	c.entries[totalsKey(tenantID, ownerID)] = totalsEntry{totals: *totals, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

// Invalidate drops the cached totals of one owner
func (c *InMemoryTotalsCache) Invalidate(ctx context.Context, tenantID, ownerID uuid.UUID) error {
	c.mu.Lock()
	delete(c.entries, totalsKey(tenantID, ownerID))
	c.mu.Unlock()
	return nil
}

// RedisTotalsCache stores per-owner rollups in Redis as JSON
type RedisTotalsCache struct {
	client    redis.UniversalClient
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisTotalsCache creates a cache on a shared client
func NewRedisTotalsCache(client redis.UniversalClient, logger *zap.Logger) *RedisTotalsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTotalsCache{client: client, keyPrefix: defaultTotalsPrefix, logger: logger}
}

// Get returns the cached totals. A corrupted entry is deleted and reported
// as a miss.
func (c *RedisTotalsCache) Get(ctx context.Context, tenantID, ownerID uuid.UUID) (*ledgerapp.PersonTotals, bool, error) {
	key := c.keyPrefix + totalsKey(tenantID, ownerID)

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read totals from cache: %w", err)
	}

	var totals ledgerapp.PersonTotals
	if err := json.Unmarshal(data, &totals); err != nil {
		c.logger.Warn("Dropping corrupted totals cache entry", zap.String("key", key), zap.Error(err))
		_ = c.client.Del(ctx, key).Err()
		return nil, false, nil
	}
	return &totals, true, nil
}

// Set stores totals for ttl
func (c *RedisTotalsCache) Set(ctx context.Context, tenantID, ownerID uuid.UUID, totals *ledgerapp.PersonTotals, ttl time.Duration) error {
	if totals == nil {
		return nil
	}
	data, err := json.Marshal(totals)
	if err != nil {
		return fmt.Errorf("failed to marshal totals: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+totalsKey(tenantID, ownerID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write totals to cache: %w", err)
	}
	return nil
}

// Invalidate drops the cached totals of one owner
func (c *RedisTotalsCache) Invalidate(ctx context.Context, tenantID, ownerID uuid.UUID) error {
	if err := c.client.Del(ctx, c.keyPrefix+totalsKey(tenantID, ownerID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate totals: %w", err)
	}
	return nil
}

var (
	_ ledgerapp.TotalsCache = (*InMemoryTotalsCache)(nil)
	_ ledgerapp.TotalsCache = (*RedisTotalsCache)(nil)
)
