package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers request keys so a retried request is not applied twice
type IdempotencyStore interface {
	// MarkProcessed claims a key for ttl.
	// Returns true if the key was newly claimed, false if it was already taken.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key is currently claimed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops a claim so the same key may be retried
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
