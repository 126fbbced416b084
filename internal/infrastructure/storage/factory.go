package storage

import (
	"context"
	"fmt"

	ledgerapp "github.com/khata/backend/internal/application/ledger"
	"github.com/khata/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// New returns the receipt store selected by cfg.Driver. The S3 store has
// its bucket created if missing.
func New(ctx context.Context, cfg *config.StorageConfig, logger *zap.Logger) (ledgerapp.ObjectStorage, error) {
	switch cfg.Driver {
	case "s3":
		s, err := NewS3ObjectStorage(cfg, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		logger.Info("Using S3 receipt storage", zap.String("bucket", s.Bucket()))
		return s, nil
	case "", "memory":
		logger.Warn("Using in-memory receipt storage; receipts are lost on restart")
		return NewMemoryObjectStorage(""), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
