package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ObjectStorage defines the interface for receipt storage operations.
// It is implemented by the infrastructure layer (S3, MinIO or in-memory).
type ObjectStorage interface {
	// Upload stores data under storageKey
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error

	// GenerateDownloadURL generates a presigned URL for downloading a file
	// Returns the download URL and expiration time
	GenerateDownloadURL(ctx context.Context, storageKey string, expiresIn time.Duration) (string, time.Time, error)

	// DeleteObject deletes an object from storage
	DeleteObject(ctx context.Context, storageKey string) error

	// ObjectExists checks if an object exists in storage
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

// TotalsCache keeps per-owner rollups between ledger changes
type TotalsCache interface {
	Get(ctx context.Context, tenantID, ownerID uuid.UUID) (*PersonTotals, bool, error)
	Set(ctx context.Context, tenantID, ownerID uuid.UUID, totals *PersonTotals, ttl time.Duration) error
	Invalidate(ctx context.Context, tenantID, ownerID uuid.UUID) error
}

// PaymentRecorder records a single payment against a debt.
// PaymentService is the production implementation.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, tenantID, debtID uuid.UUID, req RecordPaymentRequest) (*PaymentResponse, error)
}
