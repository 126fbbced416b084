package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/infrastructure/logger"
	"github.com/khata/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AllowedReceiptTypes is the whitelist of content types accepted as receipts.
// SVG is excluded because it can carry script.
var AllowedReceiptTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"application/pdf": ".pdf",
}

// AttachmentServiceConfig holds configuration for the attachment service
type AttachmentServiceConfig struct {
	// MaxReceiptSize is the largest accepted upload in bytes
	MaxReceiptSize int64
	// DownloadURLExpiry is the duration for which download URLs are valid
	DownloadURLExpiry time.Duration
}

// DefaultAttachmentServiceConfig returns the default configuration
func DefaultAttachmentServiceConfig() AttachmentServiceConfig {
	return AttachmentServiceConfig{
		MaxReceiptSize:    5 << 20,
		DownloadURLExpiry: 1 * time.Hour,
	}
}

// AttachmentService stores receipt and bill images and hands back opaque
// references that payments keep in their receipts list
type AttachmentService struct {
	storage ObjectStorage
	config  AttachmentServiceConfig
	log     *zap.Logger
}

// NewAttachmentService creates a new AttachmentService
func NewAttachmentService(storage ObjectStorage) *AttachmentService {
	return &AttachmentService{
		storage: storage,
		config:  DefaultAttachmentServiceConfig(),
		log:     zap.NewNop(),
	}
}

// SetConfig sets the service configuration
func (s *AttachmentService) SetConfig(config AttachmentServiceConfig) {
	s.config = config
}

// SetLogger sets the service logger
func (s *AttachmentService) SetLogger(log *zap.Logger) {
	if log != nil {
		s.log = log
	}
}

// UploadReceipt stores one receipt image and returns its reference
func (s *AttachmentService) UploadReceipt(ctx context.Context, tenantID uuid.UUID, req UploadReceiptRequest) (*AttachmentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "attachment", "upload")
	defer span.End()

	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(req.ContentType, ";", 2)[0]))
	ext, ok := AllowedReceiptTypes[contentType]
	if !ok {
		return nil, ledger.NewValidationError(fmt.Sprintf("Content type %q is not allowed for receipts", req.ContentType))
	}
	if len(req.Data) == 0 {
		return nil, ledger.NewValidationError("Receipt file is empty")
	}
	if int64(len(req.Data)) > s.config.MaxReceiptSize {
		return nil, ledger.NewValidationError(fmt.Sprintf("Receipt exceeds the %d byte limit", s.config.MaxReceiptSize))
	}

	ref := fmt.Sprintf("%s%s%s", receiptPrefix(tenantID), uuid.New().String(), ext)
	if err := s.storage.Upload(ctx, ref, req.Data, contentType); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.WithLogger(ctx, s.log).Info("receipt uploaded",
		zap.String("ref", ref),
		zap.String("file_name", filepath.Base(req.FileName)),
		zap.Int("size", len(req.Data)),
	)
	return &AttachmentResponse{
		Ref:         ref,
		ContentType: contentType,
		Size:        int64(len(req.Data)),
	}, nil
}

// DownloadURL returns a time-limited link for a receipt reference
func (s *AttachmentService) DownloadURL(ctx context.Context, tenantID uuid.UUID, ref string) (*DownloadURLResponse, error) {
	if !ownsReceipt(tenantID, ref) {
		return nil, ledger.NewNotFoundError("Attachment not found")
	}
	exists, err := s.storage.ObjectExists(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ledger.NewNotFoundError("Attachment not found")
	}

	url, expiresAt, err := s.storage.GenerateDownloadURL(ctx, ref, s.config.DownloadURLExpiry)
	if err != nil {
		return nil, err
	}
	return &DownloadURLResponse{URL: url, ExpiresAt: expiresAt}, nil
}

// DeleteReceipts removes the tenant's receipt objects. References outside
// the tenant's prefix are skipped. Failures are logged and skipped so one
// missing object does not hold up the rest.
func (s *AttachmentService) DeleteReceipts(ctx context.Context, tenantID uuid.UUID, refs []string) int {
	deleted := 0
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if !ownsReceipt(tenantID, ref) {
			logger.WithLogger(ctx, s.log).Warn("refusing to delete foreign receipt",
				zap.String("tenant_id", tenantID.String()),
				zap.String("ref", ref),
			)
			continue
		}
		if err := s.storage.DeleteObject(ctx, ref); err != nil {
			logger.WithLogger(ctx, s.log).Warn("failed to delete receipt",
				zap.String("ref", ref),
				zap.Error(err),
			)
			continue
		}
		deleted++
	}
	return deleted
}

const receiptRoot = "receipts/"

func receiptPrefix(tenantID uuid.UUID) string {
	return receiptRoot + tenantID.String() + "/"
}

func ownsReceipt(tenantID uuid.UUID, ref string) bool {
	return strings.HasPrefix(ref, receiptPrefix(tenantID)) && !strings.Contains(ref, "..")
}

// validateReceiptRefs rejects references into another tenant's receipt
// space. References outside the receipts namespace are kept as opaque text.
func validateReceiptRefs(tenantID uuid.UUID, refs []string) error {
	for _, ref := range refs {
		if strings.HasPrefix(ref, receiptRoot) && !ownsReceipt(tenantID, ref) {
			return ledger.NewValidationError(fmt.Sprintf("Receipt %q does not belong to this account", ref))
		}
	}
	return nil
}
