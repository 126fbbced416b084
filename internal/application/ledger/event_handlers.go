package ledger

import (
	"context"
	"fmt"

	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/domain/shared"
	"go.uber.org/zap"
)

var ledgerEventTypes = []string{
	ledger.EventTypeDebtCreated,
	ledger.EventTypeDebtUpdated,
	ledger.EventTypeDebtDeleted,
	ledger.EventTypePaymentRecorded,
	ledger.EventTypePaymentEdited,
	ledger.EventTypePaymentDeleted,
}

// TotalsInvalidationHandler drops an owner's cached totals whenever one of
// their debts or payments changes
type TotalsInvalidationHandler struct {
	cache  TotalsCache
	logger *zap.Logger
}

// NewTotalsInvalidationHandler creates a new handler for ledger change events
func NewTotalsInvalidationHandler(cache TotalsCache, logger *zap.Logger) *TotalsInvalidationHandler {
	return &TotalsInvalidationHandler{cache: cache, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *TotalsInvalidationHandler) EventTypes() []string {
	return ledgerEventTypes
}

// Handle invalidates the cached totals of the event's owner
func (h *TotalsInvalidationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	ownerEvent, ok := event.(ledger.OwnerEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	if err := h.cache.Invalidate(ctx, event.TenantID(), ownerEvent.EventOwnerID()); err != nil {
		h.logger.Warn("failed to invalidate totals cache",
			zap.String("owner_id", ownerEvent.EventOwnerID().String()),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// ReceiptCleanupHandler deletes receipt objects that no payment refers to
// any more. A reference is kept while any remaining debt of the same owner
// still holds it. Cleanup is best effort; storage errors are logged only.
type ReceiptCleanupHandler struct {
	attachments *AttachmentService
	debtRepo    ledger.DebtRepository
	logger      *zap.Logger
}

// NewReceiptCleanupHandler creates a new handler for receipt-orphaning events
func NewReceiptCleanupHandler(attachments *AttachmentService, debtRepo ledger.DebtRepository, logger *zap.Logger) *ReceiptCleanupHandler {
	return &ReceiptCleanupHandler{attachments: attachments, debtRepo: debtRepo, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *ReceiptCleanupHandler) EventTypes() []string {
	return []string{
		ledger.EventTypeDebtDeleted,
		ledger.EventTypePaymentEdited,
		ledger.EventTypePaymentDeleted,
	}
}

// Handle deletes the receipts orphaned by the event
func (h *ReceiptCleanupHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	receiptEvent, ok := event.(ledger.ReceiptEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}
	ownerEvent, ok := event.(ledger.OwnerEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	refs := receiptEvent.OrphanedReceipts()
	if len(refs) == 0 {
		return nil
	}

	remaining, err := h.debtRepo.FindByOwner(ctx, event.TenantID(), ownerEvent.EventOwnerID())
	if err != nil {
		h.logger.Warn("receipt cleanup skipped",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
		return err
	}
	inUse := make(map[string]bool)
	for _, d := range remaining {
		for _, ref := range d.Receipts() {
			inUse[ref] = true
		}
	}

	orphaned := make([]string, 0, len(refs))
	for _, ref := range refs {
		if !inUse[ref] {
			orphaned = append(orphaned, ref)
		}
	}
	if len(orphaned) == 0 {
		return nil
	}

	deleted := h.attachments.DeleteReceipts(ctx, event.TenantID(), orphaned)
	h.logger.Debug("orphaned receipts removed",
		zap.String("event_type", event.EventType()),
		zap.Int("requested", len(refs)),
		zap.Int("deleted", deleted),
	)
	return nil
}
