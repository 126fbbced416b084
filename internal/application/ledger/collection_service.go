package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/domain/shared"
	"github.com/khata/backend/internal/infrastructure/logger"
	"github.com/khata/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Collection outcomes reported to metrics
const (
	CollectionOutcomeCompleted = "completed"
	CollectionOutcomePartial   = "partial"
	CollectionOutcomeNoPending = "no_pending"
	CollectionOutcomeRejected  = "rejected"
)

// DefaultIdempotencyTTL is how long a collection key stays claimed
const DefaultIdempotencyTTL = 24 * time.Hour

// CollectionService spreads one collected amount across an owner's open
// debts, oldest first ("quick collect").
//
// Allocation is sequential: each payment is recorded and saved before the
// next one starts. A failure part way stops the batch and the payments
// already recorded stay in place.
type CollectionService struct {
	debtRepo       ledger.DebtRepository
	payments       PaymentRecorder
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	metrics        *telemetry.LedgerMetrics
	log            *zap.Logger
}

// NewCollectionService creates a new CollectionService
func NewCollectionService(debtRepo ledger.DebtRepository, payments PaymentRecorder) *CollectionService {
	return &CollectionService{
		debtRepo:       debtRepo,
		payments:       payments,
		idempotencyTTL: DefaultIdempotencyTTL,
		log:            zap.NewNop(),
	}
}

// SetIdempotencyStore enables duplicate detection for collection requests
func (s *CollectionService) SetIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) {
	s.idempotency = store
	if ttl > 0 {
		s.idempotencyTTL = ttl
	}
}

// SetLedgerMetrics sets the ledger metrics collector
func (s *CollectionService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetLogger sets the service logger
func (s *CollectionService) SetLogger(log *zap.Logger) {
	if log != nil {
		s.log = log
	}
}

// QuickCollect applies amount to the owner's open debts in date order.
//
// Receipts and notes are attached to the first payment of the batch only.
// It fails with NoPendingDebtError, without writing, when the owner has no
// open debt. If a step fails after the plan is made, it returns a
// *ledger.PartialAllocationError describing what was applied.
func (s *CollectionService) QuickCollect(ctx context.Context, tenantID, ownerID uuid.UUID, req QuickCollectRequest) (*CollectionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "collection", "quick_collect")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOwnerID, ownerID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)
	log := logger.WithLogger(ctx, s.log).With(
		zap.String("owner_id", ownerID.String()),
		zap.String("amount", req.Amount.String()),
	)

	if !req.Amount.IsPositive() {
		s.metrics.RecordCollection(ctx, tenantID, CollectionOutcomeRejected, decimal.Zero)
		telemetry.RecordError(span, ledger.ErrNonPositive)
		return nil, ledger.ErrNonPositive
	}
	if err := validateReceiptRefs(tenantID, req.Receipts); err != nil {
		s.metrics.RecordCollection(ctx, tenantID, CollectionOutcomeRejected, decimal.Zero)
		telemetry.RecordError(span, err)
		return nil, err
	}

	applied := decimal.Zero
	if req.IdempotencyKey != "" {
		key := collectionKey(tenantID, ownerID, req.IdempotencyKey)
		claimed, claimErr := s.claim(ctx, key)
		if claimErr != nil {
			telemetry.RecordError(span, claimErr)
			return nil, claimErr
		}
		if !claimed {
			err := ledger.NewConflictError("Duplicate collection request")
			telemetry.RecordError(span, err)
			return nil, err
		}
		defer func() {
			if applied.IsZero() {
				s.release(ctx, key)
			}
		}()
	}

	plan, err := s.plan(ctx, tenantID, ownerID, req.Amount)
	if err != nil {
		if ledger.IsNoPendingDebt(err) {
			s.metrics.RecordCollection(ctx, tenantID, CollectionOutcomeNoPending, decimal.Zero)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	done := make([]ledger.Allocation, 0, len(plan.Allocations))
	for i, allocation := range plan.Allocations {
		step := RecordPaymentRequest{
			Amount: allocation.Amount,
			Date:   req.Date,
		}
		if i == 0 {
			step.Receipts = req.Receipts
			step.Notes = req.Notes
		}

		payment, stepErr := s.payments.RecordPayment(ctx, tenantID, allocation.DebtID, step)
		if stepErr != nil {
			partial := &ledger.PartialAllocationError{
				AmountApplied:   applied,
				AmountRemaining: req.Amount.Sub(applied),
				Applied:         done,
				Cause:           stepErr,
			}
			log.Warn("collection stopped part way",
				zap.String("debt_id", allocation.DebtID.String()),
				zap.Int("step", i+1),
				zap.Int("steps", len(plan.Allocations)),
				zap.String("applied", applied.String()),
				zap.Error(stepErr),
			)
			s.metrics.RecordCollection(ctx, tenantID, CollectionOutcomePartial, applied)
			telemetry.RecordError(span, partial)
			return nil, partial
		}

		allocation.PaymentID = payment.ID
		allocation.BalanceAfter = payment.DebtRemaining
		done = append(done, allocation)
		applied = applied.Add(allocation.Amount)
		telemetry.AddEvent(span, "allocation_applied",
			telemetry.SpanAttrDebtID, allocation.DebtID.String(),
			telemetry.SpanAttrAmount, allocation.Amount.String(),
		)
	}

	log.Info("collection applied",
		zap.Int("debts", len(done)),
		zap.String("applied", applied.String()),
		zap.String("unapplied", req.Amount.Sub(applied).String()),
	)
	s.metrics.RecordCollection(ctx, tenantID, CollectionOutcomeCompleted, applied)

	return &CollectionResult{
		OwnerID:     ownerID,
		Requested:   req.Amount,
		Applied:     applied,
		Unapplied:   req.Amount.Sub(applied),
		Allocations: done,
	}, nil
}

// PreviewCollection shows how QuickCollect would spread amount right now.
// Nothing is written.
func (s *CollectionService) PreviewCollection(ctx context.Context, tenantID, ownerID uuid.UUID, amount decimal.Decimal) (*CollectionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "collection", "preview")
	defer span.End()

	if !amount.IsPositive() {
		return nil, ledger.ErrNonPositive
	}
	plan, err := s.plan(ctx, tenantID, ownerID, amount)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &CollectionResult{
		OwnerID:     ownerID,
		Requested:   plan.Requested,
		Applied:     plan.Planned,
		Unapplied:   plan.Unapplied,
		Allocations: plan.Allocations,
		Preview:     true,
	}, nil
}

// plan loads the owner's open debts and distributes amount over them
func (s *CollectionService) plan(ctx context.Context, tenantID, ownerID uuid.UUID, amount decimal.Decimal) (*ledger.AllocationPlan, error) {
	debts, err := s.debtRepo.FindByOwner(ctx, tenantID, ownerID)
	if err != nil {
		return nil, err
	}

	open := ledger.OpenDebts(debts)
	if len(open) == 0 {
		return nil, ledger.NewNoPendingDebtError()
	}

	ledger.SortForAllocation(open)
	plan, err := ledger.PlanAllocation(open, amount)
	if err != nil {
		return nil, err
	}
	if len(plan.Allocations) == 0 {
		return nil, ledger.NewNoPendingDebtError()
	}
	return plan, nil
}

func (s *CollectionService) claim(ctx context.Context, key string) (bool, error) {
	if s.idempotency == nil {
		return true, nil
	}
	claimed, err := s.idempotency.MarkProcessed(ctx, key, s.idempotencyTTL)
	if err != nil {
		return false, fmt.Errorf("failed to claim idempotency key: %w", err)
	}
	return claimed, nil
}

func (s *CollectionService) release(ctx context.Context, key string) {
	if s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		logger.WithLogger(ctx, s.log).Warn("failed to release idempotency key",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func collectionKey(tenantID, ownerID uuid.UUID, requestKey string) string {
	return fmt.Sprintf("%s:%s:%s", tenantID, ownerID, requestKey)
}
