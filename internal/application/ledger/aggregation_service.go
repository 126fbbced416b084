package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/infrastructure/logger"
	"github.com/khata/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	// DefaultTotalsCacheTTL bounds how stale a cached person rollup may be
	DefaultTotalsCacheTTL = 10 * time.Minute
	// DefaultAggregationBatchSize is the number of debts read per batch
	DefaultAggregationBatchSize = 500
)

// AggregationService rolls normalized debt amounts up to per-person and
// ledger-wide totals. It never writes to the ledger.
type AggregationService struct {
	debtRepo  ledger.DebtRepository
	cache     TotalsCache
	cacheTTL  time.Duration
	batchSize int
	log       *zap.Logger
}

// NewAggregationService creates a new AggregationService
func NewAggregationService(debtRepo ledger.DebtRepository) *AggregationService {
	return &AggregationService{
		debtRepo:  debtRepo,
		cacheTTL:  DefaultTotalsCacheTTL,
		batchSize: DefaultAggregationBatchSize,
		log:       zap.NewNop(),
	}
}

// SetTotalsCache enables caching of person totals
func (s *AggregationService) SetTotalsCache(cache TotalsCache, ttl time.Duration) {
	s.cache = cache
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

// SetBatchSize sets how many debts GlobalTotals reads at a time
func (s *AggregationService) SetBatchSize(size int) {
	if size > 0 {
		s.batchSize = size
	}
}

// SetLogger sets the service logger
func (s *AggregationService) SetLogger(log *zap.Logger) {
	if log != nil {
		s.log = log
	}
}

// DebtAmounts returns total, paid and pending for one debt
func (s *AggregationService) DebtAmounts(debt *ledger.Debt) ledger.Amounts {
	return ledger.Normalize(debt)
}

// PersonTotals sums every debt of one customer or supplier
func (s *AggregationService) PersonTotals(ctx context.Context, tenantID, ownerID uuid.UUID) (*PersonTotals, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "aggregation", "person_totals")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOwnerID, ownerID.String())

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, tenantID, ownerID)
		if err != nil {
			logger.WithLogger(ctx, s.log).Warn("totals cache read failed", zap.Error(err))
		} else if ok {
			telemetry.SetAttributes(span, "cache_hit", true)
			return cached, nil
		}
	}

	debts, err := s.debtRepo.FindByOwner(ctx, tenantID, ownerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	sum := ledger.ZeroAmounts()
	for _, debt := range debts {
		sum = sum.Add(s.DebtAmounts(debt))
	}
	totals := &PersonTotals{
		OwnerID:          ownerID,
		Total:            sum.Total,
		Paid:             sum.Paid,
		Pending:          sum.Pending,
		TransactionCount: len(debts),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, ownerID, totals, s.cacheTTL); err != nil {
			logger.WithLogger(ctx, s.log).Warn("totals cache write failed", zap.Error(err))
		}
	}
	return totals, nil
}

// GlobalTotals sums every debt in the ledger book, optionally only one
// owner type. Debts are streamed in batches.
func (s *AggregationService) GlobalTotals(ctx context.Context, tenantID uuid.UUID, filter TotalsFilter) (*GlobalTotals, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "aggregation", "global_totals")
	defer span.End()

	query := ledger.DefaultDebtFilter()
	query.OrderBy = "created_at"
	query.OrderDir = "asc"
	query.OwnerType = filter.OwnerType

	sum := ledger.ZeroAmounts()
	var count int64
	err := s.debtRepo.ForEach(ctx, tenantID, query, s.batchSize, func(batch []*ledger.Debt) error {
		for _, debt := range batch {
			sum = sum.Add(s.DebtAmounts(debt))
		}
		count += int64(len(batch))
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, "debt_count", count)
	return &GlobalTotals{
		Total:     sum.Total,
		Paid:      sum.Paid,
		Pending:   sum.Pending,
		DebtCount: count,
	}, nil
}
