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
	"go.uber.org/zap"
)

// DebtService manages the lifecycle of debts: create, read, update and delete
type DebtService struct {
	debtRepo       ledger.DebtRepository
	eventPublisher shared.EventPublisher
	log            *zap.Logger
}

// NewDebtService creates a new DebtService
func NewDebtService(debtRepo ledger.DebtRepository) *DebtService {
	return &DebtService{
		debtRepo: debtRepo,
		log:      zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *DebtService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLogger sets the service logger
func (s *DebtService) SetLogger(log *zap.Logger) {
	if log != nil {
		s.log = log
	}
}

// CreateDebt adds a new credit (customer) or purchase (supplier) with no payments
func (s *DebtService) CreateDebt(ctx context.Context, tenantID uuid.UUID, req CreateDebtRequest) (*DebtResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "debt", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOwnerID, req.OwnerID.String(),
		telemetry.SpanAttrAmount, req.TotalAmount.String(),
	)

	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}
	debt, err := ledger.NewDebt(tenantID, req.OwnerID, ledger.OwnerType(req.OwnerType), req.TotalAmount, date, req.Metadata)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.debtRepo.Save(ctx, debt); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.WithLogger(ctx, s.log).Info("debt created",
		zap.String("debt_id", debt.ID.String()),
		zap.String("owner_id", debt.OwnerID.String()),
		zap.String("total_amount", req.TotalAmount.String()),
	)
	publishEvents(ctx, s.eventPublisher, s.log, debt)

	response := ToDebtResponse(debt)
	return &response, nil
}

// GetDebt retrieves one debt with its payments
func (s *DebtService) GetDebt(ctx context.Context, tenantID, debtID uuid.UUID) (*DebtResponse, error) {
	debt, err := s.debtRepo.FindByIDForTenant(ctx, tenantID, debtID)
	if err != nil {
		return nil, err
	}
	response := ToDebtResponse(debt)
	return &response, nil
}

// ListDebts returns one page of debts and the total count for the filter
func (s *DebtService) ListDebts(ctx context.Context, tenantID uuid.UUID, req DebtListFilter) ([]DebtResponse, int64, error) {
	filter, err := toDomainFilter(req)
	if err != nil {
		return nil, 0, err
	}

	debts, err := s.debtRepo.FindAllForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.debtRepo.CountForTenant(ctx, tenantID, filter)
	if err != nil {
		return nil, 0, err
	}
	return ToDebtResponses(debts), total, nil
}

// UpdateDebt changes the total, date or metadata of a debt.
// The total may not drop below what has already been paid.
func (s *DebtService) UpdateDebt(ctx context.Context, tenantID, debtID uuid.UUID, req UpdateDebtRequest) (*DebtResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "debt", "update")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDebtID, debtID.String())

	debt, err := s.debtRepo.FindByIDForTenant(ctx, tenantID, debtID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	changed, err := debt.Update(req.TotalAmount, req.Date, req.Metadata)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if changed {
		if err := s.debtRepo.SaveWithLock(ctx, debt); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		publishEvents(ctx, s.eventPublisher, s.log, debt)
	}

	response := ToDebtResponse(debt)
	return &response, nil
}

// DeleteDebt deletes a debt together with all its payments
func (s *DebtService) DeleteDebt(ctx context.Context, tenantID, debtID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "debt", "delete")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDebtID, debtID.String())

	debt, err := s.debtRepo.FindByIDForTenant(ctx, tenantID, debtID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	debt.MarkDeleted()
	if err := s.debtRepo.DeleteForTenant(ctx, tenantID, debtID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	logger.WithLogger(ctx, s.log).Info("debt deleted",
		zap.String("debt_id", debtID.String()),
		zap.Int("payment_count", len(debt.Payments)),
	)
	publishEvents(ctx, s.eventPublisher, s.log, debt)
	return nil
}

// DeleteOwnerDebts removes every debt of a customer or supplier.
// It is the cascade run when the owner itself is deleted.
func (s *DebtService) DeleteOwnerDebts(ctx context.Context, tenantID, ownerID uuid.UUID) (int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "debt", "delete_owner_debts")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrOwnerID, ownerID.String())

	debts, err := s.debtRepo.FindByOwner(ctx, tenantID, ownerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	deleted, err := s.debtRepo.DeleteByOwner(ctx, tenantID, ownerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, err
	}

	aggregates := make([]shared.AggregateRoot, 0, len(debts))
	for _, debt := range debts {
		debt.MarkDeleted()
		aggregates = append(aggregates, debt)
	}
	publishEvents(ctx, s.eventPublisher, s.log, aggregates...)

	telemetry.SetAttributes(span, "deleted_count", deleted)
	return deleted, nil
}

func toDomainFilter(req DebtListFilter) (ledger.DebtFilter, error) {
	filter := ledger.DefaultDebtFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}

	if req.OwnerID != "" {
		ownerID, err := uuid.Parse(req.OwnerID)
		if err != nil {
			return filter, ledger.NewValidationError("Invalid owner_id")
		}
		filter.OwnerID = &ownerID
	}
	if req.OwnerType != "" {
		ownerType := ledger.OwnerType(req.OwnerType)
		if !ownerType.IsValid() {
			return filter, ledger.NewValidationError(fmt.Sprintf("Invalid owner type: %s", req.OwnerType))
		}
		filter.OwnerType = &ownerType
	}
	if req.Status != "" {
		status := ledger.PaymentStatus(req.Status)
		if !status.IsValid() {
			return filter, ledger.NewValidationError(fmt.Sprintf("Invalid payment status: %s", req.Status))
		}
		filter.Status = &status
	}
	if req.FromDate != "" {
		from, err := time.Parse("2006-01-02", req.FromDate)
		if err != nil {
			return filter, ledger.NewValidationError("Invalid from date, expected YYYY-MM-DD")
		}
		filter.FromDate = &from
	}
	if req.ToDate != "" {
		to, err := time.Parse("2006-01-02", req.ToDate)
		if err != nil {
			return filter, ledger.NewValidationError("Invalid to date, expected YYYY-MM-DD")
		}
		end := to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.ToDate = &end
	}
	return filter, nil
}
