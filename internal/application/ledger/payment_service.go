package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/domain/shared"
	"github.com/khata/backend/internal/infrastructure/logger"
	"github.com/khata/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PaymentService records, edits and deletes payments against one debt.
// Every mutation reloads the debt, recomputes it from its full payment list
// and saves it under a version check.
type PaymentService struct {
	debtRepo       ledger.DebtRepository
	eventPublisher shared.EventPublisher
	metrics        *telemetry.LedgerMetrics
	log            *zap.Logger
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(debtRepo ledger.DebtRepository) *PaymentService {
	return &PaymentService{
		debtRepo: debtRepo,
		log:      zap.NewNop(),
	}
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLedgerMetrics sets the ledger metrics collector
func (s *PaymentService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetLogger sets the service logger
func (s *PaymentService) SetLogger(log *zap.Logger) {
	if log != nil {
		s.log = log
	}
}

// RecordPayment appends a payment to a debt.
// The amount must be positive and no more than the remaining balance.
func (s *PaymentService) RecordPayment(ctx context.Context, tenantID, debtID uuid.UUID, req RecordPaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDebtID, debtID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	if !req.Amount.IsPositive() {
		telemetry.RecordError(span, ledger.ErrNonPositive)
		return nil, ledger.ErrNonPositive
	}
	if err := validateReceiptRefs(tenantID, req.Receipts); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	debt, err := s.debtRepo.FindByIDForTenant(ctx, tenantID, debtID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payment, err := debt.RecordPayment(req.Amount, dateOrZero(req.Date), req.Receipts, req.Notes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return s.save(ctx, span, debt, payment, "payment recorded", true)
}

// MarkFullyPaid records the whole remaining balance as the final payment
func (s *PaymentService) MarkFullyPaid(ctx context.Context, tenantID, debtID uuid.UUID, req MarkFullyPaidRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "mark_fully_paid")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrDebtID, debtID.String())

	if err := validateReceiptRefs(tenantID, req.Receipts); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	debt, err := s.debtRepo.FindByIDForTenant(ctx, tenantID, debtID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payment, err := debt.MarkFullyPaid(dateOrZero(req.Date), req.Receipts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return s.save(ctx, span, debt, payment, "debt settled", true)
}

// EditPayment changes a recorded payment and recomputes the final flag
// across the whole payment list
func (s *PaymentService) EditPayment(ctx context.Context, tenantID, debtID, paymentID uuid.UUID, req EditPaymentRequest) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "edit")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDebtID, debtID.String(),
		telemetry.SpanAttrPaymentID, paymentID.String(),
	)

	if err := validateReceiptRefs(tenantID, req.Receipts); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	debt, err := s.debtRepo.FindByIDForTenant(ctx, tenantID, debtID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payment, err := debt.EditPayment(paymentID, ledger.PaymentChanges{
		Amount:   req.Amount,
		Date:     req.Date,
		Receipts: req.Receipts,
		Notes:    req.Notes,
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	return s.save(ctx, span, debt, payment, "payment edited", false)
}

// DeletePayment removes a payment; paid amount and status are recomputed
// from the payments that remain
func (s *PaymentService) DeletePayment(ctx context.Context, tenantID, debtID, paymentID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "delete")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrDebtID, debtID.String(),
		telemetry.SpanAttrPaymentID, paymentID.String(),
	)

	debt, err := s.debtRepo.FindByIDForTenant(ctx, tenantID, debtID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	removed, err := debt.DeletePayment(paymentID)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	_, err = s.save(ctx, span, debt, removed, "payment deleted", false)
	return err
}

// ListPayments returns the payments of a debt in recording order
func (s *PaymentService) ListPayments(ctx context.Context, tenantID, debtID uuid.UUID) ([]PaymentResponse, error) {
	debt, err := s.debtRepo.FindByIDForTenant(ctx, tenantID, debtID)
	if err != nil {
		return nil, err
	}
	out := make([]PaymentResponse, 0, len(debt.Payments))
	for i := range debt.Payments {
		out = append(out, ToPaymentResponse(debt, &debt.Payments[i]))
	}
	return out, nil
}

func (s *PaymentService) save(ctx context.Context, span trace.Span, debt *ledger.Debt, payment *ledger.Payment, msg string, counted bool) (*PaymentResponse, error) {
	if err := s.debtRepo.SaveWithLock(ctx, debt); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	status := debt.Status()
	telemetry.AddEvent(span, msg,
		telemetry.SpanAttrPaymentID, payment.ID.String(),
		telemetry.SpanAttrStatus, status.String(),
	)
	logger.WithLogger(ctx, s.log).Info(msg,
		zap.String("debt_id", debt.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("status", status.String()),
		zap.Bool("is_final_payment", payment.IsFinalPayment),
	)
	if counted {
		s.metrics.RecordPayment(ctx, debt.TenantID, debt.OwnerType, payment.Amount)
	}
	publishEvents(ctx, s.eventPublisher, s.log, debt)

	response := ToPaymentResponse(debt, payment)
	return &response, nil
}

func dateOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
