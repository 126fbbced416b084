package ledger

import (
	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeDebt is the aggregate type name used in events
const AggregateTypeDebt = "Debt"

// Event type constants
const (
	EventTypeDebtCreated     = "ledger.debt.created"
	EventTypeDebtUpdated     = "ledger.debt.updated"
	EventTypeDebtDeleted     = "ledger.debt.deleted"
	EventTypePaymentRecorded = "ledger.payment.recorded"
	EventTypePaymentEdited   = "ledger.payment.edited"
	EventTypePaymentDeleted  = "ledger.payment.deleted"
)

// OwnerEvent is implemented by every ledger event so subscribers can find
// the customer or supplier whose balances moved.
type OwnerEvent interface {
	shared.DomainEvent
	EventOwnerID() uuid.UUID
}

// DebtCreatedEvent is raised when a debt is added to the ledger
type DebtCreatedEvent struct {
	shared.BaseDomainEvent
	OwnerID     uuid.UUID       `json:"owner_id"`
	OwnerType   OwnerType       `json:"owner_type"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// EventOwnerID returns the debt owner
func (e *DebtCreatedEvent) EventOwnerID() uuid.UUID { return e.OwnerID }

// DebtUpdatedEvent is raised when total, date or metadata change
type DebtUpdatedEvent struct {
	shared.BaseDomainEvent
	OwnerID     uuid.UUID       `json:"owner_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      PaymentStatus   `json:"status"`
}

// EventOwnerID returns the debt owner
func (e *DebtUpdatedEvent) EventOwnerID() uuid.UUID { return e.OwnerID }

// DebtDeletedEvent is raised when a debt and its payments are removed.
// Receipts lists every attachment reference the debt held.
type DebtDeletedEvent struct {
	shared.BaseDomainEvent
	OwnerID  uuid.UUID `json:"owner_id"`
	Receipts []string  `json:"receipts"`
}

// EventOwnerID returns the debt owner
func (e *DebtDeletedEvent) EventOwnerID() uuid.UUID { return e.OwnerID }

// PaymentRecordedEvent is raised when a payment is appended
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	OwnerID        uuid.UUID       `json:"owner_id"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	IsFinalPayment bool            `json:"is_final_payment"`
	Status         PaymentStatus   `json:"status"`
}

// EventOwnerID returns the debt owner
func (e *PaymentRecordedEvent) EventOwnerID() uuid.UUID { return e.OwnerID }

// PaymentEditedEvent is raised when a payment changes.
// DroppedReceipts lists references no longer attached to the payment.
type PaymentEditedEvent struct {
	shared.BaseDomainEvent
	OwnerID         uuid.UUID       `json:"owner_id"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PaymentStatus   `json:"status"`
	DroppedReceipts []string        `json:"dropped_receipts,omitempty"`
}

// EventOwnerID returns the debt owner
func (e *PaymentEditedEvent) EventOwnerID() uuid.UUID { return e.OwnerID }

// PaymentDeletedEvent is raised when a payment is removed
type PaymentDeletedEvent struct {
	shared.BaseDomainEvent
	OwnerID   uuid.UUID     `json:"owner_id"`
	PaymentID uuid.UUID     `json:"payment_id"`
	Receipts  []string      `json:"receipts"`
	Status    PaymentStatus `json:"status"`
}

// EventOwnerID returns the debt owner
func (e *PaymentDeletedEvent) EventOwnerID() uuid.UUID { return e.OwnerID }

// ReceiptEvent is implemented by events that orphan attachment references
type ReceiptEvent interface {
	shared.DomainEvent
	OrphanedReceipts() []string
}

// OrphanedReceipts returns the references the deleted debt held
func (e *DebtDeletedEvent) OrphanedReceipts() []string { return e.Receipts }

// OrphanedReceipts returns the references the deleted payment held
func (e *PaymentDeletedEvent) OrphanedReceipts() []string { return e.Receipts }

// OrphanedReceipts returns references removed by the edit
func (e *PaymentEditedEvent) OrphanedReceipts() []string { return e.DroppedReceipts }

// NewDebtCreatedEvent creates a new DebtCreatedEvent
func NewDebtCreatedEvent(d *Debt) *DebtCreatedEvent {
	return &DebtCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDebtCreated, AggregateTypeDebt, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		OwnerType:       d.OwnerType,
		TotalAmount:     NormalizeTotal(d),
	}
}

// NewDebtUpdatedEvent creates a new DebtUpdatedEvent
func NewDebtUpdatedEvent(d *Debt) *DebtUpdatedEvent {
	return &DebtUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDebtUpdated, AggregateTypeDebt, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		TotalAmount:     NormalizeTotal(d),
		Status:          d.Status(),
	}
}

// NewDebtDeletedEvent creates a new DebtDeletedEvent
func NewDebtDeletedEvent(d *Debt) *DebtDeletedEvent {
	return &DebtDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDebtDeleted, AggregateTypeDebt, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		Receipts:        d.Receipts(),
	}
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(d *Debt, p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypeDebt, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		IsFinalPayment:  p.IsFinalPayment,
		Status:          d.Status(),
	}
}

// NewPaymentEditedEvent creates a new PaymentEditedEvent
func NewPaymentEditedEvent(d *Debt, p *Payment, dropped []string) *PaymentEditedEvent {
	return &PaymentEditedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentEdited, AggregateTypeDebt, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		PaymentID:       p.ID,
		Amount:          p.Amount,
		Status:          d.Status(),
		DroppedReceipts: dropped,
	}
}

// NewPaymentDeletedEvent creates a new PaymentDeletedEvent
func NewPaymentDeletedEvent(d *Debt, p *Payment) *PaymentDeletedEvent {
	return &PaymentDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentDeleted, AggregateTypeDebt, d.ID, d.TenantID),
		OwnerID:         d.OwnerID,
		PaymentID:       p.ID,
		Receipts:        p.Receipts,
		Status:          d.Status(),
	}
}
