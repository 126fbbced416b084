package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const openingBalanceNote = "opening balance carried from legacy amounts"

// Debt is one credit or purchase event: a principal owed by a customer
// (udhar) or owed to a supplier, settled by a growing list of payments.
//
// The status is never stored on the aggregate. It is derived from the
// normalized total and paid amounts each time it is read.
type Debt struct {
	shared.TenantAggregateRoot
	OwnerID     uuid.UUID           `json:"owner_id"`
	OwnerType   OwnerType           `json:"owner_type"`
	TotalAmount decimal.NullDecimal `json:"total_amount"`
	Date        time.Time           `json:"date"`
	Payments    Payments            `json:"payments"`
	Metadata    datatypes.JSONMap   `json:"metadata"`
	Legacy      LegacyAmounts       `json:"-"`
}

// NewDebt creates a debt with no payments
func NewDebt(
	tenantID, ownerID uuid.UUID,
	ownerType OwnerType,
	totalAmount decimal.Decimal,
	date time.Time,
	metadata map[string]interface{},
) (*Debt, error) {
	if ownerID == uuid.Nil {
		return nil, NewValidationError("Owner ID cannot be empty")
	}
	if !ownerType.IsValid() {
		return nil, NewValidationError(fmt.Sprintf("Invalid owner type: %s", ownerType))
	}
	if !totalAmount.IsPositive() {
		return nil, NewValidationError("Total amount must be greater than zero")
	}
	if date.IsZero() {
		date = time.Now()
	}

	d := &Debt{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		OwnerID:             ownerID,
		OwnerType:           ownerType,
		TotalAmount:         decimal.NewNullDecimal(totalAmount),
		Date:                date,
		Payments:            Payments{},
		Metadata:            datatypes.JSONMap(metadata),
	}
	if d.Metadata == nil {
		d.Metadata = datatypes.JSONMap{}
	}

	d.AddDomainEvent(NewDebtCreatedEvent(d))
	return d, nil
}

// Status derives the payment status from the normalized amounts
func (d *Debt) Status() PaymentStatus {
	return Derive(NormalizeTotal(d), NormalizePaid(d))
}

// Amounts returns the normalized total, paid and pending amounts
func (d *Debt) Amounts() Amounts {
	return Normalize(d)
}

// Remaining returns what is still owed on the debt
func (d *Debt) Remaining() decimal.Decimal {
	return Normalize(d).Pending
}

// IsLegacy reports whether the debt still carries pre-unification amounts
func (d *Debt) IsLegacy() bool {
	return !d.TotalAmount.Valid || !d.Legacy.IsEmpty()
}

// Receipts returns every attachment reference held by the debt's payments
func (d *Debt) Receipts() []string {
	return d.Payments.Receipts()
}

// Update changes the principal, date or metadata and reports whether
// anything was given to change. A nil argument, or a zero date, leaves that
// field unchanged. The total cannot go below what has already been paid.
func (d *Debt) Update(totalAmount *decimal.Decimal, date *time.Time, metadata map[string]interface{}) (bool, error) {
	if date != nil && date.IsZero() {
		date = nil
	}
	if totalAmount == nil && date == nil && metadata == nil {
		return false, nil
	}

	s := d.unified()
	if totalAmount != nil {
		if !totalAmount.IsPositive() {
			return false, NewValidationError("Total amount must be greater than zero")
		}
		if totalAmount.LessThan(s.payments.Sum()) {
			return false, ErrBelowPaid
		}
		s.total = *totalAmount
	}
	if err := d.commit(s); err != nil {
		return false, err
	}
	if date != nil {
		d.Date = *date
	}
	if metadata != nil {
		d.Metadata = datatypes.JSONMap(metadata)
	}

	d.AddDomainEvent(NewDebtUpdatedEvent(d))
	d.Touch()
	d.IncrementVersion()
	return true, nil
}

// RecordPayment appends a payment of amount against the debt.
// The amount must be positive and no more than what remains.
func (d *Debt) RecordPayment(amount decimal.Decimal, date time.Time, receipts []string, notes string) (*Payment, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositive
	}

	s := d.unified()
	remaining := s.total.Sub(s.payments.Sum())
	if !remaining.IsPositive() {
		return nil, ErrNothingToPay
	}
	if amount.GreaterThan(remaining) {
		return nil, NewValidationError(fmt.Sprintf("Amount %s exceeds the remaining balance %s",
			amount.StringFixed(2), remaining.StringFixed(2)))
	}

	payment := newPayment(amount, date, receipts, notes)
	s.payments = append(s.payments, payment)
	if err := d.commit(s); err != nil {
		return nil, err
	}

	recorded := d.Payments[len(d.Payments)-1]
	d.AddDomainEvent(NewPaymentRecordedEvent(d, &recorded))
	d.Touch()
	d.IncrementVersion()
	return &recorded, nil
}

// MarkFullyPaid records the whole remaining balance as one final payment
func (d *Debt) MarkFullyPaid(date time.Time, receipts []string) (*Payment, error) {
	remaining := d.Remaining()
	if !remaining.IsPositive() {
		return nil, ErrNothingToPay
	}
	return d.RecordPayment(remaining, date, receipts, "")
}

// PaymentChanges lists the fields an edit may replace. Nil means unchanged.
type PaymentChanges struct {
	Amount   *decimal.Decimal
	Date     *time.Time
	Receipts []string
	Notes    *string
}

// EditPayment replaces fields of one payment and recomputes which payment,
// if any, is final.
func (d *Debt) EditPayment(paymentID uuid.UUID, changes PaymentChanges) (*Payment, error) {
	s := d.unified()
	idx := s.payments.IndexOf(paymentID)
	if idx < 0 {
		return nil, ErrPaymentNotFound
	}

	target := s.payments[idx]
	previousReceipts := target.Receipts
	if changes.Amount != nil {
		if !changes.Amount.IsPositive() {
			return nil, ErrNonPositive
		}
		others := s.payments.Sum().Sub(target.Amount)
		if others.Add(*changes.Amount).GreaterThan(s.total) {
			return nil, NewValidationError(fmt.Sprintf("Amount %s exceeds the remaining balance %s",
				changes.Amount.StringFixed(2), s.total.Sub(others).StringFixed(2)))
		}
		target.Amount = *changes.Amount
	}
	if changes.Date != nil && !changes.Date.IsZero() {
		target.Date = *changes.Date
	}
	if changes.Receipts != nil {
		target.Receipts = cloneReceipts(changes.Receipts)
	}
	if changes.Notes != nil {
		target.Notes = *changes.Notes
	}
	s.payments[idx] = target

	if err := d.commit(s); err != nil {
		return nil, err
	}

	edited := d.Payments[idx]
	d.AddDomainEvent(NewPaymentEditedEvent(d, &edited, droppedRefs(previousReceipts, edited.Receipts)))
	d.Touch()
	d.IncrementVersion()
	return &edited, nil
}

// DeletePayment removes one payment. Paid and status are recomputed from the
// payments that remain, so the status may fall back to partial or pending.
func (d *Debt) DeletePayment(paymentID uuid.UUID) (*Payment, error) {
	s := d.unified()
	idx := s.payments.IndexOf(paymentID)
	if idx < 0 {
		return nil, ErrPaymentNotFound
	}

	removed := s.payments[idx]
	s.payments = append(s.payments[:idx:idx], s.payments[idx+1:]...)
	if err := d.commit(s); err != nil {
		return nil, err
	}

	d.AddDomainEvent(NewPaymentDeletedEvent(d, &removed))
	d.Touch()
	d.IncrementVersion()
	return &removed, nil
}

// MarkDeleted raises the deletion event. The repository removes the row
// and its embedded payments together.
func (d *Debt) MarkDeleted() {
	d.AddDomainEvent(NewDebtDeletedEvent(d))
}

// CheckInvariants verifies the stored payments against the total
func (d *Debt) CheckInvariants() error {
	return checkState(ledgerState{total: NormalizeTotal(d), payments: d.Payments})
}

// ledgerState is the unified total and payment list a mutation works on
// before it is committed back to the debt.
type ledgerState struct {
	total    decimal.Decimal
	payments Payments
}

// unified returns a copy of the debt's money in the unified model.
// A legacy paid amount not covered by the payments list becomes an opening
// payment dated at the debt date.
func (d *Debt) unified() ledgerState {
	s := ledgerState{
		total:    NormalizeTotal(d),
		payments: d.Payments.clone(),
	}
	if d.Legacy.IsEmpty() {
		return s
	}

	uncovered := NormalizePaid(d).Sub(s.payments.Sum())
	if room := s.total.Sub(s.payments.Sum()); uncovered.GreaterThan(room) {
		uncovered = room
	}
	if uncovered.IsPositive() {
		opening := newPayment(uncovered, d.Date, nil, openingBalanceNote)
		s.payments = append(Payments{opening}, s.payments...)
	}
	return s
}

// commit validates s and writes it back, dropping any legacy amounts
func (d *Debt) commit(s ledgerState) error {
	s.payments.markFinal(s.total)
	if err := checkState(s); err != nil {
		return err
	}
	d.TotalAmount = decimal.NewNullDecimal(s.total)
	d.Payments = s.payments
	d.Legacy = LegacyAmounts{}
	return nil
}

func checkState(s ledgerState) error {
	for _, p := range s.payments {
		if !p.Amount.IsPositive() {
			return NewValidationError("Payment amounts must be greater than zero")
		}
	}
	if s.payments.Sum().GreaterThan(s.total) {
		return NewValidationError("Payments exceed the debt total")
	}
	return nil
}

func droppedRefs(before, after []string) []string {
	kept := make(map[string]struct{}, len(after))
	for _, ref := range after {
		kept[ref] = struct{}{}
	}
	var dropped []string
	for _, ref := range before {
		if _, ok := kept[ref]; !ok {
			dropped = append(dropped, ref)
		}
	}
	return dropped
}
