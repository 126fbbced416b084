// Package ledger holds the debt ledger domain: debts owed by or to a shop,
// the payments settling them, and the rules that keep both consistent.
package ledger

import "github.com/shopspring/decimal"

// PaymentStatus is the settlement state of a debt. It is always derived from
// the debt's amounts and never set directly.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // nothing paid yet
	PaymentStatusPartial PaymentStatus = "partial" // 0 < paid < total
	PaymentStatusPaid    PaymentStatus = "paid"    // paid == total
)

// IsValid checks if the status is a known PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartial, PaymentStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsOpen reports whether the debt still has something left to collect
func (s PaymentStatus) IsOpen() bool {
	return s != PaymentStatusPaid
}

// Derive computes the status for a total and the sum paid against it.
// A paid sum at or above the total counts as paid.
func Derive(total, paid decimal.Decimal) PaymentStatus {
	switch {
	case !paid.IsPositive():
		return PaymentStatusPending
	case paid.LessThan(total):
		return PaymentStatusPartial
	default:
		return PaymentStatusPaid
	}
}

// OwnerType tells a customer credit (udhar) from a supplier purchase
type OwnerType string

const (
	OwnerTypeCustomer OwnerType = "customer"
	OwnerTypeSupplier OwnerType = "supplier"
)

// IsValid checks if the owner type is valid
func (t OwnerType) IsValid() bool {
	return t == OwnerTypeCustomer || t == OwnerTypeSupplier
}
