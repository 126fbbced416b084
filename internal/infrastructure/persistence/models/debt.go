package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DebtModel is one row of the debts table. Payments live in a JSONB
// column of the row so a debt and its payments always change together.
//
// PaymentStatus is a cache of the derived status, written on every save
// for reporting. Rows written before the column existed hold the default,
// so neither the domain nor the status filter reads it.
type DebtModel struct {
	TenantAggregateModel
	OwnerID       uuid.UUID           `gorm:"type:uuid;not null;index:idx_debts_owner"`
	OwnerType     string              `gorm:"type:varchar(16);not null"`
	TotalAmount   decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	Date          time.Time           `gorm:"not null;index"`
	Payments      ledger.Payments     `gorm:"type:jsonb;not null;default:'[]'"`
	Metadata      datatypes.JSONMap   `gorm:"type:jsonb"`
	PaymentStatus string              `gorm:"type:varchar(16);not null;default:'pending';index"`

	CashAmount   decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	OnlineAmount decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	PaidAmount   decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	PaidCash     decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	PaidOnline   decimal.NullDecimal `gorm:"type:decimal(18,2)"`
}

// TableName returns the table name for GORM
func (DebtModel) TableName() string {
	return "debts"
}

// ToDomain converts the row to a Debt aggregate with no pending events
func (m *DebtModel) ToDomain() *ledger.Debt {
	d := &ledger.Debt{
		OwnerID:     m.OwnerID,
		OwnerType:   ledger.OwnerType(m.OwnerType),
		TotalAmount: m.TotalAmount,
		Date:        m.Date,
		Payments:    m.Payments,
		Metadata:    m.Metadata,
		Legacy: ledger.LegacyAmounts{
			CashAmount:   m.CashAmount,
			OnlineAmount: m.OnlineAmount,
			PaidAmount:   m.PaidAmount,
			PaidCash:     m.PaidCash,
			PaidOnline:   m.PaidOnline,
		},
	}
	m.PopulateTenantAggregateRoot(&d.TenantAggregateRoot)
	if d.Payments == nil {
		d.Payments = ledger.Payments{}
	}
	if d.Metadata == nil {
		d.Metadata = datatypes.JSONMap{}
	}
	return d
}

// FromDomain fills the row from a Debt aggregate
func (m *DebtModel) FromDomain(d *ledger.Debt) {
	m.FromDomainTenantAggregateRoot(d.TenantAggregateRoot)
	m.OwnerID = d.OwnerID
	m.OwnerType = string(d.OwnerType)
	m.TotalAmount = d.TotalAmount
	m.Date = d.Date
	m.Payments = d.Payments
	m.Metadata = d.Metadata
	m.PaymentStatus = string(d.Status())
	m.CashAmount = d.Legacy.CashAmount
	m.OnlineAmount = d.Legacy.OnlineAmount
	m.PaidAmount = d.Legacy.PaidAmount
	m.PaidCash = d.Legacy.PaidCash
	m.PaidOnline = d.Legacy.PaidOnline
}

// DebtModelFromDomain creates a row from a Debt aggregate
func DebtModelFromDomain(d *ledger.Debt) *DebtModel {
	m := &DebtModel{}
	m.FromDomain(d)
	return m
}
