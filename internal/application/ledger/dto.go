package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Debt DTOs
// =============================================================================

// CreateDebtRequest represents a request to add a credit or purchase
type CreateDebtRequest struct {
	OwnerID     uuid.UUID              `json:"owner_id" binding:"required"`
	OwnerType   string                 `json:"owner_type" binding:"required,oneof=customer supplier"`
	TotalAmount decimal.Decimal        `json:"total_amount" binding:"required,gt=0"`
	Date        *time.Time             `json:"date"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// UpdateDebtRequest represents a request to update a debt.
// Omitted fields are left unchanged.
type UpdateDebtRequest struct {
	TotalAmount *decimal.Decimal       `json:"total_amount" binding:"omitempty,gt=0"`
	Date        *time.Time             `json:"date"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// DebtListFilter holds the query options for listing debts
type DebtListFilter struct {
	OwnerID   string `form:"owner_id" binding:"omitempty,uuid"`
	OwnerType string `form:"owner_type" binding:"omitempty,oneof=customer supplier"`
	Status    string `form:"status" binding:"omitempty,oneof=pending partial paid"`
	FromDate  string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	ToDate    string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string `form:"order_by" binding:"omitempty,oneof=date created_at total_amount"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// DebtResponse represents a debt in API responses
type DebtResponse struct {
	ID            uuid.UUID              `json:"id"`
	TenantID      uuid.UUID              `json:"tenant_id"`
	OwnerID       uuid.UUID              `json:"owner_id"`
	OwnerType     string                 `json:"owner_type"`
	TotalAmount   decimal.Decimal        `json:"total_amount"`
	PaidAmount    decimal.Decimal        `json:"paid_amount"`
	PendingAmount decimal.Decimal        `json:"pending_amount"`
	PaymentStatus string                 `json:"payment_status"`
	Date          time.Time              `json:"date"`
	Payments      []PaymentResponse      `json:"payments"`
	Metadata      map[string]interface{} `json:"metadata"`
	Version       int                    `json:"version"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

// ToDebtResponse converts a domain Debt to DebtResponse
func ToDebtResponse(d *ledger.Debt) DebtResponse {
	amounts := d.Amounts()
	payments := make([]PaymentResponse, 0, len(d.Payments))
	for i := range d.Payments {
		payments = append(payments, ToPaymentResponse(d, &d.Payments[i]))
	}
	return DebtResponse{
		ID:            d.ID,
		TenantID:      d.TenantID,
		OwnerID:       d.OwnerID,
		OwnerType:     string(d.OwnerType),
		TotalAmount:   amounts.Total,
		PaidAmount:    amounts.Paid,
		PendingAmount: amounts.Pending,
		PaymentStatus: d.Status().String(),
		Date:          d.Date,
		Payments:      payments,
		Metadata:      d.Metadata,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ToDebtResponses converts a slice of debts
func ToDebtResponses(debts []*ledger.Debt) []DebtResponse {
	out := make([]DebtResponse, len(debts))
	for i, d := range debts {
		out[i] = ToDebtResponse(d)
	}
	return out
}

// =============================================================================
// Payment DTOs
// =============================================================================

// RecordPaymentRequest represents a payment against one debt
type RecordPaymentRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Date     *time.Time      `json:"date"`
	Receipts []string        `json:"receipts" binding:"max=20"`
	Notes    string          `json:"notes" binding:"max=1000"`
}

// MarkFullyPaidRequest settles whatever remains on a debt
type MarkFullyPaidRequest struct {
	Date     *time.Time `json:"date"`
	Receipts []string   `json:"receipts" binding:"max=20"`
}

// EditPaymentRequest changes a recorded payment. Omitted fields are kept;
// an empty receipts array clears the receipts.
type EditPaymentRequest struct {
	Amount   *decimal.Decimal `json:"amount" binding:"omitempty,gt=0"`
	Date     *time.Time       `json:"date"`
	Receipts []string         `json:"receipts" binding:"omitempty,max=20"`
	Notes    *string          `json:"notes" binding:"omitempty,max=1000"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID             uuid.UUID       `json:"id"`
	DebtID         uuid.UUID       `json:"debt_id"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Receipts       []string        `json:"receipts"`
	Notes          string          `json:"notes,omitempty"`
	IsFinalPayment bool            `json:"is_final_payment"`
	RecordedAt     time.Time       `json:"recorded_at"`
	DebtStatus     string          `json:"debt_status"`
	DebtRemaining  decimal.Decimal `json:"debt_remaining"`
}

// ToPaymentResponse converts a payment of d to PaymentResponse
func ToPaymentResponse(d *ledger.Debt, p *ledger.Payment) PaymentResponse {
	receipts := p.Receipts
	if receipts == nil {
		receipts = []string{}
	}
	return PaymentResponse{
		ID:             p.ID,
		DebtID:         d.ID,
		Amount:         p.Amount,
		Date:           p.Date,
		Receipts:       receipts,
		Notes:          p.Notes,
		IsFinalPayment: p.IsFinalPayment,
		RecordedAt:     p.RecordedAt,
		DebtStatus:     d.Status().String(),
		DebtRemaining:  d.Remaining(),
	}
}

// =============================================================================
// Collection DTOs
// =============================================================================

// QuickCollectRequest spreads one collected amount over an owner's open debts
type QuickCollectRequest struct {
	Amount         decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Date           *time.Time      `json:"date"`
	Receipts       []string        `json:"receipts" binding:"max=20"`
	Notes          string          `json:"notes" binding:"max=1000"`
	IdempotencyKey string          `json:"-"`
}

// PreviewCollectionRequest asks how an amount would be spread without writing
type PreviewCollectionRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,gt=0"`
}

// CollectionResult reports how a collected amount was applied
type CollectionResult struct {
	OwnerID     uuid.UUID           `json:"owner_id"`
	Requested   decimal.Decimal     `json:"requested"`
	Applied     decimal.Decimal     `json:"applied"`
	Unapplied   decimal.Decimal     `json:"unapplied"`
	Allocations []ledger.Allocation `json:"allocations"`
	Preview     bool                `json:"preview"`
}

// =============================================================================
// Aggregation DTOs
// =============================================================================

// PersonTotals is the rollup of one customer's or supplier's debts
type PersonTotals struct {
	OwnerID          uuid.UUID       `json:"owner_id"`
	Total            decimal.Decimal `json:"total"`
	Paid             decimal.Decimal `json:"paid"`
	Pending          decimal.Decimal `json:"pending"`
	TransactionCount int             `json:"transaction_count"`
}

// GlobalTotals is the rollup across the whole ledger book
type GlobalTotals struct {
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid"`
	Pending   decimal.Decimal `json:"pending"`
	DebtCount int64           `json:"debt_count"`
}

// TotalsFilter narrows the global rollup
type TotalsFilter struct {
	OwnerType *ledger.OwnerType
}

// =============================================================================
// Attachment DTOs
// =============================================================================

// UploadReceiptRequest carries one receipt or bill image
type UploadReceiptRequest struct {
	FileName    string
	ContentType string
	Data        []byte
}

// AttachmentResponse returns the reference to store on a payment
type AttachmentResponse struct {
	Ref         string `json:"ref"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// DownloadURLResponse is a time-limited link to an attachment
type DownloadURLResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
