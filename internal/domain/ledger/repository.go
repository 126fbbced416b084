package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/shared"
)

// DebtFilter defines filtering options for debt queries
type DebtFilter struct {
	shared.Filter
	OwnerID   *uuid.UUID     // Filter by customer or supplier
	OwnerType *OwnerType     // Filter by owner kind
	Status    *PaymentStatus // Filter by derived payment status
	FromDate  *time.Time     // Filter by debt date range start
	ToDate    *time.Time     // Filter by debt date range end
}

// DefaultDebtFilter returns a filter ordered by debt date, newest first
func DefaultDebtFilter() DebtFilter {
	return DebtFilter{Filter: shared.DefaultFilter()}
}

// DebtRepository defines the interface for debt persistence.
// Payments are stored inside their debt and are loaded and saved with it.
type DebtRepository interface {
	// FindByIDForTenant finds a debt by ID within a tenant
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Debt, error)

	// FindByOwner finds every debt of one customer or supplier
	FindByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) ([]*Debt, error)

	// FindAllForTenant finds one page of debts matching the filter
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter DebtFilter) ([]*Debt, error)

	// CountForTenant counts debts matching the filter, ignoring paging
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter DebtFilter) (int64, error)

	// ForEach streams every debt matching the filter in batches of batchSize
	ForEach(ctx context.Context, tenantID uuid.UUID, filter DebtFilter, batchSize int, fn func(batch []*Debt) error) error

	// Save inserts a new debt
	Save(ctx context.Context, debt *Debt) error

	// SaveWithLock updates a debt with optimistic locking (version check).
	// The debt's Version must already be incremented by the mutation.
	// Returns a ConflictError if another writer got there first.
	SaveWithLock(ctx context.Context, debt *Debt) error

	// DeleteForTenant deletes a debt and its payments
	DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error

	// DeleteByOwner deletes every debt of one owner, returning how many went
	DeleteByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (int64, error)
}
