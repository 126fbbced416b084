package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormDebtRepository implements ledger.DebtRepository using GORM
type GormDebtRepository struct {
	db *gorm.DB
}

// NewGormDebtRepository creates a new GormDebtRepository
func NewGormDebtRepository(db *gorm.DB) *GormDebtRepository {
	return &GormDebtRepository{db: db}
}

// FindByIDForTenant finds a debt by ID within a tenant
func (r *GormDebtRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Debt, error) {
	var model models.DebtModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrDebtNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByOwner finds every debt of one customer or supplier, oldest first
func (r *GormDebtRepository) FindByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) ([]*ledger.Debt, error) {
	var debtModels []models.DebtModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND owner_id = ?", tenantID, ownerID).
		Order("date ASC").Order("created_at ASC").
		Find(&debtModels).Error; err != nil {
		return nil, err
	}
	return toDomainDebts(debtModels), nil
}

// FindAllForTenant finds one page of debts matching the filter.
// A status filter is applied to the derived status after loading, so
// paging happens in memory in that case.
func (r *GormDebtRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter) ([]*ledger.Debt, error) {
	var debtModels []models.DebtModel
	query := r.applyFilter(r.scoped(ctx, tenantID), filter)

	orderBy := ValidateSortField(filter.OrderBy, DebtSortFields, "date")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))
	if filter.PageSize > 0 && filter.Status == nil {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	if err := query.Find(&debtModels).Error; err != nil {
		return nil, err
	}
	debts := withStatus(toDomainDebts(debtModels), filter.Status)
	if filter.Status != nil && filter.PageSize > 0 {
		debts = page(debts, filter.Offset(), filter.PageSize)
	}
	return debts, nil
}

// CountForTenant counts debts matching the filter, ignoring paging
func (r *GormDebtRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter) (int64, error) {
	var count int64
	if filter.Status == nil {
		if err := r.applyFilter(r.scoped(ctx, tenantID), filter).Count(&count).Error; err != nil {
			return 0, err
		}
		return count, nil
	}

	err := r.ForEach(ctx, tenantID, filter, 0, func(batch []*ledger.Debt) error {
		count += int64(len(batch))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ForEach streams every debt matching the filter in batches of at most
// batchSize. Batches left empty by the status filter are skipped.
func (r *GormDebtRepository) ForEach(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter, batchSize int, fn func(batch []*ledger.Debt) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	var batch []models.DebtModel
	result := r.applyFilter(r.scoped(ctx, tenantID), filter).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			debts := withStatus(toDomainDebts(batch), filter.Status)
			if len(debts) == 0 {
				return nil
			}
			return fn(debts)
		})
	return result.Error
}

// Save inserts a new debt
func (r *GormDebtRepository) Save(ctx context.Context, debt *ledger.Debt) error {
	model := models.DebtModelFromDomain(debt)
	return r.db.WithContext(ctx).Create(model).Error
}

// SaveWithLock updates a debt only if the stored version is the one it was
// loaded at. Every column is written so cleared legacy amounts become NULL.
func (r *GormDebtRepository) SaveWithLock(ctx context.Context, debt *ledger.Debt) error {
	model := models.DebtModelFromDomain(debt)
	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("id", "tenant_id", "created_at").
		Where("tenant_id = ? AND id = ? AND version = ?", debt.TenantID, debt.ID, debt.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.NewConflictError("The debt has been modified by another request")
	}
	return nil
}

// DeleteForTenant deletes a debt and its payments
func (r *GormDebtRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.DebtModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ledger.ErrDebtNotFound
	}
	return nil
}

// DeleteByOwner deletes every debt of one owner
func (r *GormDebtRepository) DeleteByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Delete(&models.DebtModel{}, "tenant_id = ? AND owner_id = ?", tenantID, ownerID)
	return result.RowsAffected, result.Error
}

func (r *GormDebtRepository) scoped(ctx context.Context, tenantID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.DebtModel{}).Where("tenant_id = ?", tenantID)
}

func (r *GormDebtRepository) applyFilter(query *gorm.DB, filter ledger.DebtFilter) *gorm.DB {
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.OwnerType != nil {
		query = query.Where("owner_type = ?", string(*filter.OwnerType))
	}
	if filter.FromDate != nil {
		query = query.Where("date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("date <= ?", *filter.ToDate)
	}
	return query
}

// withStatus keeps the debts whose derived status matches. The cached
// payment_status column is stale on rows written before it existed.
func withStatus(debts []*ledger.Debt, status *ledger.PaymentStatus) []*ledger.Debt {
	if status == nil {
		return debts
	}
	kept := debts[:0]
	for _, d := range debts {
		if d.Status() == *status {
			kept = append(kept, d)
		}
	}
	return kept
}

func page(debts []*ledger.Debt, offset, size int) []*ledger.Debt {
	if offset >= len(debts) {
		return []*ledger.Debt{}
	}
	end := offset + size
	if end > len(debts) {
		end = len(debts)
	}
	return debts[offset:end]
}

func toDomainDebts(debtModels []models.DebtModel) []*ledger.Debt {
	debts := make([]*ledger.Debt, len(debtModels))
	for i := range debtModels {
		debts[i] = debtModels[i].ToDomain()
	}
	return debts
}

// Ensure GormDebtRepository implements DebtRepository
var _ ledger.DebtRepository = (*GormDebtRepository)(nil)
