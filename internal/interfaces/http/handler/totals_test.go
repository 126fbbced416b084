package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ledgerapp "github.com/khata/backend/internal/application/ledger"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTotalsEngine(repo *MockDebtRepository) *gin.Engine {
	h := NewTotalsHandler(ledgerapp.NewAggregationService(repo))
	return newTestEngine(func(g *gin.RouterGroup) {
		g.GET("/owners/:owner_id/totals", h.PersonTotals)
		g.GET("/totals", h.GlobalTotals)
	})
}

// legacyDebt builds a debt stored before the unified total existed
func legacyDebt(tenantID, ownerID uuid.UUID, cash, online, paid string) *ledger.Debt {
	debt := &ledger.Debt{OwnerID: ownerID, OwnerType: ledger.OwnerTypeCustomer, Date: day(1)}
	debt.ID = uuid.New()
	debt.TenantID = tenantID
	debt.Legacy.CashAmount = decimal.NewNullDecimal(decimal.RequireFromString(cash))
	debt.Legacy.OnlineAmount = decimal.NewNullDecimal(decimal.RequireFromString(online))
	debt.Legacy.PaidAmount = decimal.NewNullDecimal(decimal.RequireFromString(paid))
	return debt
}

func TestTotalsHandler_PersonTotals(t *testing.T) {
	repo := new(MockDebtRepository)
	engine := newTotalsEngine(repo)
	tenantID, ownerID := uuid.New(), uuid.New()
	current := newTestDebt(t, tenantID, ownerID, "500", day(2))
	_, err := current.RecordPayment(decimal.NewFromInt(120), day(3), nil, "")
	require.NoError(t, err)
	repo.On("FindByOwner", mock.Anything, tenantID, ownerID).
		Return([]*ledger.Debt{current, legacyDebt(tenantID, ownerID, "300", "200", "100")}, nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/ledger/owners/"+ownerID.String()+"/totals", tenantID, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var totals ledgerapp.PersonTotals
	decodeData(t, w, &totals)
	assert.Equal(t, ownerID, totals.OwnerID)
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(1000)), totals.Total.String())
	assert.True(t, totals.Paid.Equal(decimal.NewFromInt(220)), totals.Paid.String())
	assert.True(t, totals.Pending.Equal(decimal.NewFromInt(780)), totals.Pending.String())
	assert.Equal(t, 2, totals.TransactionCount)
}

func TestTotalsHandler_GlobalTotals(t *testing.T) {
	repo := new(MockDebtRepository)
	engine := newTotalsEngine(repo)
	tenantID := uuid.New()
	batches := [][]*ledger.Debt{
		{newTestDebt(t, tenantID, uuid.New(), "100", day(1)), newTestDebt(t, tenantID, uuid.New(), "50", day(2))},
		{legacyDebt(tenantID, uuid.New(), "40", "10", "50")},
	}

	repo.On("ForEach", mock.Anything, tenantID,
		mock.MatchedBy(func(f ledger.DebtFilter) bool {
			return f.OwnerType != nil && *f.OwnerType == ledger.OwnerTypeCustomer
		}),
		ledgerapp.DefaultAggregationBatchSize, mock.Anything).
		Run(func(args mock.Arguments) {
			fn := args.Get(4).(func([]*ledger.Debt) error)
			for _, batch := range batches {
				require.NoError(t, fn(batch))
			}
		}).
		Return(nil)

	w := doJSON(engine, http.MethodGet, "/api/v1/ledger/totals?owner_type=customer", tenantID, nil)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var totals ledgerapp.GlobalTotals
	decodeData(t, w, &totals)
	assert.True(t, totals.Total.Equal(decimal.NewFromInt(200)))
	assert.True(t, totals.Paid.Equal(decimal.NewFromInt(50)))
	assert.True(t, totals.Pending.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, int64(3), totals.DebtCount)
}

func TestTotalsHandler_GlobalTotals_InvalidOwnerType(t *testing.T) {
	repo := new(MockDebtRepository)
	engine := newTotalsEngine(repo)

	w := doJSON(engine, http.MethodGet, "/api/v1/ledger/totals?owner_type=vendor", uuid.New(), nil)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).Error.Code)
	repo.AssertNotCalled(t, "ForEach", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTotalsHandler_GlobalTotals_StoreError(t *testing.T) {
	repo := new(MockDebtRepository)
	engine := newTotalsEngine(repo)
	tenantID := uuid.New()
	repo.On("ForEach", mock.Anything, tenantID, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("scan failed"))

	w := doJSON(engine, http.MethodGet, "/api/v1/ledger/totals", tenantID, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
