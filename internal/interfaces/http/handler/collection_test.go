package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	ledgerapp "github.com/khata/backend/internal/application/ledger"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/infrastructure/cache"
	"github.com/khata/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newCollectionEngine(svc *ledgerapp.CollectionService) *gin.Engine {
	h := NewCollectionHandler(svc)
	return newTestEngine(func(g *gin.RouterGroup) {
		g.POST("/owners/:owner_id/collect", h.QuickCollect)
		g.POST("/owners/:owner_id/collect/preview", h.Preview)
	})
}

func newCollectionService(repo *MockDebtRepository) *ledgerapp.CollectionService {
	return ledgerapp.NewCollectionService(repo, ledgerapp.NewPaymentService(repo))
}

func collectPath(ownerID uuid.UUID) string {
	return "/api/v1/ledger/owners/" + ownerID.String() + "/collect"
}

// ownerWithTwoDebts returns an owner's debts of 100 (older) and 200, wired
// into repo for both the owner listing and per-debt reloads
func ownerWithTwoDebts(t *testing.T, repo *MockDebtRepository, tenantID, ownerID uuid.UUID) (older, newer *ledger.Debt) {
	t.Helper()
	newer = newTestDebt(t, tenantID, ownerID, "200", day(5))
	older = newTestDebt(t, tenantID, ownerID, "100", day(1))
	repo.On("FindByOwner", mock.Anything, tenantID, ownerID).Return([]*ledger.Debt{newer, older}, nil)
	repo.On("FindByIDForTenant", mock.Anything, tenantID, older.ID).Return(older, nil)
	repo.On("FindByIDForTenant", mock.Anything, tenantID, newer.ID).Return(newer, nil)
	return older, newer
}

func TestCollectionHandler_QuickCollect_OldestFirst(t *testing.T) {
	repo := new(MockDebtRepository)
	engine := newCollectionEngine(newCollectionService(repo))
	tenantID, ownerID := uuid.New(), uuid.New()
	older, newer := ownerWithTwoDebts(t, repo, tenantID, ownerID)
	repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

	w := doJSON(engine, http.MethodPost, collectPath(ownerID), tenantID, map[string]any{
		"amount":   "150",
		"receipts": []string{"receipts/slip.png"},
		"notes":    "weekly",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var result ledgerapp.CollectionResult
	decodeData(t, w, &result)
	assert.True(t, result.Applied.Equal(decimal.NewFromInt(150)))
	assert.True(t, result.Unapplied.IsZero())
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, older.ID, result.Allocations[0].DebtID)
	assert.True(t, result.Allocations[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, newer.ID, result.Allocations[1].DebtID)
	assert.True(t, result.Allocations[1].Amount.Equal(decimal.NewFromInt(50)))
	assert.True(t, result.Allocations[1].BalanceAfter.Equal(decimal.NewFromInt(150)))

	assert.Equal(t, ledger.PaymentStatusPaid, older.Status())
	assert.Equal(t, ledger.PaymentStatusPartial, newer.Status())
	assert.Equal(t, []string{"receipts/slip.png"}, older.Payments[0].Receipts)
	assert.Equal(t, "weekly", older.Payments[0].Notes)
	assert.Empty(t, newer.Payments[0].Receipts)
	assert.Empty(t, newer.Payments[0].Notes)
}

func TestCollectionHandler_QuickCollect_NoPendingDebt(t *testing.T) {
	repo := new(MockDebtRepository)
	engine := newCollectionEngine(newCollectionService(repo))
	tenantID, ownerID := uuid.New(), uuid.New()
	paid := newTestDebt(t, tenantID, ownerID, "60", day(1))
	_, err := paid.MarkFullyPaid(day(2), nil)
	require.NoError(t, err)
	repo.On("FindByOwner", mock.Anything, tenantID, ownerID).Return([]*ledger.Debt{paid}, nil)

	w := doJSON(engine, http.MethodPost, collectPath(ownerID), tenantID, map[string]any{"amount": "10"})

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "NO_PENDING_DEBT", decodeEnvelope(t, w).Error.Code)
	repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestCollectionHandler_QuickCollect_Partial(t *testing.T) {
	repo := new(MockDebtRepository)
	engine := newCollectionEngine(newCollectionService(repo))
	tenantID, ownerID := uuid.New(), uuid.New()
	older, newer := ownerWithTwoDebts(t, repo, tenantID, ownerID)
	repo.On("SaveWithLock", mock.Anything, older).Return(nil)
	repo.On("SaveWithLock", mock.Anything, newer).Return(ledger.NewConflictError("Debt was modified by another writer"))

	w := doJSON(engine, http.MethodPost, collectPath(ownerID), tenantID, map[string]any{"amount": "250"})

	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	assert.Equal(t, "PARTIAL_ALLOCATION", env.Error.Code)

	var details PartialAllocationDetails
	require.NoError(t, json.Unmarshal(env.Error.Details, &details))
	assert.True(t, details.AmountApplied.Equal(decimal.NewFromInt(100)))
	assert.True(t, details.AmountRemaining.Equal(decimal.NewFromInt(150)))
	require.Len(t, details.Applied, 1)
	assert.Equal(t, older.ID, details.Applied[0].DebtID)
	assert.Contains(t, details.Cause, "modified by another writer")

	// The first payment stands.
	assert.Equal(t, ledger.PaymentStatusPaid, older.Status())
}

func TestCollectionHandler_QuickCollect_DuplicateKey(t *testing.T) {
	repo := new(MockDebtRepository)
	svc := newCollectionService(repo)
	store := cache.NewInMemoryIdempotencyStore(0)
	defer store.Close()
	svc.SetIdempotencyStore(store, 0)
	engine := newCollectionEngine(svc)
	tenantID, ownerID := uuid.New(), uuid.New()
	ownerWithTwoDebts(t, repo, tenantID, ownerID)
	repo.On("SaveWithLock", mock.Anything, mock.Anything).Return(nil)

	send := func() *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]any{"amount": "50"})
		req := httptest.NewRequest(http.MethodPost, collectPath(ownerID), bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.TenantHeaderKey, tenantID.String())
		req.Header.Set(middleware.IdempotencyKeyHeader, "  collect-42  ")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	first := send()
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := send()
	require.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, "CONCURRENCY_CONFLICT", decodeEnvelope(t, second).Error.Code)
	repo.AssertNumberOfCalls(t, "SaveWithLock", 1)
}

func TestCollectionHandler_Preview(t *testing.T) {
	repo := new(MockDebtRepository)
	engine := newCollectionEngine(newCollectionService(repo))
	tenantID, ownerID := uuid.New(), uuid.New()
	older, newer := ownerWithTwoDebts(t, repo, tenantID, ownerID)

	w := doJSON(engine, http.MethodPost, collectPath(ownerID)+"/preview", tenantID, map[string]any{"amount": "500"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var result ledgerapp.CollectionResult
	decodeData(t, w, &result)
	assert.True(t, result.Preview)
	assert.True(t, result.Applied.Equal(decimal.NewFromInt(300)))
	assert.True(t, result.Unapplied.Equal(decimal.NewFromInt(200)))
	require.Len(t, result.Allocations, 2)
	assert.Equal(t, older.ID, result.Allocations[0].DebtID)
	assert.Equal(t, newer.ID, result.Allocations[1].DebtID)

	assert.Empty(t, older.Payments)
	assert.Empty(t, newer.Payments)
	repo.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
}

func TestCollectionHandler_RejectsLongIdempotencyKey(t *testing.T) {
	repo := new(MockDebtRepository)
	engine := newCollectionEngine(newCollectionService(repo))
	ownerID := uuid.New()

	body, _ := json.Marshal(map[string]any{"amount": "5"})
	req := httptest.NewRequest(http.MethodPost, collectPath(ownerID), bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.TenantHeaderKey, uuid.NewString())
	req.Header.Set(middleware.IdempotencyKeyHeader, string(bytes.Repeat([]byte("k"), 200)))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "FindByOwner", mock.Anything, mock.Anything, mock.Anything)
}
