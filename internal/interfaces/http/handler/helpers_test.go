package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/interfaces/http/middleware"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// MockDebtRepository implements ledger.DebtRepository for testing
type MockDebtRepository struct {
	mock.Mock
}

func (m *MockDebtRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Debt, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Debt), args.Error(1)
}

func (m *MockDebtRepository) FindByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) ([]*ledger.Debt, error) {
	args := m.Called(ctx, tenantID, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Debt), args.Error(1)
}

func (m *MockDebtRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter) ([]*ledger.Debt, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Debt), args.Error(1)
}

func (m *MockDebtRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDebtRepository) ForEach(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter, batchSize int, fn func(batch []*ledger.Debt) error) error {
	args := m.Called(ctx, tenantID, filter, batchSize, fn)
	return args.Error(0)
}

func (m *MockDebtRepository) Save(ctx context.Context, debt *ledger.Debt) error {
	return m.Called(ctx, debt).Error(0)
}

func (m *MockDebtRepository) SaveWithLock(ctx context.Context, debt *ledger.Debt) error {
	return m.Called(ctx, debt).Error(0)
}

func (m *MockDebtRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	return m.Called(ctx, tenantID, id).Error(0)
}

func (m *MockDebtRepository) DeleteByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

// envelope mirrors dto.Response with a raw data field for typed decoding
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string          `json:"code"`
		Message   string          `json:"message"`
		RequestID string          `json:"request_id"`
		Details   json.RawMessage `json:"details"`
	} `json:"error"`
	Meta *struct {
		Total      int64 `json:"total"`
		Page       int   `json:"page"`
		PageSize   int   `json:"page_size"`
		TotalPages int   `json:"total_pages"`
	} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, target any) envelope {
	t.Helper()
	env := decodeEnvelope(t, w)
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, target))
	return env
}

// newTestEngine wires the request ID and tenant middleware in front of routes
func newTestEngine(register func(g *gin.RouterGroup)) *gin.Engine {
	engine := gin.New()
	engine.Use(middleware.RequestID())
	g := engine.Group("/api/v1/ledger", middleware.Tenant(middleware.DefaultTenantConfig()))
	register(g)
	return engine
}

func doJSON(engine *gin.Engine, method, path string, tenantID uuid.UUID, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			raw, _ := json.Marshal(b)
			reader = bytes.NewBuffer(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenantID != uuid.Nil {
		req.Header.Set(middleware.TenantHeaderKey, tenantID.String())
	}
	req.Header.Set(middleware.RequestIDHeader, "test-request")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func day(d int) time.Time {
	return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC)
}

func newTestDebt(t *testing.T, tenantID, ownerID uuid.UUID, total string, date time.Time) *ledger.Debt {
	t.Helper()
	debt, err := ledger.NewDebt(tenantID, ownerID, ledger.OwnerTypeCustomer, decimal.RequireFromString(total), date, nil)
	require.NoError(t, err)
	debt.ClearDomainEvents()
	return debt
}
