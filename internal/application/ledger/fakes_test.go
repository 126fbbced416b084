package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/khata/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// In-memory repository
// =============================================================================

// memoryDebtRepository stores copies of debts and enforces the version check
// the way the SQL repository does
type memoryDebtRepository struct {
	mu     sync.Mutex
	debts  map[uuid.UUID]*ledger.Debt
	saves  int
	onFind func(id uuid.UUID)
}

func newMemoryDebtRepository() *memoryDebtRepository {
	return &memoryDebtRepository{debts: make(map[uuid.UUID]*ledger.Debt)}
}

func copyDebt(d *ledger.Debt) *ledger.Debt {
	out := *d
	out.Payments = make(ledger.Payments, len(d.Payments))
	for i, p := range d.Payments {
		p.Receipts = append([]string(nil), p.Receipts...)
		out.Payments[i] = p
	}
	out.ClearDomainEvents()
	return &out
}

func (r *memoryDebtRepository) put(d *ledger.Debt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debts[d.ID] = copyDebt(d)
}

func (r *memoryDebtRepository) get(id uuid.UUID) *ledger.Debt {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.debts[id]; ok {
		return copyDebt(d)
	}
	return nil
}

func (r *memoryDebtRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Debt, error) {
	if r.onFind != nil {
		r.onFind(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.debts[id]
	if !ok || d.TenantID != tenantID {
		return nil, ledger.ErrDebtNotFound
	}
	return copyDebt(d), nil
}

func (r *memoryDebtRepository) FindByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) ([]*ledger.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ledger.Debt
	for _, d := range r.debts {
		if d.TenantID == tenantID && d.OwnerID == ownerID {
			out = append(out, copyDebt(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (r *memoryDebtRepository) matching(tenantID uuid.UUID, filter ledger.DebtFilter) []*ledger.Debt {
	var out []*ledger.Debt
	for _, d := range r.debts {
		if d.TenantID != tenantID {
			continue
		}
		if filter.OwnerID != nil && d.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.OwnerType != nil && d.OwnerType != *filter.OwnerType {
			continue
		}
		if filter.Status != nil && d.Status() != *filter.Status {
			continue
		}
		out = append(out, copyDebt(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *memoryDebtRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter) ([]*ledger.Debt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.matching(tenantID, filter)
	start := filter.Offset()
	if start > len(all) {
		return []*ledger.Debt{}, nil
	}
	end := start + filter.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *memoryDebtRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(tenantID, filter))), nil
}

func (r *memoryDebtRepository) ForEach(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter, batchSize int, fn func([]*ledger.Debt) error) error {
	r.mu.Lock()
	all := r.matching(tenantID, filter)
	r.mu.Unlock()
	for start := 0; start < len(all); start += batchSize {
		end := start + batchSize
		if end > len(all) {
			end = len(all)
		}
		if err := fn(all[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryDebtRepository) Save(ctx context.Context, debt *ledger.Debt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.debts[debt.ID] = copyDebt(debt)
	return nil
}

func (r *memoryDebtRepository) SaveWithLock(ctx context.Context, debt *ledger.Debt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.debts[debt.ID]
	if !ok {
		return ledger.ErrDebtNotFound
	}
	if stored.Version != debt.Version-1 {
		return ledger.NewConflictError("Debt was modified by another request")
	}
	r.saves++
	r.debts[debt.ID] = copyDebt(debt)
	return nil
}

func (r *memoryDebtRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.debts[id]
	if !ok || d.TenantID != tenantID {
		return ledger.ErrDebtNotFound
	}
	delete(r.debts, id)
	return nil
}

func (r *memoryDebtRepository) DeleteByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, d := range r.debts {
		if d.TenantID == tenantID && d.OwnerID == ownerID {
			delete(r.debts, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryDebtRepository) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

var _ ledger.DebtRepository = (*memoryDebtRepository)(nil)

// =============================================================================
// Mock repository
// =============================================================================

// MockDebtRepository is a mock implementation of DebtRepository
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

func (m *MockDebtRepository) ForEach(ctx context.Context, tenantID uuid.UUID, filter ledger.DebtFilter, batchSize int, fn func([]*ledger.Debt) error) error {
	args := m.Called(ctx, tenantID, filter, batchSize, fn)
	return args.Error(0)
}

func (m *MockDebtRepository) Save(ctx context.Context, debt *ledger.Debt) error {
	args := m.Called(ctx, debt)
	return args.Error(0)
}

func (m *MockDebtRepository) SaveWithLock(ctx context.Context, debt *ledger.Debt) error {
	args := m.Called(ctx, debt)
	return args.Error(0)
}

func (m *MockDebtRepository) DeleteForTenant(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

func (m *MockDebtRepository) DeleteByOwner(ctx context.Context, tenantID, ownerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// Other collaborators
// =============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

type memoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{keys: make(map[string]bool)}
}

func (s *memoryIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *memoryIdempotencyStore) Close() error { return nil }

type memoryTotalsCache struct {
	mu      sync.Mutex
	entries map[string]PersonTotals
	gets    int
}

func newMemoryTotalsCache() *memoryTotalsCache {
	return &memoryTotalsCache{entries: make(map[string]PersonTotals)}
}

func (c *memoryTotalsCache) Get(ctx context.Context, tenantID, ownerID uuid.UUID) (*PersonTotals, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	t, ok := c.entries[tenantID.String()+ownerID.String()]
	if !ok {
		return nil, false, nil
	}
	return &t, true, nil
}

func (c *memoryTotalsCache) Set(ctx context.Context, tenantID, ownerID uuid.UUID, totals *PersonTotals, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tenantID.String()+ownerID.String()] = *totals
	return nil
}

func (c *memoryTotalsCache) Invalidate(ctx context.Context, tenantID, ownerID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, tenantID.String()+ownerID.String())
	return nil
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (s *memoryStorage) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStorage) GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	return "https://files.test/" + key, time.Now().Add(expiresIn), nil
}

func (s *memoryStorage) DeleteObject(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *memoryStorage) ObjectExists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

// failingRecorder delegates to a real recorder and fails on call failOn (1-based)
type failingRecorder struct {
	inner  PaymentRecorder
	failOn int
	err    error
	calls  []RecordPaymentRequest
}

func (f *failingRecorder) RecordPayment(ctx context.Context, tenantID, debtID uuid.UUID, req RecordPaymentRequest) (*PaymentResponse, error) {
	f.calls = append(f.calls, req)
	if len(f.calls) == f.failOn {
		return nil, f.err
	}
	return f.inner.RecordPayment(ctx, tenantID, debtID, req)
}

// =============================================================================
// Fixtures
// =============================================================================

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func seedDebt(repo *memoryDebtRepository, tenantID, ownerID uuid.UUID, total string, date time.Time) *ledger.Debt {
	d, err := ledger.NewDebt(tenantID, ownerID, ledger.OwnerTypeCustomer, dec(total), date, nil)
	if err != nil {
		panic(err)
	}
	d.ClearDomainEvents()
	repo.put(d)
	return d
}
