package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPaymentService_RecordPayment(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("payments move the debt through partial to paid", func(t *testing.T) {
		repo := newMemoryDebtRepository()
		publisher := &recordingPublisher{}
		service := NewPaymentService(repo)
		service.SetEventPublisher(publisher)
		debt := seedDebt(repo, tenantID, uuid.New(), "1000", day(1))

		first, err := service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("400")})
		require.NoError(t, err)
		assert.Equal(t, string(ledger.PaymentStatusPartial), first.DebtStatus)
		assert.False(t, first.IsFinalPayment)

		second, err := service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("600")})
		require.NoError(t, err)
		assert.Equal(t, string(ledger.PaymentStatusPaid), second.DebtStatus)
		assert.True(t, second.IsFinalPayment)
		assert.True(t, second.DebtRemaining.IsZero())

		assert.Equal(t, []string{ledger.EventTypePaymentRecorded, ledger.EventTypePaymentRecorded}, publisher.types())
	})

	t.Run("overpayment is rejected and the debt is unchanged", func(t *testing.T) {
		repo := newMemoryDebtRepository()
		service := NewPaymentService(repo)
		debt := seedDebt(repo, tenantID, uuid.New(), "1000", day(1))

		_, err := service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("1200")})
		require.Error(t, err)
		assert.True(t, ledger.IsValidation(err))

		stored := repo.get(debt.ID)
		assert.Empty(t, stored.Payments)
		assert.Equal(t, debt.Version, stored.Version)
		assert.Equal(t, 0, repo.saveCount())
	})

	t.Run("unknown debt", func(t *testing.T) {
		service := NewPaymentService(newMemoryDebtRepository())

		_, err := service.RecordPayment(ctx, tenantID, uuid.New(), RecordPaymentRequest{Amount: dec("10")})
		assert.True(t, ledger.IsNotFound(err))
	})

	t.Run("debt of another tenant is not visible", func(t *testing.T) {
		repo := newMemoryDebtRepository()
		service := NewPaymentService(repo)
		debt := seedDebt(repo, uuid.New(), uuid.New(), "100", day(1))

		_, err := service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("10")})
		assert.True(t, ledger.IsNotFound(err))
	})

	t.Run("stale version surfaces as conflict", func(t *testing.T) {
		debt, err := ledger.NewDebt(tenantID, uuid.New(), ledger.OwnerTypeSupplier, dec("100"), day(1), nil)
		require.NoError(t, err)

		repo := new(MockDebtRepository)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, debt.ID).Return(debt, nil)
		repo.On("SaveWithLock", mock.Anything, debt).Return(ledger.NewConflictError("Debt was modified by another request"))

		service := NewPaymentService(repo)
		_, err = service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("10")})
		assert.True(t, ledger.IsConflict(err))
		repo.AssertExpectations(t)
	})

	t.Run("repository error is returned as is", func(t *testing.T) {
		repoErr := errors.New("connection refused")
		repo := new(MockDebtRepository)
		repo.On("FindByIDForTenant", mock.Anything, tenantID, mock.Anything).Return(nil, repoErr)

		service := NewPaymentService(repo)
		_, err := service.RecordPayment(ctx, tenantID, uuid.New(), RecordPaymentRequest{Amount: dec("10")})
		assert.ErrorIs(t, err, repoErr)
	})
}

func TestPaymentService_ForeignReceiptRejected(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := newMemoryDebtRepository()
	service := NewPaymentService(repo)
	debt := seedDebt(repo, tenantID, uuid.New(), "100", day(1))
	foreign := []string{"receipts/" + uuid.New().String() + "/bill.jpg"}

	_, err := service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("10"), Receipts: foreign})
	assert.True(t, ledger.IsValidation(err))

	_, err = service.MarkFullyPaid(ctx, tenantID, debt.ID, MarkFullyPaidRequest{Receipts: foreign})
	assert.True(t, ledger.IsValidation(err))

	own := []string{"receipts/" + tenantID.String() + "/bill.jpg"}
	recorded, err := service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("10"), Receipts: own})
	require.NoError(t, err)

	_, err = service.EditPayment(ctx, tenantID, debt.ID, recorded.ID, EditPaymentRequest{Receipts: foreign})
	assert.True(t, ledger.IsValidation(err))

	assert.Equal(t, 1, repo.saveCount())
	assert.Equal(t, own, repo.get(debt.ID).Receipts())
}

func TestPaymentService_MarkFullyPaid(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := newMemoryDebtRepository()
	service := NewPaymentService(repo)
	debt := seedDebt(repo, tenantID, uuid.New(), "750", day(1))

	_, err := service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("250")})
	require.NoError(t, err)

	payment, err := service.MarkFullyPaid(ctx, tenantID, debt.ID, MarkFullyPaidRequest{Receipts: []string{"receipts/x.pdf"}})
	require.NoError(t, err)
	assert.True(t, payment.Amount.Equal(dec("500")))
	assert.True(t, payment.IsFinalPayment)
	assert.Equal(t, ledger.PaymentStatusPaid, repo.get(debt.ID).Status())

	_, err = service.MarkFullyPaid(ctx, tenantID, debt.ID, MarkFullyPaidRequest{})
	assert.ErrorIs(t, err, ledger.ErrNothingToPay)
}

func TestPaymentService_EditAndDelete(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	repo := newMemoryDebtRepository()
	publisher := &recordingPublisher{}
	service := NewPaymentService(repo)
	service.SetEventPublisher(publisher)
	debt := seedDebt(repo, tenantID, uuid.New(), "1000", day(1))

	a, err := service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("400")})
	require.NoError(t, err)
	b, err := service.RecordPayment(ctx, tenantID, debt.ID, RecordPaymentRequest{Amount: dec("600")})
	require.NoError(t, err)
	require.True(t, b.IsFinalPayment)

	t.Run("deleting an earlier payment clears the final flag", func(t *testing.T) {
		require.NoError(t, service.DeletePayment(ctx, tenantID, debt.ID, a.ID))

		stored := repo.get(debt.ID)
		assert.Equal(t, ledger.PaymentStatusPartial, stored.Status())
		assert.True(t, stored.Amounts().Paid.Equal(dec("600")))
		assert.Nil(t, stored.Payments.Final())
	})

	t.Run("editing the remaining payment up to the total makes it final", func(t *testing.T) {
		amount := dec("1000")
		edited, err := service.EditPayment(ctx, tenantID, debt.ID, b.ID, EditPaymentRequest{Amount: &amount})
		require.NoError(t, err)
		assert.True(t, edited.IsFinalPayment)
		assert.Equal(t, string(ledger.PaymentStatusPaid), edited.DebtStatus)
	})

	t.Run("editing past the total is rejected", func(t *testing.T) {
		amount := dec("1001")
		_, err := service.EditPayment(ctx, tenantID, debt.ID, b.ID, EditPaymentRequest{Amount: &amount})
		assert.True(t, ledger.IsValidation(err))
	})

	t.Run("unknown payment", func(t *testing.T) {
		err := service.DeletePayment(ctx, tenantID, debt.ID, uuid.New())
		assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
	})

	t.Run("list returns every payment", func(t *testing.T) {
		payments, err := service.ListPayments(ctx, tenantID, debt.ID)
		require.NoError(t, err)
		require.Len(t, payments, 1)
		assert.Equal(t, b.ID, payments[0].ID)
	})

	assert.Contains(t, publisher.types(), ledger.EventTypePaymentDeleted)
	assert.Contains(t, publisher.types(), ledger.EventTypePaymentEdited)
}
