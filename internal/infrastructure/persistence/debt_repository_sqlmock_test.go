package persistence

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/khata/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockRepo(t *testing.T) (*GormDebtRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)
	return NewGormDebtRepository(db), mock
}

func TestGormDebtRepository_SaveWithLock_Conflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	debt, err := ledger.NewDebt(uuid.New(), uuid.New(), ledger.OwnerTypeSupplier, decimal.NewFromInt(900), day(1), nil)
	require.NoError(t, err)
	_, err = debt.RecordPayment(decimal.NewFromInt(100), day(2), nil, "")
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "debts" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.SaveWithLock(context.Background(), debt)
	assert.True(t, ledger.IsConflict(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDebtRepository_SaveWithLock_ChecksPreviousVersion(t *testing.T) {
	repo, mock := newMockRepo(t)
	debt, err := ledger.NewDebt(uuid.New(), uuid.New(), ledger.OwnerTypeCustomer, decimal.NewFromInt(900), day(1), nil)
	require.NoError(t, err)
	_, err = debt.RecordPayment(decimal.NewFromInt(100), day(2), nil, "")
	require.NoError(t, err)
	require.Equal(t, 2, debt.Version)

	mock.ExpectExec(`UPDATE "debts" SET .* WHERE .*tenant_id = \$\d+ AND id = \$\d+ AND version = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveWithLock(context.Background(), debt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDebtRepository_DatabaseErrors(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("find propagates driver error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "debts" WHERE tenant_id = $1 AND id = $2`)).
			WillReturnError(boom)

		_, err := repo.FindByIDForTenant(context.Background(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, boom)
		assert.False(t, ledger.IsNotFound(err))
	})

	t.Run("find maps no rows to not found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "debts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindByIDForTenant(context.Background(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, ledger.ErrDebtNotFound)
	})

	t.Run("count propagates driver error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "debts"`)).
			WillReturnError(sql.ErrConnDone)

		_, err := repo.CountForTenant(context.Background(), uuid.New(), ledger.DefaultDebtFilter())
		assert.ErrorIs(t, err, sql.ErrConnDone)
	})

	t.Run("delete by owner propagates driver error", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "debts" WHERE tenant_id = $1 AND owner_id = $2`)).
			WillReturnError(boom)

		_, err := repo.DeleteByOwner(context.Background(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, boom)
	})
}

func TestGormDebtRepository_FindAllForTenant_SortWhitelist(t *testing.T) {
	repo, mock := newMockRepo(t)
	filter := ledger.DefaultDebtFilter()
	filter.OrderBy = "date; DROP TABLE debts"
	filter.OrderDir = "sideways"

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "debts" WHERE tenant_id = $1 ORDER BY date DESC LIMIT $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	debts, err := repo.FindAllForTenant(context.Background(), uuid.New(), filter)
	require.NoError(t, err)
	assert.Empty(t, debts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
