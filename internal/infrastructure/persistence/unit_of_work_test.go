package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/retailops/internal/application/ledger"
	"github.com/erp/retailops/internal/domain/inventory"
	"github.com/erp/retailops/internal/domain/shared"
	"github.com/erp/retailops/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var balanceColumns = []string{
	"tenant_id", "location_id", "product_id", "batch_id",
	"on_hand", "reserved", "in_transit", "damaged", "average_cost",
	"last_sequence", "last_movement_at", "updated_at",
}

func TestBalanceRepository_GetForUpdateLocksRow(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	key := inventory.NewBalanceKey(uuid.New(), uuid.New(), uuid.New(), nil)
	now := time.Now()

	mdb.Mock.ExpectBegin()
	mdb.Mock.ExpectQuery(`SELECT \* FROM "stock_balances" WHERE tenant_id = \$1 AND location_id = \$2 AND product_id = \$3 AND batch_id = \$4 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(balanceColumns).AddRow(
			key.TenantID.String(), key.LocationID.String(), key.ProductID.String(), uuid.Nil.String(),
			"12", "0", "0", "0", "1.5", 4, now, now,
		))
	mdb.Mock.ExpectCommit()

	var got *inventory.StockBalance
	err := NewGormUnitOfWork(mdb.DB, nil).Execute(context.Background(), func(tx ledger.Tx) error {
		var err error
		got, err = tx.Balances().GetForUpdate(context.Background(), key)
		return err
	})

	require.NoError(t, err)
	assert.True(t, got.OnHand.Equal(testutil.Dec("12")))
	assert.Equal(t, int64(4), got.LastSequence)
	mdb.ExpectationsWereMet(t)
}

func TestBalanceRepository_SaveDetectsConcurrentMove(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	key := inventory.NewBalanceKey(uuid.New(), uuid.New(), uuid.New(), nil)
	now := time.Now()

	mdb.Mock.ExpectBegin()
	mdb.Mock.ExpectQuery(`SELECT \* FROM "stock_balances"`).
		WillReturnRows(sqlmock.NewRows(balanceColumns).AddRow(
			key.TenantID.String(), key.LocationID.String(), key.ProductID.String(), uuid.Nil.String(),
			"12", "0", "0", "0", nil, 4, now, now,
		))
	mdb.Mock.ExpectExec(`UPDATE "stock_balances" SET .* WHERE .*last_sequence = \$`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mdb.Mock.ExpectRollback()

	err := NewGormUnitOfWork(mdb.DB, nil).Execute(context.Background(), func(tx ledger.Tx) error {
		b, err := tx.Balances().GetForUpdate(context.Background(), key)
		if err != nil {
			return err
		}
		b.OnHand = b.OnHand.Sub(testutil.Dec("2"))
		b.LastSequence++
		return tx.Balances().Save(context.Background(), b)
	})

	assert.ErrorIs(t, err, shared.ErrConflict)
	mdb.ExpectationsWereMet(t)
}
