package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/models"
)

func buildTransactionService(t *testing.T) (*transactionServiceImpl, int64, int64) {
	t.Helper()
	db := setupTestDB(t)
	userID := seedUser(t, db, "trader", "1000")
	stockID := seedStock(t, db, "AAPL", "NASDAQ", "100", time.Now())
	svc := NewTransactionService(db).(*transactionServiceImpl)
	return svc, userID, stockID
}

func TestCreateTransaction_BuyCreatesPosition(t *testing.T) {
	svc, userID, stockID := buildTransactionService(t)

	entry, position, err := svc.CreateTransaction(context.Background(), userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(10), time.Time{})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.NotZero(t, entry.ID)
	assert.False(t, entry.ExecutedAt.IsZero())

	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, position.AvgCostPrice.Equal(decimal.NewFromInt(10)))
	assert.True(t, position.RealizedPnl.IsZero())
}

func TestCreateTransaction_SellAppliesFIFO(t *testing.T) {
	svc, userID, stockID := buildTransactionService(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	_, _, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(10), base)
	require.NoError(t, err)
	_, _, err = svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(20), base.Add(time.Hour))
	require.NoError(t, err)

	_, position, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionSell, decimal.NewFromInt(15), decimal.NewFromInt(30), base.Add(2*time.Hour))
	require.NoError(t, err)

	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, position.AvgCostPrice.Equal(decimal.NewFromInt(20)))
	assert.True(t, position.RealizedPnl.Equal(decimal.NewFromInt(250)))
}

func TestCreateTransaction_ValidationFailures(t *testing.T) {
	svc, userID, stockID := buildTransactionService(t)
	ctx := context.Background()

	_, _, err := svc.CreateTransaction(ctx, userID, stockID,
		"short", decimal.NewFromInt(1), decimal.NewFromInt(1), time.Time{})
	assert.True(t, models.IsValidation(err), "direction: %v", err)

	_, _, err = svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.Zero, decimal.NewFromInt(1), time.Time{})
	assert.True(t, models.IsValidation(err), "quantity: %v", err)

	_, _, err = svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(1), decimal.NewFromInt(-1), time.Time{})
	assert.True(t, models.IsValidation(err), "unit price: %v", err)
}

func TestCreateTransaction_UnknownStock(t *testing.T) {
	svc, userID, _ := buildTransactionService(t)

	_, _, err := svc.CreateTransaction(context.Background(), userID, 9999,
		models.DirectionBuy, decimal.NewFromInt(1), decimal.NewFromInt(1), time.Time{})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateTransaction_OversellRejectedAndNothingWritten(t *testing.T) {
	svc, userID, stockID := buildTransactionService(t)
	ctx := context.Background()

	_, _, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(10), time.Time{})
	require.NoError(t, err)

	_, _, err = svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionSell, decimal.NewFromInt(11), decimal.NewFromInt(10), time.Time{})
	assert.True(t, models.IsValidation(err), "got %v", err)

	// Neither ledger nor position moved.
	ledger, err := model.ListTransactionsForPosition(svc.db, userID, stockID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	position, err := model.GetPosition(svc.db, userID, stockID)
	require.NoError(t, err)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(10)))
}

func TestCreateTransaction_AppendAndRecomputeAreAtomic(t *testing.T) {
	svc, userID, stockID := buildTransactionService(t)
	ctx := context.Background()

	_, _, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(10), time.Time{})
	require.NoError(t, err)

	// Fail between the ledger append and the position update: the whole
	// operation must roll back, leaving both untouched.
	svc.testHookAfterAppend = func() error { return errors.New("injected failure") }
	_, _, err = svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(5), decimal.NewFromInt(50), time.Time{})
	require.Error(t, err)
	svc.testHookAfterAppend = nil

	ledger, err := model.ListTransactionsForPosition(svc.db, userID, stockID)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	position, err := model.GetPosition(svc.db, userID, stockID)
	require.NoError(t, err)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, position.AvgCostPrice.Equal(decimal.NewFromInt(10)))
}

func TestDeleteTransaction_RecomputesPosition(t *testing.T) {
	svc, userID, stockID := buildTransactionService(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	_, _, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(10), base)
	require.NoError(t, err)
	second, _, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(20), base.Add(time.Hour))
	require.NoError(t, err)

	position, err := svc.DeleteTransaction(ctx, userID, second.ID)
	require.NoError(t, err)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, position.AvgCostPrice.Equal(decimal.NewFromInt(10)))
}

func TestDeleteTransaction_BuyDeletionLeavingOversoldRejected(t *testing.T) {
	svc, userID, stockID := buildTransactionService(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	buy, _, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(10), base)
	require.NoError(t, err)
	_, _, err = svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionSell, decimal.NewFromInt(5), decimal.NewFromInt(15), base.Add(time.Hour))
	require.NoError(t, err)

	_, err = svc.DeleteTransaction(ctx, userID, buy.ID)
	assert.True(t, models.IsValidation(err), "got %v", err)

	// The rejected delete rolled back; the ledger still has both entries.
	ledger, err := model.ListTransactionsForPosition(svc.db, userID, stockID)
	require.NoError(t, err)
	assert.Len(t, ledger, 2)
}

func TestDeleteTransaction_OtherUsersTransactionInvisible(t *testing.T) {
	svc, userID, stockID := buildTransactionService(t)
	ctx := context.Background()

	entry, _, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(10), time.Time{})
	require.NoError(t, err)

	otherID := seedUser(t, svc.db, "intruder", "0")
	_, err = svc.DeleteTransaction(ctx, otherID, entry.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateTransaction_ReopenedPositionKeepsRealized(t *testing.T) {
	svc, userID, stockID := buildTransactionService(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	_, _, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(10), decimal.NewFromInt(10), base)
	require.NoError(t, err)
	_, closed, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionSell, decimal.NewFromInt(10), decimal.NewFromInt(12), base.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, closed.Quantity.IsZero())
	require.True(t, closed.RealizedPnl.Equal(decimal.NewFromInt(20)))

	// Buying back in does not reset the realized figure from the closed era.
	_, reopened, err := svc.CreateTransaction(ctx, userID, stockID,
		models.DirectionBuy, decimal.NewFromInt(5), decimal.NewFromInt(30), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, reopened.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, reopened.RealizedPnl.Equal(decimal.NewFromInt(20)))
}
