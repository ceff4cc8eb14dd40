package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/processors"
)

// transactionServiceImpl serializes all writes to one (user, stock) pair
// behind a keyed mutex and commits the ledger append together with the
// position recompute in a single database transaction. Either both land or
// neither does; the ledger and the position can never disagree.
type transactionServiceImpl struct {
	db    *sql.DB
	locks *keyedMutex
	now   func() time.Time

	// testHookAfterAppend, when set, runs between the ledger append and the
	// position update so tests can simulate a mid-operation failure.
	testHookAfterAppend func() error
}

// NewTransactionService builds the ledger/position writer on db.
func NewTransactionService(db *sql.DB) TransactionService {
	return &transactionServiceImpl{
		db:    db,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

func positionKey(userID, stockID int64) string {
	return fmt.Sprintf("%d:%d", userID, stockID)
}

func (s *transactionServiceImpl) CreateTransaction(ctx context.Context, userID, stockID int64,
	direction models.Direction, quantity, unitPrice decimal.Decimal,
	executedAt time.Time) (*models.Transaction, *models.Position, error) {

	if direction != models.DirectionBuy && direction != models.DirectionSell {
		return nil, nil, models.NewValidationError("direction", "must be buy or sell")
	}
	if !quantity.IsPositive() {
		return nil, nil, models.NewValidationError("quantity", "must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, nil, models.NewValidationError("unit_price", "must not be negative")
	}
	if executedAt.IsZero() {
		executedAt = s.now()
	}

	if _, err := model.GetStockByID(s.db, stockID); err != nil {
		return nil, nil, err
	}

	unlock := s.locks.Lock(positionKey(userID, stockID))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ledger, err := model.ListTransactionsForPosition(tx, userID, stockID)
	if err != nil {
		return nil, nil, err
	}

	// A sell may never exceed what the ledger has bought. Rejecting here,
	// before the append, leaves ledger and position untouched.
	if direction == models.DirectionSell {
		totalBuy, totalSell := processors.TotalQuantities(ledger)
		if totalSell.Add(quantity).GreaterThan(totalBuy) {
			return nil, nil, models.NewValidationError("quantity",
				fmt.Sprintf("sell of %s exceeds held quantity %s",
					quantity.String(), totalBuy.Sub(totalSell).String()))
		}
	}

	entry := &models.Transaction{
		UserID:     userID,
		StockID:    stockID,
		Direction:  direction,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		ExecutedAt: executedAt,
		CreatedAt:  s.now(),
	}
	if err := model.InsertTransaction(tx, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to append transaction: %w", err)
	}

	if s.testHookAfterAppend != nil {
		if err := s.testHookAfterAppend(); err != nil {
			return nil, nil, err
		}
	}

	position, err := s.recomputePosition(tx, userID, stockID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.L.Info("Transaction recorded",
		"userID", userID, "stockID", stockID, "direction", direction,
		"quantity", quantity.String(), "unitPrice", unitPrice.String())
	return entry, position, nil
}

func (s *transactionServiceImpl) DeleteTransaction(ctx context.Context, userID, transactionID int64) (*models.Position, error) {
	// Resolve the stock first so the right pair gets locked.
	existing, err := model.GetTransactionByID(s.db, transactionID, userID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(positionKey(userID, existing.StockID))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Re-read under the lock; a concurrent delete may have won.
	existing, err = model.GetTransactionByID(tx, transactionID, userID)
	if err != nil {
		return nil, err
	}

	if err := model.DeleteTransaction(tx, transactionID); err != nil {
		return nil, err
	}

	ledger, err := model.ListTransactionsForPosition(tx, userID, existing.StockID)
	if err != nil {
		return nil, err
	}

	// Removing a buy must not leave the remaining ledger oversold.
	if existing.Direction == models.DirectionBuy {
		totalBuy, totalSell := processors.TotalQuantities(ledger)
		if totalSell.GreaterThan(totalBuy) {
			return nil, models.NewValidationError("transaction",
				"deleting this buy would leave more sold than bought")
		}
	}

	position, err := s.recomputePosition(tx, userID, existing.StockID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.L.Info("Transaction deleted", "userID", userID, "transactionID", transactionID, "stockID", existing.StockID)
	return position, nil
}

func (s *transactionServiceImpl) ListTransactions(userID int64) ([]models.Transaction, error) {
	return model.ListTransactionsForUser(s.db, userID)
}

// recomputePosition rebuilds the derived position fields from the ledger
// inside the open database transaction. The position row is the materialized
// view of the ledger; it is rewritten wholesale, never adjusted partially.
func (s *transactionServiceImpl) recomputePosition(tx *sql.Tx, userID, stockID int64) (*models.Position, error) {
	position, err := model.GetOrCreatePosition(tx, userID, stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load position: %w", err)
	}

	ledger, err := model.ListTransactionsForPosition(tx, userID, stockID)
	if err != nil {
		return nil, err
	}

	result, err := processors.ComputePosition(ledger, position.RealizedPnl)
	if err != nil {
		return nil, err
	}

	position.Quantity = result.Quantity
	position.AvgCostPrice = result.AvgCostPrice
	position.RealizedPnl = result.RealizedPnl
	if err := model.UpdatePosition(tx, position); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("position %d vanished during recompute", position.ID)
		}
		return nil, fmt.Errorf("failed to update position: %w", err)
	}
	return position, nil
}
