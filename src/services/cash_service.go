package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/models"
)

// cashServiceImpl mutates the authoritative users.cash balance and appends
// the cash_transfers audit entry in the same database transaction. Transfers
// for one user are serialized so two concurrent withdrawals cannot both read
// the same old balance.
type cashServiceImpl struct {
	db    *sql.DB
	locks *keyedMutex
	now   func() time.Time
}

// NewCashService builds the cash ledger writer on db.
func NewCashService(db *sql.DB) CashService {
	return &cashServiceImpl{
		db:    db,
		locks: newKeyedMutex(),
		now:   time.Now,
	}
}

func (s *cashServiceImpl) ApplyTransfer(ctx context.Context, userID int64,
	method models.TransferMethod, value decimal.Decimal) (*models.CashTransfer, error) {

	switch method {
	case models.MethodDeposit, models.MethodWithdrawal:
		if !value.IsPositive() {
			return nil, models.NewValidationError("value", "must be positive")
		}
	case models.MethodSet:
		if value.IsNegative() {
			return nil, models.NewValidationError("value", "must not be negative")
		}
	default:
		return nil, models.NewValidationError("method", "must be deposit, withdrawal or set")
	}

	unlock := s.locks.Lock(strconv.FormatInt(userID, 10))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var cashStr string
	err = tx.QueryRow(`SELECT cash FROM users WHERE id = ?`, userID).Scan(&cashStr)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	oldCash, err := decimal.NewFromString(cashStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cash value %q for user %d: %w", cashStr, userID, err)
	}

	var newCash decimal.Decimal
	switch method {
	case models.MethodDeposit:
		newCash = oldCash.Add(value)
	case models.MethodWithdrawal:
		if value.GreaterThan(oldCash) {
			return nil, models.ErrInsufficientFunds
		}
		newCash = oldCash.Sub(value)
	case models.MethodSet:
		newCash = value
	}

	transfer := &models.CashTransfer{
		UserID:     userID,
		Method:     method,
		Value:      value,
		OldCash:    oldCash,
		NewCash:    newCash,
		ExecutedAt: s.now(),
	}
	if err := model.InsertCashTransfer(tx, transfer); err != nil {
		return nil, fmt.Errorf("failed to append cash transfer: %w", err)
	}
	if err := model.UpdateUserCashTx(tx, userID, newCash); err != nil {
		return nil, fmt.Errorf("failed to update cash balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.L.Info("Cash transfer applied",
		"userID", userID, "method", method,
		"value", value.String(), "oldCash", oldCash.String(), "newCash", newCash.String())
	return transfer, nil
}

func (s *cashServiceImpl) ListTransfers(userID int64) ([]models.CashTransfer, error) {
	return model.ListCashTransfersForUser(s.db, userID)
}
