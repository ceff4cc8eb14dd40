package model

import (
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
)

// InsertCashTransfer appends one audit-trail entry. Runs on a Querier so the
// append can share a transaction with the users.cash update.
func InsertCashTransfer(q Querier, t *models.CashTransfer) error {
	res, err := q.Exec(`
	INSERT INTO cash_transfers (user_id, method, value, old_cash, new_cash, executed_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, string(t.Method), t.Value.String(), t.OldCash.String(), t.NewCash.String(), t.ExecutedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

// ListCashTransfersForUser returns the user's cash audit trail, newest first.
func ListCashTransfersForUser(db *sql.DB, userID int64) ([]models.CashTransfer, error) {
	rows, err := db.Query(`
	SELECT id, user_id, method, value, old_cash, new_cash, executed_at
	FROM cash_transfers
	WHERE user_id = ?
	ORDER BY executed_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash transfers for user %d: %w", userID, err)
	}
	defer rows.Close()

	var transfers []models.CashTransfer
	for rows.Next() {
		var t models.CashTransfer
		var valueStr, oldStr, newStr string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Method, &valueStr, &oldStr, &newStr, &t.ExecutedAt); err != nil {
			return nil, err
		}
		if t.Value, err = decimal.NewFromString(valueStr); err != nil {
			return nil, fmt.Errorf("invalid value %q on transfer %d: %w", valueStr, t.ID, err)
		}
		if t.OldCash, err = decimal.NewFromString(oldStr); err != nil {
			return nil, fmt.Errorf("invalid old cash %q on transfer %d: %w", oldStr, t.ID, err)
		}
		if t.NewCash, err = decimal.NewFromString(newStr); err != nil {
			return nil, fmt.Errorf("invalid new cash %q on transfer %d: %w", newStr, t.ID, err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
