package model

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
)

// Querier is satisfied by both *sql.DB and *sql.Tx so ledger reads can run
// inside or outside an open transaction.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// ListTransactionsForPosition returns the full ledger for one (user, stock)
// pair in ascending timestamp order. This ordering is what makes the FIFO
// lot walk deterministic.
func ListTransactionsForPosition(q Querier, userID, stockID int64) ([]models.Transaction, error) {
	rows, err := q.Query(`
	SELECT id, user_id, stock_id, direction, quantity, unit_price, executed_at, created_at
	FROM transactions
	WHERE user_id = ? AND stock_id = ?
	ORDER BY executed_at ASC, id ASC`, userID, stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger for user %d stock %d: %w", userID, stockID, err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListTransactionsForUser returns the user's whole transaction history,
// newest first, with the ticker joined in for display.
func ListTransactionsForUser(db *sql.DB, userID int64) ([]models.Transaction, error) {
	rows, err := db.Query(`
	SELECT t.id, t.user_id, t.stock_id, t.direction, t.quantity, t.unit_price, t.executed_at, t.created_at, s.ticker
	FROM transactions t
	JOIN stocks s ON s.id = t.stock_id
	WHERE t.user_id = ?
	ORDER BY t.executed_at DESC, t.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var qtyStr, priceStr string
		if err := rows.Scan(&t.ID, &t.UserID, &t.StockID, &t.Direction,
			&qtyStr, &priceStr, &t.ExecutedAt, &t.CreatedAt, &t.Ticker); err != nil {
			return nil, err
		}
		if err := parseTransactionDecimals(&t, qtyStr, priceStr); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// GetTransactionByID loads one transaction, scoped to its owner.
func GetTransactionByID(q Querier, id, userID int64) (*models.Transaction, error) {
	row := q.QueryRow(`
	SELECT id, user_id, stock_id, direction, quantity, unit_price, executed_at, created_at
	FROM transactions
	WHERE id = ? AND user_id = ?`, id, userID)

	var t models.Transaction
	var qtyStr, priceStr string
	err := row.Scan(&t.ID, &t.UserID, &t.StockID, &t.Direction,
		&qtyStr, &priceStr, &t.ExecutedAt, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if err := parseTransactionDecimals(&t, qtyStr, priceStr); err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTransaction appends one ledger entry. Runs on a Querier so the append
// can share a transaction with the position recompute.
func InsertTransaction(q Querier, t *models.Transaction) error {
	res, err := q.Exec(`
	INSERT INTO transactions (user_id, stock_id, direction, quantity, unit_price, executed_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, t.StockID, string(t.Direction), t.Quantity.String(), t.UnitPrice.String(), t.ExecutedAt)
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

// DeleteTransaction removes one ledger entry by id.
func DeleteTransaction(q Querier, id int64) error {
	res, err := q.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetOrCreatePosition returns the position row for a (user, stock) pair,
// creating the zero-valued row lazily on first use.
func GetOrCreatePosition(q Querier, userID, stockID int64) (*models.Position, error) {
	pos, err := GetPosition(q, userID, stockID)
	if err == nil {
		return pos, nil
	}
	if err != models.ErrNotFound {
		return nil, err
	}

	res, err := q.Exec(`
	INSERT INTO positions (user_id, stock_id, quantity, avg_cost_price, realized_pnl)
	VALUES (?, ?, '0', '0', '0')`, userID, stockID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Position{ID: id, UserID: userID, StockID: stockID}, nil
}

// GetPosition loads the position row for a (user, stock) pair.
func GetPosition(q Querier, userID, stockID int64) (*models.Position, error) {
	row := q.QueryRow(`
	SELECT id, user_id, stock_id, quantity, avg_cost_price, realized_pnl, updated_at
	FROM positions
	WHERE user_id = ? AND stock_id = ?`, userID, stockID)
	return scanPosition(row)
}

// UpdatePosition overwrites the derived fields of a position row.
func UpdatePosition(q Querier, p *models.Position) error {
	res, err := q.Exec(`
	UPDATE positions
	SET quantity = ?, avg_cost_price = ?, realized_pnl = ?, updated_at = ?
	WHERE id = ?`,
		p.Quantity.String(), p.AvgCostPrice.String(), p.RealizedPnl.String(), time.Now().UTC(), p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListPositionsForUser returns every position row for a user, open and
// closed, ordered by ticker. Closed positions keep contributing their
// realized P&L to portfolio totals.
func ListPositionsForUser(db *sql.DB, userID int64) ([]models.Position, error) {
	rows, err := db.Query(`
	SELECT p.id, p.user_id, p.stock_id, p.quantity, p.avg_cost_price, p.realized_pnl, p.updated_at, s.ticker
	FROM positions p
	JOIN stocks s ON s.id = p.stock_id
	WHERE p.user_id = ?
	ORDER BY s.ticker ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		var qtyStr, avgStr, pnlStr string
		if err := rows.Scan(&p.ID, &p.UserID, &p.StockID, &qtyStr, &avgStr, &pnlStr, &p.UpdatedAt, &p.Ticker); err != nil {
			return nil, err
		}
		if err := parsePositionDecimals(&p, qtyStr, avgStr, pnlStr); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func scanPosition(row *sql.Row) (*models.Position, error) {
	var p models.Position
	var qtyStr, avgStr, pnlStr string
	err := row.Scan(&p.ID, &p.UserID, &p.StockID, &qtyStr, &avgStr, &pnlStr, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if err := parsePositionDecimals(&p, qtyStr, avgStr, pnlStr); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var qtyStr, priceStr string
		if err := rows.Scan(&t.ID, &t.UserID, &t.StockID, &t.Direction,
			&qtyStr, &priceStr, &t.ExecutedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		if err := parseTransactionDecimals(&t, qtyStr, priceStr); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func parseTransactionDecimals(t *models.Transaction, qtyStr, priceStr string) error {
	var err error
	t.Quantity, err = decimal.NewFromString(qtyStr)
	if err != nil {
		return fmt.Errorf("invalid quantity %q on transaction %d: %w", qtyStr, t.ID, err)
	}
	t.UnitPrice, err = decimal.NewFromString(priceStr)
	if err != nil {
		return fmt.Errorf("invalid unit price %q on transaction %d: %w", priceStr, t.ID, err)
	}
	return nil
}

func parsePositionDecimals(p *models.Position, qtyStr, avgStr, pnlStr string) error {
	var err error
	p.Quantity, err = decimal.NewFromString(qtyStr)
	if err != nil {
		return fmt.Errorf("invalid quantity %q on position %d: %w", qtyStr, p.ID, err)
	}
	p.AvgCostPrice, err = decimal.NewFromString(avgStr)
	if err != nil {
		return fmt.Errorf("invalid avg cost %q on position %d: %w", avgStr, p.ID, err)
	}
	p.RealizedPnl, err = decimal.NewFromString(pnlStr)
	if err != nil {
		return fmt.Errorf("invalid realized pnl %q on position %d: %w", pnlStr, p.ID, err)
	}
	return nil
}
