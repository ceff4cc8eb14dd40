package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction of a stock transaction.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// TransferMethod describes how a cash transfer changes the balance.
type TransferMethod string

const (
	MethodDeposit    TransferMethod = "deposit"
	MethodWithdrawal TransferMethod = "withdrawal"
	MethodSet        TransferMethod = "set"
)

// Stock is a shared instrument referenced by many users' positions.
// Price is a cached value refreshed on read, subject to the staleness policy
// in the price service; LastUpdated records the capture time of Price.
type Stock struct {
	ID          int64           `json:"id"`
	Ticker      string          `json:"ticker"`
	Exchange    string          `json:"exchange,omitempty"`
	Price       decimal.Decimal `json:"price"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Transaction is one immutable ledger entry for a (user, stock) pair.
type Transaction struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	StockID    int64           `json:"stock_id"`
	Ticker     string          `json:"ticker,omitempty"`
	Direction  Direction       `json:"direction"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	ExecutedAt time.Time       `json:"executed_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Position is derived state for a (user, stock) pair, recomputed from the
// transaction ledger after every create/delete. A position with zero quantity
// is a closed position that keeps its realized P&L.
type Position struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	StockID      int64           `json:"stock_id"`
	Ticker       string          `json:"ticker,omitempty"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCostPrice decimal.Decimal `json:"avg_cost_price"`
	RealizedPnl  decimal.Decimal `json:"realized_pnl"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Open reports whether the position still holds shares.
func (p *Position) Open() bool {
	return p.Quantity.IsPositive()
}

// CashTransfer is one immutable entry of the cash audit trail. OldCash and
// NewCash snapshot the balance around the transfer.
type CashTransfer struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Method     TransferMethod  `json:"method"`
	Value      decimal.Decimal `json:"value"`
	OldCash    decimal.Decimal `json:"old_cash"`
	NewCash    decimal.Decimal `json:"new_cash"`
	ExecutedAt time.Time       `json:"executed_at"`
}

// CurrencyRate is a cached conversion rate for one ordered currency pair.
type CurrencyRate struct {
	ID          int64           `json:"id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Rate        decimal.Decimal `json:"rate"`
	LastUpdated time.Time       `json:"last_updated"`
}
