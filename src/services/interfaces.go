package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/models"
)

// Price statuses reported per position in a portfolio summary. A valuation
// never fails outright because one quote is unavailable; the gap is flagged
// and the aggregate carries on.
const (
	PriceStatusOK          = "OK"
	PriceStatusUnavailable = "UNAVAILABLE"
)

// PriceQuote is a cached (possibly stale) stock price.
type PriceQuote struct {
	Ticker      string          `json:"ticker"`
	Exchange    string          `json:"exchange,omitempty"`
	Price       decimal.Decimal `json:"price"`
	LastUpdated time.Time       `json:"last_updated"`
}

// PriceService is the time-bounded cache over the scraped price and rate
// providers. Lookups never surface provider failures as errors while a prior
// cached value exists; only a symbol with no history at all yields
// models.ErrPriceUnavailable.
type PriceService interface {
	// GetPrice returns the cached price for a known stock, refreshing it
	// when the staleness policy says so. exchangeHint narrows resolution
	// when the stock row has no exchange recorded yet.
	GetPrice(ctx context.Context, ticker, exchangeHint string) (PriceQuote, error)

	// GetRate returns units of to per one unit of from, cached for the
	// configured window.
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)

	// EnsureStock returns the stock row for ticker, creating it when the
	// ticker resolves to a price on some supported exchange.
	EnsureStock(ctx context.Context, ticker string) (*models.Stock, error)
}

// TransactionService owns the (user, stock) ledgers and their derived
// positions. Appends and deletes are serialized per pair and committed
// atomically with the position recompute.
type TransactionService interface {
	CreateTransaction(ctx context.Context, userID, stockID int64, direction models.Direction,
		quantity, unitPrice decimal.Decimal, executedAt time.Time) (*models.Transaction, *models.Position, error)
	DeleteTransaction(ctx context.Context, userID, transactionID int64) (*models.Position, error)
	ListTransactions(userID int64) ([]models.Transaction, error)
}

// CashService applies deposits, withdrawals and absolute sets to the user's
// cash balance, appending the audit-trail entry in the same transaction.
type CashService interface {
	ApplyTransfer(ctx context.Context, userID int64, method models.TransferMethod,
		value decimal.Decimal) (*models.CashTransfer, error)
	ListTransfers(userID int64) ([]models.CashTransfer, error)
}

// PositionValuation is one position enriched with its cached market price.
type PositionValuation struct {
	Ticker        string          `json:"ticker"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgCostPrice  decimal.Decimal `json:"avg_cost_price"`
	Price         decimal.Decimal `json:"price"`
	MarketValue   decimal.Decimal `json:"market_value"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnl   decimal.Decimal `json:"realized_pnl"`
	PriceStatus   string          `json:"price_status"`
}

// PortfolioSummary aggregates a user's cash and positions. NAV and the
// unrealized total cover open positions with a usable price; PriceGaps is set
// when any open position had to be skipped. The realized total covers every
// position, open and closed.
type PortfolioSummary struct {
	Cash               decimal.Decimal     `json:"cash"`
	Nav                decimal.Decimal     `json:"nav"`
	TotalUnrealizedPnl decimal.Decimal     `json:"total_unrealized_pnl"`
	TotalRealizedPnl   decimal.Decimal     `json:"total_realized_pnl"`
	Positions          []PositionValuation `json:"positions"`
	PriceGaps          bool                `json:"price_gaps"`

	HomeCurrency    string           `json:"home_currency"`
	NavHomeCurrency *decimal.Decimal `json:"nav_home_currency,omitempty"`
}

// PortfolioService computes portfolio-level aggregates for display.
type PortfolioService interface {
	GetSummary(ctx context.Context, user *model.User) (*PortfolioSummary, error)
}
