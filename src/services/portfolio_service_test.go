package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/models"
)

type stubPriceService struct {
	quotes  map[string]decimal.Decimal
	rate    decimal.Decimal
	rateErr error
}

func (s *stubPriceService) GetPrice(ctx context.Context, ticker, exchangeHint string) (PriceQuote, error) {
	if price, ok := s.quotes[ticker]; ok {
		return PriceQuote{Ticker: ticker, Price: price, LastUpdated: time.Now()}, nil
	}
	return PriceQuote{}, models.ErrPriceUnavailable
}

func (s *stubPriceService) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if s.rateErr != nil {
		return decimal.Zero, s.rateErr
	}
	return s.rate, nil
}

func (s *stubPriceService) EnsureStock(ctx context.Context, ticker string) (*models.Stock, error) {
	return nil, models.ErrNotFound
}

func seedPosition(t *testing.T, db *sql.DB, userID, stockID int64, qty, avgCost, realized string) {
	t.Helper()
	_, err := db.Exec(`
	INSERT INTO positions (user_id, stock_id, quantity, avg_cost_price, realized_pnl)
	VALUES (?, ?, ?, ?, ?)`, userID, stockID, qty, avgCost, realized)
	require.NoError(t, err)
}

func TestGetSummary_AggregatesOpenAndClosedPositions(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "investor", "1000")

	aapl := seedStock(t, db, "AAPL", "NASDAQ", "110", time.Now())
	voo := seedStock(t, db, "VOO", "NYSEARCA", "410", time.Now())
	tsla := seedStock(t, db, "TSLA", "NASDAQ", "200", time.Now())

	seedPosition(t, db, userID, aapl, "10", "100", "20")
	seedPosition(t, db, userID, voo, "5", "400", "0")
	seedPosition(t, db, userID, tsla, "0", "0", "500") // closed

	prices := &stubPriceService{quotes: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(110),
		"VOO":  decimal.NewFromInt(410),
	}}
	svc := NewPortfolioService(db, prices)

	user, err := model.GetUserByID(db, userID)
	require.NoError(t, err)

	summary, err := svc.GetSummary(context.Background(), user)
	require.NoError(t, err)

	assert.True(t, summary.Cash.Equal(decimal.NewFromInt(1000)))
	// NAV = cash + 10*110 + 5*410.
	assert.True(t, summary.Nav.Equal(decimal.NewFromInt(4150)), "nav = %s", summary.Nav)
	// Unrealized = 10*(110-100) + 5*(410-400).
	assert.True(t, summary.TotalUnrealizedPnl.Equal(decimal.NewFromInt(150)))
	// Realized includes the fully closed TSLA position.
	assert.True(t, summary.TotalRealizedPnl.Equal(decimal.NewFromInt(520)))
	assert.False(t, summary.PriceGaps)

	// Closed positions are not listed as holdings.
	require.Len(t, summary.Positions, 2)
	for _, p := range summary.Positions {
		assert.Equal(t, PriceStatusOK, p.PriceStatus)
	}

	// Home currency is USD, so no restatement is attached.
	assert.Nil(t, summary.NavHomeCurrency)
}

func TestGetSummary_PriceGapFlaggedNotFatal(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "investor", "1000")

	aapl := seedStock(t, db, "AAPL", "NASDAQ", "110", time.Now())
	ghost := seedStock(t, db, "GHOST", "", "0", time.Time{})

	seedPosition(t, db, userID, aapl, "10", "100", "0")
	seedPosition(t, db, userID, ghost, "3", "50", "0")

	prices := &stubPriceService{quotes: map[string]decimal.Decimal{
		"AAPL": decimal.NewFromInt(110),
	}}
	svc := NewPortfolioService(db, prices)

	user, err := model.GetUserByID(db, userID)
	require.NoError(t, err)

	summary, err := svc.GetSummary(context.Background(), user)
	require.NoError(t, err)

	assert.True(t, summary.PriceGaps)
	// The unpriced position is excluded from NAV and the unrealized total.
	assert.True(t, summary.Nav.Equal(decimal.NewFromInt(2100)), "nav = %s", summary.Nav)
	assert.True(t, summary.TotalUnrealizedPnl.Equal(decimal.NewFromInt(100)))

	require.Len(t, summary.Positions, 2)
	byTicker := map[string]PositionValuation{}
	for _, p := range summary.Positions {
		byTicker[p.Ticker] = p
	}
	assert.Equal(t, PriceStatusOK, byTicker["AAPL"].PriceStatus)
	assert.Equal(t, PriceStatusUnavailable, byTicker["GHOST"].PriceStatus)
	assert.True(t, byTicker["GHOST"].MarketValue.IsZero())
}

func TestGetSummary_HomeCurrencyRestatement(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "investor", "1000")
	_, err := db.Exec(`UPDATE users SET home_currency = 'SGD' WHERE id = ?`, userID)
	require.NoError(t, err)

	prices := &stubPriceService{rate: decimal.RequireFromString("1.34")}
	svc := NewPortfolioService(db, prices)

	user, err := model.GetUserByID(db, userID)
	require.NoError(t, err)

	summary, err := svc.GetSummary(context.Background(), user)
	require.NoError(t, err)

	assert.Equal(t, "SGD", summary.HomeCurrency)
	require.NotNil(t, summary.NavHomeCurrency)
	assert.True(t, summary.NavHomeCurrency.Equal(decimal.RequireFromString("1340")))
}

func TestGetSummary_MissingRateLeavesRestatementOff(t *testing.T) {
	db := setupTestDB(t)
	userID := seedUser(t, db, "investor", "1000")
	_, err := db.Exec(`UPDATE users SET home_currency = 'SGD' WHERE id = ?`, userID)
	require.NoError(t, err)

	prices := &stubPriceService{rateErr: models.ErrPriceUnavailable}
	svc := NewPortfolioService(db, prices)

	user, err := model.GetUserByID(db, userID)
	require.NoError(t, err)

	summary, err := svc.GetSummary(context.Background(), user)
	require.NoError(t, err)
	assert.Nil(t, summary.NavHomeCurrency)
}
