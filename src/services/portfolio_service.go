package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/models"
)

// Quotes are scraped off USD-denominated exchange pages; portfolio figures
// are aggregated in this currency and restated into the user's home currency
// on top.
const valuationCurrency = "USD"

type portfolioServiceImpl struct {
	db     *sql.DB
	prices PriceService
}

// NewPortfolioService builds the valuator over the given price cache.
func NewPortfolioService(db *sql.DB, prices PriceService) PortfolioService {
	return &portfolioServiceImpl{db: db, prices: prices}
}

// GetSummary aggregates the user's cash and positions into net asset value
// and P&L totals. An unavailable price marks that position and is left out
// of NAV and the unrealized total; it never fails the whole summary.
// Realized P&L sums over every position, including fully closed ones.
func (s *portfolioServiceImpl) GetSummary(ctx context.Context, user *model.User) (*PortfolioSummary, error) {
	positions, err := model.ListPositionsForUser(s.db, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions for user %d: %w", user.ID, err)
	}

	summary := &PortfolioSummary{
		Cash:               user.Cash,
		Nav:                user.Cash,
		TotalUnrealizedPnl: decimal.Zero,
		TotalRealizedPnl:   decimal.Zero,
		Positions:          []PositionValuation{},
		HomeCurrency:       user.HomeCurrency,
	}

	for _, p := range positions {
		summary.TotalRealizedPnl = summary.TotalRealizedPnl.Add(p.RealizedPnl)
		if !p.Open() {
			continue
		}

		valuation := PositionValuation{
			Ticker:       p.Ticker,
			Quantity:     p.Quantity,
			AvgCostPrice: p.AvgCostPrice,
			RealizedPnl:  p.RealizedPnl,
			PriceStatus:  PriceStatusUnavailable,
		}

		quote, err := s.prices.GetPrice(ctx, p.Ticker, "")
		if err != nil {
			if !errors.Is(err, models.ErrPriceUnavailable) && !errors.Is(err, models.ErrNotFound) {
				return nil, err
			}
			logger.L.Warn("Valuation gap: no usable price for position",
				"userID", user.ID, "ticker", p.Ticker)
			summary.PriceGaps = true
			summary.Positions = append(summary.Positions, valuation)
			continue
		}

		valuation.Price = quote.Price
		valuation.MarketValue = quote.Price.Mul(p.Quantity)
		valuation.UnrealizedPnl = quote.Price.Sub(p.AvgCostPrice).Mul(p.Quantity)
		valuation.PriceStatus = PriceStatusOK

		summary.Nav = summary.Nav.Add(valuation.MarketValue)
		summary.TotalUnrealizedPnl = summary.TotalUnrealizedPnl.Add(valuation.UnrealizedPnl)
		summary.Positions = append(summary.Positions, valuation)
	}

	// NAV restated into the user's home currency, when a rate is available.
	// A missing rate just leaves the field off the summary.
	if user.HomeCurrency != "" && user.HomeCurrency != valuationCurrency {
		rate, err := s.prices.GetRate(ctx, valuationCurrency, user.HomeCurrency)
		if err != nil {
			if !errors.Is(err, models.ErrPriceUnavailable) {
				return nil, err
			}
			logger.L.Warn("Home currency restatement unavailable",
				"userID", user.ID, "homeCurrency", user.HomeCurrency)
		} else {
			navHome := summary.Nav.Mul(rate)
			summary.NavHomeCurrency = &navHome
		}
	}

	return summary, nil
}
