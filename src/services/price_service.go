package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/logger"
	"github.com/username/stockfolio/backend/src/model"
	"github.com/username/stockfolio/backend/src/models"
	"github.com/username/stockfolio/backend/src/providers"
)

// priceServiceImpl implements PriceService. Stock and rate rows persisted in
// the database are the durable cache; an in-process go-cache layer in front
// of them spares the database on hot read paths. Cache reads are concurrent;
// two callers racing on a refresh both write and the last one wins, which is
// acceptable for advisory display data.
type priceServiceImpl struct {
	db            *sql.DB
	stockProvider providers.StockPriceProvider
	rateProvider  providers.CurrencyRateProvider
	memCache      *cache.Cache
	clock         *MarketClock
	exchangeOrder []string
	stockMaxAge   time.Duration
	rateMaxAge    time.Duration
	now           func() time.Time
}

// NewPriceService wires the cache over the given providers. exchangeOrder is
// the fixed resolution order for tickers whose exchange is unknown.
func NewPriceService(db *sql.DB, stockProvider providers.StockPriceProvider,
	rateProvider providers.CurrencyRateProvider, clock *MarketClock,
	exchangeOrder []string, stockMaxAge, rateMaxAge time.Duration) PriceService {
	return &priceServiceImpl{
		db:            db,
		stockProvider: stockProvider,
		rateProvider:  rateProvider,
		memCache:      cache.New(5*time.Minute, 10*time.Minute),
		clock:         clock,
		exchangeOrder: exchangeOrder,
		stockMaxAge:   stockMaxAge,
		rateMaxAge:    rateMaxAge,
		now:           time.Now,
	}
}

func stockCacheKey(ticker string) string  { return "stock:" + ticker }
func rateCacheKey(from, to string) string { return "rate:" + from + "/" + to }

// priceIsFresh applies the stock staleness policy: fresh while younger than
// the refresh window; outside market hours, also fresh when captured after
// the most recent close. A zero price is never fresh.
func (s *priceServiceImpl) priceIsFresh(price decimal.Decimal, lastUpdated time.Time) bool {
	if price.IsZero() || lastUpdated.IsZero() {
		return false
	}
	now := s.now()
	if now.Sub(lastUpdated) < s.stockMaxAge {
		return true
	}
	return s.clock.OutsideTradingHours(now) && s.clock.AfterMostRecentClose(lastUpdated, now)
}

func (s *priceServiceImpl) GetPrice(ctx context.Context, ticker, exchangeHint string) (PriceQuote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return PriceQuote{}, models.NewValidationError("ticker", "must not be empty")
	}

	stock, err := s.loadStock(ticker)
	if err != nil {
		return PriceQuote{}, err
	}

	if s.priceIsFresh(stock.Price, stock.LastUpdated) {
		return quoteFromStock(stock), nil
	}

	exchange := stock.Exchange
	if exchange == "" {
		exchange = exchangeHint
	}

	price, resolvedExchange, fetchErr := s.fetchPrice(ctx, ticker, exchange)
	if fetchErr != nil {
		// Refresh failures are non-fatal: keep the previous value when one
		// exists, surface unavailability only when there is nothing to serve.
		logger.L.Warn("Stock price refresh failed, keeping cached value",
			"ticker", ticker, "error", fetchErr)
		if stock.Price.IsZero() {
			return PriceQuote{}, models.ErrPriceUnavailable
		}
		return quoteFromStock(stock), nil
	}

	stock.Price = price
	stock.Exchange = resolvedExchange
	stock.LastUpdated = s.now()
	if err := model.UpdateStockPrice(s.db, stock.ID, price, resolvedExchange, stock.LastUpdated); err != nil {
		return PriceQuote{}, fmt.Errorf("failed to persist refreshed price for %s: %w", ticker, err)
	}
	s.memCache.Set(stockCacheKey(ticker), *stock, cache.DefaultExpiration)

	return quoteFromStock(stock), nil
}

func (s *priceServiceImpl) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return decimal.Zero, models.NewValidationError("currency", "must not be empty")
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	cached := s.loadRate(from, to)
	if cached != nil && !cached.Rate.IsZero() && s.now().Sub(cached.LastUpdated) < s.rateMaxAge {
		return cached.Rate, nil
	}

	rate, fetchErr := s.rateProvider.FetchRate(ctx, from, to)
	if fetchErr != nil || rate.IsZero() {
		logger.L.Warn("Currency rate refresh failed, keeping cached value",
			"from", from, "to", to, "error", fetchErr)
		if cached == nil || cached.Rate.IsZero() {
			return decimal.Zero, models.ErrPriceUnavailable
		}
		return cached.Rate, nil
	}

	at := s.now()
	if err := model.UpsertCurrencyRate(s.db, from, to, rate, at); err != nil {
		return decimal.Zero, fmt.Errorf("failed to persist rate %s/%s: %w", from, to, err)
	}
	s.memCache.Set(rateCacheKey(from, to),
		models.CurrencyRate{From: from, To: to, Rate: rate, LastUpdated: at},
		cache.DefaultExpiration)

	return rate, nil
}

func (s *priceServiceImpl) EnsureStock(ctx context.Context, ticker string) (*models.Stock, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, models.NewValidationError("ticker", "must not be empty")
	}

	stock, err := model.GetStockByTicker(s.db, ticker)
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	// Unknown ticker: it becomes a stock row only if some supported exchange
	// quotes it.
	price, exchange, fetchErr := s.fetchPrice(ctx, ticker, "")
	if fetchErr != nil {
		logger.L.Info("Ticker did not resolve on any supported exchange", "ticker", ticker, "error", fetchErr)
		return nil, models.ErrNotFound
	}

	stock = &models.Stock{
		Ticker:      ticker,
		Exchange:    exchange,
		Price:       price,
		LastUpdated: s.now(),
	}
	if err := model.CreateStock(s.db, stock); err != nil {
		return nil, fmt.Errorf("failed to create stock %s: %w", ticker, err)
	}
	s.memCache.Set(stockCacheKey(ticker), *stock, cache.DefaultExpiration)
	logger.L.Info("Created stock from resolved ticker", "ticker", ticker, "exchange", exchange, "price", price.String())
	return stock, nil
}

// fetchPrice asks the provider for ticker on exchange; with no exchange it
// walks the configured exchange list in order and returns the first hit plus
// the exchange that matched. The order is fixed so resolution stays
// reproducible.
func (s *priceServiceImpl) fetchPrice(ctx context.Context, ticker, exchange string) (decimal.Decimal, string, error) {
	if exchange != "" {
		price, err := s.stockProvider.FetchPrice(ctx, ticker, exchange)
		if err != nil {
			return decimal.Zero, "", err
		}
		if price.IsZero() {
			return decimal.Zero, "", providers.ErrNoData
		}
		return price, exchange, nil
	}

	for _, candidate := range s.exchangeOrder {
		price, err := s.stockProvider.FetchPrice(ctx, ticker, candidate)
		if err != nil || price.IsZero() {
			continue
		}
		return price, candidate, nil
	}
	return decimal.Zero, "", fmt.Errorf("no exchange in %v quotes %s: %w", s.exchangeOrder, ticker, providers.ErrNoData)
}

func (s *priceServiceImpl) loadStock(ticker string) (*models.Stock, error) {
	if v, ok := s.memCache.Get(stockCacheKey(ticker)); ok {
		if stock, ok := v.(models.Stock); ok {
			return &stock, nil
		}
	}
	stock, err := model.GetStockByTicker(s.db, ticker)
	if err != nil {
		return nil, err
	}
	s.memCache.Set(stockCacheKey(ticker), *stock, cache.DefaultExpiration)
	return stock, nil
}

func (s *priceServiceImpl) loadRate(from, to string) *models.CurrencyRate {
	if v, ok := s.memCache.Get(rateCacheKey(from, to)); ok {
		if rate, ok := v.(models.CurrencyRate); ok {
			return &rate
		}
	}
	rate, err := model.GetCurrencyRate(s.db, from, to)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			logger.L.Warn("Failed to load cached rate", "from", from, "to", to, "error", err)
		}
		return nil
	}
	s.memCache.Set(rateCacheKey(from, to), *rate, cache.DefaultExpiration)
	return rate
}

func quoteFromStock(s *models.Stock) PriceQuote {
	return PriceQuote{
		Ticker:      s.Ticker,
		Exchange:    s.Exchange,
		Price:       s.Price,
		LastUpdated: s.LastUpdated,
	}
}
