package providers

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNoData is returned when a provider page loads but no usable figure could
// be extracted from it. Callers treat this the same as a transport failure:
// keep the last cached value.
var ErrNoData = errors.New("provider returned no data")

// StockPriceProvider fetches the latest traded price for a ticker on a given
// exchange. Returning ErrNoData (or any error) means "unavailable"; the price
// cache falls back to its last known value.
type StockPriceProvider interface {
	FetchPrice(ctx context.Context, ticker, exchange string) (decimal.Decimal, error)
}

// CurrencyRateProvider fetches the conversion rate between two ISO currency
// codes (units of to per one unit of from).
type CurrencyRateProvider interface {
	FetchRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}
