package model

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/stockfolio/backend/src/models"
)

// GetStockByTicker loads one stock row. Tickers are stored uppercased.
func GetStockByTicker(db *sql.DB, ticker string) (*models.Stock, error) {
	row := db.QueryRow(
		`SELECT id, ticker, exchange, price, last_updated FROM stocks WHERE ticker = ?`,
		strings.ToUpper(ticker))
	return scanStock(row)
}

// GetStockByID loads one stock row by primary key.
func GetStockByID(db *sql.DB, id int64) (*models.Stock, error) {
	row := db.QueryRow(
		`SELECT id, ticker, exchange, price, last_updated FROM stocks WHERE id = ?`, id)
	return scanStock(row)
}

func scanStock(row *sql.Row) (*models.Stock, error) {
	var s models.Stock
	var exchange sql.NullString
	var priceStr string
	var lastUpdated sql.NullTime
	err := row.Scan(&s.ID, &s.Ticker, &exchange, &priceStr, &lastUpdated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	s.Exchange = exchange.String
	s.LastUpdated = lastUpdated.Time
	s.Price, err = decimal.NewFromString(priceStr)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q for stock %s: %w", priceStr, s.Ticker, err)
	}
	return &s, nil
}

// CreateStock inserts a stock row with its first captured price.
func CreateStock(db *sql.DB, s *models.Stock) error {
	s.Ticker = strings.ToUpper(s.Ticker)
	res, err := db.Exec(
		`INSERT INTO stocks (ticker, exchange, price, last_updated) VALUES (?, ?, ?, ?)`,
		s.Ticker, nullableString(s.Exchange), s.Price.String(), s.LastUpdated)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = id
	return nil
}

// UpdateStockPrice persists a freshly fetched price and resolved exchange.
func UpdateStockPrice(db *sql.DB, stockID int64, price decimal.Decimal, exchange string, at time.Time) error {
	_, err := db.Exec(
		`UPDATE stocks SET price = ?, exchange = ?, last_updated = ? WHERE id = ?`,
		price.String(), nullableString(exchange), at, stockID)
	return err
}

// GetCurrencyRate loads the cached rate row for an ordered currency pair.
func GetCurrencyRate(db *sql.DB, from, to string) (*models.CurrencyRate, error) {
	row := db.QueryRow(
		`SELECT id, cfrom, cto, rate, last_updated FROM currency_rates WHERE cfrom = ? AND cto = ?`,
		strings.ToUpper(from), strings.ToUpper(to))
	var r models.CurrencyRate
	var rateStr string
	var lastUpdated sql.NullTime
	err := row.Scan(&r.ID, &r.From, &r.To, &rateStr, &lastUpdated)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	r.LastUpdated = lastUpdated.Time
	r.Rate, err = decimal.NewFromString(rateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q for %s/%s: %w", rateStr, r.From, r.To, err)
	}
	return &r, nil
}

// UpsertCurrencyRate writes a freshly fetched conversion rate. The (cfrom,
// cto) pair is unique; a refresh race is last-write-wins.
func UpsertCurrencyRate(db *sql.DB, from, to string, rate decimal.Decimal, at time.Time) error {
	_, err := db.Exec(`
	INSERT INTO currency_rates (cfrom, cto, rate, last_updated) VALUES (?, ?, ?, ?)
	ON CONFLICT(cfrom, cto) DO UPDATE SET rate = excluded.rate, last_updated = excluded.last_updated`,
		strings.ToUpper(from), strings.ToUpper(to), rate.String(), at)
	return err
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
