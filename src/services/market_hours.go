package services

import (
	"fmt"
	"time"
)

// MarketClock decides whether the market is open and where the most recent
// close boundary lies, in a fixed reference timezone. It drives the stock
// price staleness policy: during market hours a price older than the refresh
// window is stale; after close, a price captured after the most recent close
// stays fresh until the next close regardless of age.
type MarketClock struct {
	loc                 *time.Location
	openHour, openMin   int
	closeHour, closeMin int
}

// NewMarketClock parses "HH:MM" open/close times in the named timezone.
func NewMarketClock(timezone, open, close string) (*MarketClock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market timezone %q: %w", timezone, err)
	}
	c := &MarketClock{loc: loc}
	if c.openHour, c.openMin, err = parseClock(open); err != nil {
		return nil, fmt.Errorf("invalid market open %q: %w", open, err)
	}
	if c.closeHour, c.closeMin, err = parseClock(close); err != nil {
		return nil, fmt.Errorf("invalid market close %q: %w", close, err)
	}
	return c, nil
}

func parseClock(s string) (hour, min int, err error) {
	if _, err = fmt.Sscanf(s, "%d:%d", &hour, &min); err != nil {
		return 0, 0, err
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 {
		return 0, 0, fmt.Errorf("out of range")
	}
	return hour, min, nil
}

// OutsideTradingHours reports whether now falls before the daily open or at
// or after the daily close.
func (c *MarketClock) OutsideTradingHours(now time.Time) bool {
	local := now.In(c.loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), c.openHour, c.openMin, 0, 0, c.loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), c.closeHour, c.closeMin, 0, 0, c.loc)
	return local.Before(open) || !local.Before(close)
}

// AfterMostRecentClose reports whether lastUpdated falls after the close
// boundary nearest in the past of now. A value captured after that boundary
// needs no refresh until the market closes again.
func (c *MarketClock) AfterMostRecentClose(lastUpdated, now time.Time) bool {
	local := now.In(c.loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), c.closeHour, c.closeMin, 0, 0, c.loc)
	if local.Before(close) {
		close = close.AddDate(0, 0, -1)
	}
	return lastUpdated.After(close)
}
