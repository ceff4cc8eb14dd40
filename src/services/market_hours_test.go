package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClock(t *testing.T) *MarketClock {
	t.Helper()
	clock, err := NewMarketClock("America/New_York", "09:30", "16:00")
	require.NoError(t, err)
	return clock
}

func nyTime(t *testing.T, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return time.Date(2025, 3, 5, hour, min, 0, 0, loc)
}

func TestNewMarketClock_Invalid(t *testing.T) {
	_, err := NewMarketClock("Not/AZone", "09:30", "16:00")
	assert.Error(t, err)

	_, err = NewMarketClock("America/New_York", "nine-thirty", "16:00")
	assert.Error(t, err)

	_, err = NewMarketClock("America/New_York", "09:30", "25:00")
	assert.Error(t, err)
}

func TestOutsideTradingHours(t *testing.T) {
	clock := newTestClock(t)

	tests := []struct {
		name    string
		now     time.Time
		outside bool
	}{
		{"before open", nyTime(t, 8, 0), true},
		{"at open", nyTime(t, 9, 30), false},
		{"midday", nyTime(t, 12, 0), false},
		{"just before close", nyTime(t, 15, 59), false},
		{"at close", nyTime(t, 16, 0), true},
		{"evening", nyTime(t, 20, 0), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outside, clock.OutsideTradingHours(tt.now))
		})
	}
}

func TestOutsideTradingHours_ConvertsTimezone(t *testing.T) {
	clock := newTestClock(t)

	// 14:00 UTC on 2025-03-05 is 09:00 in New York, before the open.
	utcMorning := time.Date(2025, 3, 5, 14, 0, 0, 0, time.UTC)
	assert.True(t, clock.OutsideTradingHours(utcMorning))

	// 15:00 UTC is 10:00 in New York, inside trading hours.
	utcMidMorning := time.Date(2025, 3, 5, 15, 0, 0, 0, time.UTC)
	assert.False(t, clock.OutsideTradingHours(utcMidMorning))
}

func TestAfterMostRecentClose(t *testing.T) {
	clock := newTestClock(t)

	evening := nyTime(t, 20, 0)

	// Captured after today's 16:00 close.
	assert.True(t, clock.AfterMostRecentClose(nyTime(t, 17, 0), evening))
	// Captured during today's session, before the close.
	assert.False(t, clock.AfterMostRecentClose(nyTime(t, 15, 0), evening))

	// Before today's close the relevant boundary is yesterday's close.
	nextMorning := nyTime(t, 8, 0).AddDate(0, 0, 1)
	assert.True(t, clock.AfterMostRecentClose(nyTime(t, 17, 0), nextMorning))

	twoDaysStale := nyTime(t, 17, 0).AddDate(0, 0, -2)
	assert.False(t, clock.AfterMostRecentClose(twoDaysStale, nextMorning))
}
