// Package timeframe_test contains tests for the timeframe package
package timeframe_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesboard/internal/timeframe"
)

// MockTimeProvider implements the TimeProvider interface for testing
type MockTimeProvider struct {
	FixedTime time.Time
}

func (m *MockTimeProvider) Now() time.Time {
	return m.FixedTime
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParserPeriods(t *testing.T) {
	// Fixed time for stable testing: March 15, 2024, 12:00 UTC
	parser := timeframe.NewParser(&MockTimeProvider{FixedTime: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)})

	testCases := []struct {
		name          string
		period        string
		start, end    string
		expectedStart time.Time
		expectedEnd   time.Time
		expectedDays  int
		singleDay     bool
		expectedError error
	}{
		{name: "Today", period: "today", expectedStart: date(2024, 3, 15), expectedEnd: date(2024, 3, 15), expectedDays: 1, singleDay: true},
		{name: "One day is today", period: "1", expectedStart: date(2024, 3, 15), expectedEnd: date(2024, 3, 15), expectedDays: 1, singleDay: true},
		{name: "Yesterday", period: "yesterday", expectedStart: date(2024, 3, 14), expectedEnd: date(2024, 3, 14), expectedDays: 1, singleDay: true},
		{name: "Last 7 days", period: "7", expectedStart: date(2024, 3, 9), expectedEnd: date(2024, 3, 15), expectedDays: 7},
		{name: "Default is 30 days", period: "", expectedStart: date(2024, 2, 15), expectedEnd: date(2024, 3, 15), expectedDays: 30},
		{name: "Leap year 365", period: "365", expectedStart: date(2023, 3, 17), expectedEnd: date(2024, 3, 15), expectedDays: 365},
		{name: "Custom", period: "custom", start: "2024-01-01", end: "2024-01-10", expectedStart: date(2024, 1, 1), expectedEnd: date(2024, 1, 10), expectedDays: 10},
		{name: "Start date overrides label", period: "7", start: "2024-03-01", expectedStart: date(2024, 3, 1), expectedEnd: date(2024, 3, 15), expectedDays: 15},
		{name: "Custom single day", period: "custom", start: "2024-02-29", end: "2024-02-29", expectedStart: date(2024, 2, 29), expectedEnd: date(2024, 2, 29), expectedDays: 1, singleDay: true},
		{name: "Garbage period", period: "fortnight", expectedError: timeframe.ErrInvalidPeriod},
		{name: "Zero days", period: "0", expectedError: timeframe.ErrInvalidPeriod},
		{name: "Negative days", period: "-3", expectedError: timeframe.ErrInvalidPeriod},
		{name: "Custom without start", period: "custom", expectedError: timeframe.ErrInvalidRange},
		{name: "Reversed custom range", period: "custom", start: "2024-01-10", end: "2024-01-01", expectedError: timeframe.ErrInvalidRange},
		{name: "Malformed date", period: "custom", start: "01/02/2024", expectedError: timeframe.ErrInvalidRange},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := parser.Parse(tc.period, tc.start, tc.end)
			if tc.expectedError != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.expectedError), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expectedStart, w.Start)
			assert.Equal(t, tc.expectedEnd, w.End)
			assert.Equal(t, tc.expectedDays, w.Days())
			assert.Equal(t, tc.singleDay, w.SingleDay)
		})
	}
}

func TestWindowBoundaries(t *testing.T) {
	w, err := timeframe.NewWindow("custom", time.Date(2024, 7, 1, 15, 30, 0, 0, time.UTC), time.Date(2024, 7, 3, 1, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, date(2024, 7, 1), w.From())
	assert.Equal(t, date(2024, 7, 4), w.Until())

	dates := timeframe.DaysBetween(w.Start, w.End)
	require.Len(t, dates, 3)
	assert.Equal(t, "2024-07-01", timeframe.DayKey(dates[0]))
	assert.Equal(t, "2024-07-03", timeframe.DayKey(dates[2]))
}

func TestWindowPrevious(t *testing.T) {
	w, err := timeframe.NewWindow("7", date(2024, 3, 9), date(2024, 3, 15))
	require.NoError(t, err)

	prev := w.Previous()
	assert.Equal(t, date(2024, 3, 2), prev.Start)
	assert.Equal(t, date(2024, 3, 8), prev.End)
	assert.Equal(t, w.Days(), prev.Days())

	single, err := timeframe.NewWindow("today", date(2024, 3, 15), date(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, date(2024, 3, 14), single.Previous().Start)
	assert.True(t, single.Previous().SingleDay)
}

func TestWindowKeyDistinguishesRanges(t *testing.T) {
	a, _ := timeframe.NewWindow("custom", date(2024, 1, 1), date(2024, 1, 7))
	b, _ := timeframe.NewWindow("custom", date(2024, 1, 1), date(2024, 1, 8))
	assert.NotEqual(t, a.Key(), b.Key())
	assert.Equal(t, "custom|2024-01-01|2024-01-07", a.Key())
}

func TestDaysBetween(t *testing.T) {
	assert.Nil(t, timeframe.DaysBetween(date(2024, 1, 2), date(2024, 1, 1)))
	assert.Len(t, timeframe.DaysBetween(date(2024, 2, 27), date(2024, 3, 1)), 4)
}

func TestWindowTooLarge(t *testing.T) {
	_, err := timeframe.NewWindow("custom", date(2000, 1, 1), date(2024, 1, 1))
	assert.ErrorIs(t, err, timeframe.ErrInvalidRange)
}
