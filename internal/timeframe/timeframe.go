// Package timeframe resolves reporting periods into calendar-day windows.
//
// All windows are expressed in UTC calendar days. A window covers the
// inclusive day range [Start, End]; queries use the half-open instant range
// [From(), Until()).
package timeframe

import (
	"errors"
	"fmt"
	"time"
)

// ISODate is the layout used for day keys and date parameters.
const ISODate = "2006-01-02"

// Named periods.
const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodCustom    = "custom"
	DefaultPeriod   = "30"
)

// MaxWindowDays bounds custom and numeric periods.
const MaxWindowDays = 3660

var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidRange  = errors.New("invalid date range")
)

type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the system clock.
type DefaultTimeProvider struct{}

func (p *DefaultTimeProvider) Now() time.Time {
	return time.Now().UTC()
}

// FixedTimeProvider always returns the same instant. Useful for tests and
// for recomputing a report as of a past date.
type FixedTimeProvider struct {
	At time.Time
}

func (p FixedTimeProvider) Now() time.Time {
	return p.At.UTC()
}

// Window is a contiguous, inclusive range of UTC calendar days.
type Window struct {
	Period    string
	Start     time.Time
	End       time.Time
	SingleDay bool
}

// NewWindow builds a window from two instants, truncating both to their UTC day.
func NewWindow(period string, start, end time.Time) (Window, error) {
	s, e := Day(start), Day(end)
	if s.After(e) {
		return Window{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, DayKey(s), DayKey(e))
	}
	w := Window{Period: period, Start: s, End: e}
	if w.Days() > MaxWindowDays {
		return Window{}, fmt.Errorf("%w: %d days exceeds the %d day limit", ErrInvalidRange, w.Days(), MaxWindowDays)
	}
	w.SingleDay = s.Equal(e)
	return w, nil
}

// From returns the first instant covered by the window.
func (w Window) From() time.Time {
	return w.Start
}

// Until returns the first instant after the window.
func (w Window) Until() time.Time {
	return w.End.AddDate(0, 0, 1)
}

// Days returns the number of calendar days in the window.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Previous returns the window of equal length that ends the day before w starts.
func (w Window) Previous() Window {
	days := w.Days()
	end := w.Start.AddDate(0, 0, -1)
	return Window{
		Period:    w.Period,
		Start:     end.AddDate(0, 0, -(days - 1)),
		End:       end,
		SingleDay: w.SingleDay,
	}
}

// Key identifies the window for memoization and cache keys.
func (w Window) Key() string {
	return w.Period + "|" + DayKey(w.Start) + "|" + DayKey(w.End)
}

// Day truncates t to midnight UTC of its UTC calendar day.
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey returns the ISO date of t's UTC calendar day.
func DayKey(t time.Time) string {
	return t.UTC().Format(ISODate)
}

// DaysBetween lists every day from start to end inclusive. It returns nil when
// end is before start.
func DaysBetween(start, end time.Time) []time.Time {
	s, e := Day(start), Day(end)
	if e.Before(s) {
		return nil
	}
	days := make([]time.Time, 0, int(e.Sub(s).Hours()/24)+1)
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
