package timeframe

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Parser struct {
	timeProvider TimeProvider
}

func NewParser(timeProvider ...TimeProvider) *Parser {
	var provider TimeProvider = &DefaultTimeProvider{}
	if len(timeProvider) > 0 && timeProvider[0] != nil {
		provider = timeProvider[0]
	}

	return &Parser{
		timeProvider: provider,
	}
}

// Parse resolves a period label into a window.
//
// Accepted periods are "today", "yesterday", a positive number of days ending
// today ("1" is today), and "custom" with explicit start and end dates. An
// explicit start date always wins over the label. An empty period defaults to
// the last 30 days.
func (p *Parser) Parse(period, startDate, endDate string) (Window, error) {
	period = strings.ToLower(strings.TrimSpace(period))
	today := Day(p.timeProvider.Now())

	if startDate != "" || period == PeriodCustom {
		return p.parseCustomRange(startDate, endDate, today)
	}

	if period == "" {
		period = DefaultPeriod
	}

	switch period {
	case PeriodToday:
		return NewWindow(PeriodToday, today, today)
	case PeriodYesterday:
		yesterday := today.AddDate(0, 0, -1)
		return NewWindow(PeriodYesterday, yesterday, yesterday)
	}

	days, err := strconv.Atoi(period)
	if err != nil || days < 1 {
		return Window{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
	if days > MaxWindowDays {
		return Window{}, fmt.Errorf("%w: %d days exceeds the %d day limit", ErrInvalidPeriod, days, MaxWindowDays)
	}

	return NewWindow(period, today.AddDate(0, 0, -(days-1)), today)
}

func (p *Parser) parseCustomRange(startDate, endDate string, today time.Time) (Window, error) {
	if startDate == "" {
		return Window{}, fmt.Errorf("%w: custom period requires a start date", ErrInvalidRange)
	}

	start, err := time.ParseInLocation(ISODate, startDate, time.UTC)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start date: %v", ErrInvalidRange, err)
	}

	end := today
	if endDate != "" {
		end, err = time.ParseInLocation(ISODate, endDate, time.UTC)
		if err != nil {
			return Window{}, fmt.Errorf("%w: end date: %v", ErrInvalidRange, err)
		}
	}

	return NewWindow(PeriodCustom, start, end)
}
