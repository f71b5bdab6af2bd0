package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"salesboard/internal/timeframe"
)

// DayLabel is the display layout of DailyBucket.Date.
const DayLabel = "Jan 2"

// DayRow is a partial aggregate for one day. Rows for the same day are
// merged, so callers may pass one row per order or one row per grouped day.
type DayRow struct {
	Day              string // ISO date
	Orders           int64
	Revenue          decimal.Decimal
	Items            int64
	OpenOrders       int64
	ProcessedOrders  int64
	OpenRevenue      decimal.Decimal
	ProcessedRevenue decimal.Decimal
}

// DailyBucket is one calendar day of a daily series.
type DailyBucket struct {
	Date             string  `json:"date"`
	ISODate          string  `json:"iso_date"`
	Revenue          float64 `json:"revenue"`
	Orders           int64   `json:"orders"`
	Items            int64   `json:"items"`
	OpenOrders       int64   `json:"open_orders"`
	ProcessedOrders  int64   `json:"processed_orders"`
	OpenRevenue      float64 `json:"open_revenue"`
	ProcessedRevenue float64 `json:"processed_revenue"`
	AvgOrderValue    float64 `json:"avg_order_value"`
}

// HasData reports whether any order fell on the day.
func (b DailyBucket) HasData() bool {
	return b.Orders > 0
}

// BuildDailySeries returns one bucket per day from start to end inclusive.
// Every day is seeded with zeros, rows are merged in a single pass, and the
// average order value is derived afterwards. Rows outside the range are
// ignored.
func BuildDailySeries(rows []DayRow, start, end time.Time) []DailyBucket {
	days := timeframe.DaysBetween(start, end)
	if len(days) == 0 {
		return []DailyBucket{}
	}

	index := make(map[string]*DayRow, len(days))
	accs := make([]DayRow, len(days))
	for i, d := range days {
		key := timeframe.DayKey(d)
		accs[i] = DayRow{Day: key, Revenue: decimal.Zero, OpenRevenue: decimal.Zero, ProcessedRevenue: decimal.Zero}
		index[key] = &accs[i]
	}

	for _, r := range rows {
		acc, ok := index[r.Day]
		if !ok {
			continue
		}
		acc.Orders += r.Orders
		acc.Revenue = acc.Revenue.Add(r.Revenue)
		acc.Items += r.Items
		acc.OpenOrders += r.OpenOrders
		acc.ProcessedOrders += r.ProcessedOrders
		acc.OpenRevenue = acc.OpenRevenue.Add(r.OpenRevenue)
		acc.ProcessedRevenue = acc.ProcessedRevenue.Add(r.ProcessedRevenue)
	}

	series := make([]DailyBucket, len(days))
	for i, d := range days {
		series[i] = toBucket(d, accs[i])
	}
	return series
}

// BuildPaddedDay returns a three bucket series for a single-day period: the
// day before (zero), the day itself, and the day after (zero). The padding
// lets single-point charts render with some width.
func BuildPaddedDay(rows []DayRow, day time.Time) []DailyBucket {
	d := timeframe.Day(day)
	target := BuildDailySeries(rows, d, d)

	prev := d.AddDate(0, 0, -1)
	next := d.AddDate(0, 0, 1)
	return []DailyBucket{
		toBucket(prev, DayRow{}),
		target[0],
		toBucket(next, DayRow{}),
	}
}

func toBucket(day time.Time, r DayRow) DailyBucket {
	return DailyBucket{
		Date:             day.Format(DayLabel),
		ISODate:          timeframe.DayKey(day),
		Revenue:          money(r.Revenue),
		Orders:           r.Orders,
		Items:            r.Items,
		OpenOrders:       r.OpenOrders,
		ProcessedOrders:  r.ProcessedOrders,
		OpenRevenue:      money(r.OpenRevenue),
		ProcessedRevenue: money(r.ProcessedRevenue),
		AvgOrderValue:    money(average(r.Revenue, r.Orders)),
	}
}

// bestDay returns the bucket with the highest revenue, earliest first on
// ties, or nil when no bucket has orders.
func bestDay(series []DailyBucket) *DailyBucket {
	var best *DailyBucket
	for i := range series {
		b := series[i]
		if !b.HasData() {
			continue
		}
		if best == nil || b.Revenue > best.Revenue {
			picked := b
			best = &picked
		}
	}
	return best
}
