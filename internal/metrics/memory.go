package metrics

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"salesboard/internal/catalog"
	"salesboard/internal/orders"
	"salesboard/internal/timeframe"
)

// InMemory aggregates an already filtered, materialized order set. An
// instance memoizes revenue and daily series for its own lifetime and must
// not be shared between goroutines.
type InMemory struct {
	orders   []orders.Order
	window   timeframe.Window
	opts     Options
	resolver *RevenueResolver
	daily    map[string][]DailyBucket
}

// NewInMemory wraps set, which the caller has already narrowed to window
// and to its channel/status filter.
func NewInMemory(set []orders.Order, window timeframe.Window, opts Options) *InMemory {
	return &InMemory{
		orders:   set,
		window:   window,
		opts:     opts.withDefaults(),
		resolver: NewRevenueResolver(),
		daily:    make(map[string][]DailyBucket),
	}
}

func (m *InMemory) TotalRevenue() decimal.Decimal {
	total := decimal.Zero
	for _, o := range m.orders {
		total = total.Add(m.resolver.Resolve(o))
	}
	return total
}

func (m *InMemory) TotalOrders() int64 {
	return int64(len(m.orders))
}

func (m *InMemory) AverageOrderValue() decimal.Decimal {
	return average(m.TotalRevenue(), m.TotalOrders())
}

// TotalItemsSold sums quantities from the normalized item table and falls
// back to the embedded lines only when that sum is exactly zero. An order
// set that truly sold zero units through the table but carries embedded
// lines is therefore counted from the embedded lines.
func (m *InMemory) TotalItemsSold() int64 {
	var table int64
	for _, o := range m.orders {
		if o.LineItemsLoaded {
			table += orders.SumQuantity(o.LineItems)
		}
	}
	if table != 0 {
		return table
	}

	var embedded int64
	for _, o := range m.orders {
		embedded += orders.SumQuantity(o.Items)
	}
	return embedded
}

// Totals collects the headline figures in one pass.
func (m *InMemory) Totals() Totals {
	t := Totals{Revenue: decimal.Zero, Orders: m.TotalOrders(), Items: m.TotalItemsSold()}
	for _, o := range m.orders {
		t.Revenue = t.Revenue.Add(m.resolver.Resolve(o))
		if o.IsProcessed {
			t.ProcessedOrders++
		}
		if o.IsOpen {
			t.OpenOrders++
		}
	}
	return t
}

// GrowthRate compares this set's revenue with a previous period's orders.
func (m *InMemory) GrowthRate(previous []orders.Order) float64 {
	prev := NewRevenueResolver()
	total := decimal.Zero
	for _, o := range previous {
		total = total.Add(prev.Resolve(o))
	}
	return GrowthRate(m.TotalRevenue(), total)
}

type channelAcc struct {
	channel   string
	subsource string
	orders    int64
	revenue   decimal.Decimal
}

// TopChannels groups by (channel, subsource), highest revenue first with
// ties in order of first appearance. Percentages are shares of the revenue
// of all channels, not only the returned ones. A non-positive limit returns
// every channel.
func (m *InMemory) TopChannels(limit int) []TopChannel {
	index := make(map[[2]string]int)
	var accs []channelAcc
	total := decimal.Zero

	for _, o := range m.orders {
		rev := m.resolver.Resolve(o)
		total = total.Add(rev)

		k := [2]string{o.Channel, o.Subsource}
		i, ok := index[k]
		if !ok {
			i = len(accs)
			index[k] = i
			accs = append(accs, channelAcc{channel: o.Channel, subsource: o.Subsource, revenue: decimal.Zero})
		}
		accs[i].orders++
		accs[i].revenue = accs[i].revenue.Add(rev)
	}

	sort.SliceStable(accs, func(i, j int) bool {
		return accs[i].revenue.GreaterThan(accs[j].revenue)
	})
	if limit > 0 && len(accs) > limit {
		accs = accs[:limit]
	}

	out := make([]TopChannel, len(accs))
	for i, a := range accs {
		out[i] = newTopChannel(a.channel, a.subsource, a.orders, a.revenue, total)
	}
	return out
}

// TopProducts aggregates effective lines by SKU in a single pass, highest
// revenue first with ties in order of first appearance, and enriches the
// returned rows with one batched catalog lookup.
func (m *InMemory) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	index := make(map[string]int)
	var rows []productRow
	lastOrder := make([]int, 0)

	for n, o := range m.orders {
		for _, it := range o.EffectiveItems() {
			i, ok := index[it.SKU]
			if !ok {
				i = len(rows)
				index[it.SKU] = i
				rows = append(rows, productRow{sku: it.SKU, title: it.Title, category: it.Category, revenue: decimal.Zero})
				lastOrder = append(lastOrder, -1)
			}
			rows[i].quantity += int64(it.Quantity)
			rows[i].revenue = rows[i].revenue.Add(it.Value())
			if lastOrder[i] != n {
				rows[i].orders++
				lastOrder[i] = n
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].revenue.GreaterThan(rows[j].revenue)
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	return enrichProducts(ctx, m.opts.Catalog, rows)
}

// enrichProducts resolves catalog titles for rows in one lookup. A nil
// lookup keeps line titles.
func enrichProducts(ctx context.Context, lookup catalog.Lookup, rows []productRow) ([]TopProduct, error) {
	found := map[string]catalog.Product{}
	if lookup != nil && len(rows) > 0 {
		skus := make([]string, len(rows))
		for i, r := range rows {
			skus[i] = r.sku
		}
		var err error
		found, err = lookup.BySKUs(ctx, skus)
		if err != nil {
			return nil, fmt.Errorf("error enriching top products: %w", err)
		}
	}

	out := make([]TopProduct, len(rows))
	for i, r := range rows {
		p, ok := found[r.sku]
		out[i] = newTopProduct(r, p, ok)
	}
	return out, nil
}

// DailySalesData returns the daily series of w, memoized per window. A
// single-day window yields the padded three bucket series.
func (m *InMemory) DailySalesData(w timeframe.Window) []DailyBucket {
	key := w.Key()
	if series, ok := m.daily[key]; ok {
		return series
	}

	rows := make([]DayRow, 0, len(m.orders))
	for _, o := range m.orders {
		rows = append(rows, m.dayRow(o))
	}

	var series []DailyBucket
	if w.SingleDay {
		series = BuildPaddedDay(rows, w.Start)
	} else {
		series = BuildDailySeries(rows, w.Start, w.End)
	}
	m.daily[key] = series
	return series
}

func (m *InMemory) dayRow(o orders.Order) DayRow {
	rev := m.resolver.Resolve(o)
	r := DayRow{
		Day:     timeframe.DayKey(o.ReceivedAt),
		Orders:  1,
		Revenue: rev,
		Items:   orders.SumQuantity(o.EffectiveItems()),
	}
	if o.IsOpen {
		r.OpenOrders = 1
		r.OpenRevenue = rev
	}
	if o.IsProcessed {
		r.ProcessedOrders = 1
		r.ProcessedRevenue = rev
	}
	return r
}

// BestPerformingDay is the highest revenue day of the window, or nil when
// no day has orders.
func (m *InMemory) BestPerformingDay() *DailyBucket {
	return bestDay(m.DailySalesData(m.window))
}

// RecentOrders returns the newest orders first.
func (m *InMemory) RecentOrders(limit int) []RecentOrder {
	idx := make([]int, len(m.orders))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		oa, ob := m.orders[idx[a]], m.orders[idx[b]]
		if !oa.ReceivedAt.Equal(ob.ReceivedAt) {
			return oa.ReceivedAt.After(ob.ReceivedAt)
		}
		if oa.ID != ob.ID {
			return oa.ID > ob.ID
		}
		return oa.ExternalID > ob.ExternalID
	})
	if limit > 0 && len(idx) > limit {
		idx = idx[:limit]
	}

	out := make([]RecentOrder, len(idx))
	for i, n := range idx {
		o := m.orders[n]
		out[i] = newRecentOrder(o, m.resolver.Resolve(o))
	}
	return out
}

// Summary computes every metric of the window. Growth is left at zero; see
// GrowthRate.
func (m *InMemory) Summary(ctx context.Context) (Summary, error) {
	products, err := m.TopProducts(ctx, m.opts.TopLimit)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		Period:       m.window.Period,
		StartDate:    timeframe.DayKey(m.window.Start),
		EndDate:      timeframe.DayKey(m.window.End),
		Strategy:     StrategyMemory,
		TopChannels:  nonNil(m.TopChannels(m.opts.TopLimit)),
		TopProducts:  nonNil(products),
		DailySeries:  m.DailySalesData(m.window),
		RecentOrders: nonNil(m.RecentOrders(m.opts.RecentLimit)),
		BestDay:      m.BestPerformingDay(),
		ComputedAt:   m.opts.Now().UTC(),
	}
	applyTotals(&s, m.Totals())
	return s, nil
}
