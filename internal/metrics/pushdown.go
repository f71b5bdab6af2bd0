package metrics

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"salesboard/internal/catalog"
	"salesboard/internal/orders"
	"salesboard/internal/pkg/async"
	"salesboard/internal/timeframe"
)

// ErrStoreUnavailable wraps every store failure on the pushdown path.
var ErrStoreUnavailable = errors.New("order store unavailable")

// resolvedCTE selects the orders of the window with their revenue resolved by
// the same chain as RevenueResolver: positive charge, positive embedded line
// sum, positive normalized line sum, positive paid amount, else zero. units
// is the quantity of the effective lines: embedded when the order has any,
// normalized otherwise.
const resolvedCTE = `
WITH base AS (
	SELECT o.*,
		ROW_NUMBER() OVER (ORDER BY o.received_at, o.id) AS seq,
		CASE WHEN json_valid(o.items) THEN
			CASE WHEN json_type(o.items) = 'array' THEN o.items ELSE '[]' END
		ELSE '[]' END AS embedded_json
	FROM orders o
	WHERE o.received_at >= ? AND o.received_at < ? AND %s
),
embedded AS (
	SELECT b.id AS order_id,
		COUNT(*) AS lines,
		SUM(COALESCE(CAST(json_extract(j.value, '$.quantity') AS INTEGER), 0)) AS units,
		SUM(CASE
			WHEN COALESCE(CAST(json_extract(j.value, '$.line_total') AS REAL), 0) > 0
				THEN CAST(json_extract(j.value, '$.line_total') AS REAL)
			ELSE COALESCE(CAST(json_extract(j.value, '$.unit_price') AS REAL), 0)
				* COALESCE(CAST(json_extract(j.value, '$.quantity') AS INTEGER), 0)
		END) AS value
	FROM base b, json_each(b.embedded_json) j
	GROUP BY b.id
),
normalized AS (
	SELECT oi.order_id,
		SUM(oi.quantity) AS units,
		SUM(CASE WHEN oi.line_total > 0 THEN oi.line_total ELSE oi.unit_price * oi.quantity END) AS value
	FROM order_items oi
	JOIN base b ON b.id = oi.order_id
	GROUP BY oi.order_id
),
resolved AS (
	SELECT b.id, b.seq, b.embedded_json,
		substr(b.received_at, 1, 10) AS day,
		b.channel,
		COALESCE(b.subsource, '') AS subsource,
		b.is_open,
		b.is_processed,
		CASE
			WHEN b.total_charge > 0 THEN b.total_charge
			WHEN COALESCE(e.value, 0) > 0 THEN e.value
			WHEN COALESCE(n.value, 0) > 0 THEN n.value
			WHEN b.total_paid > 0 THEN b.total_paid
			ELSE 0
		END AS revenue,
		CASE WHEN COALESCE(e.lines, 0) > 0 THEN COALESCE(e.units, 0) ELSE COALESCE(n.units, 0) END AS units,
		COALESCE(e.units, 0) AS embedded_units
	FROM base b
	LEFT JOIN embedded e ON e.order_id = b.id
	LEFT JOIN normalized n ON n.order_id = b.id
)`

// productLinesCTE extends resolvedCTE with every effective line, ordered by
// first appearance.
const productLinesCTE = `,
lines AS (
	SELECT r.seq * 1000000 + CAST(j.key AS INTEGER) AS ord,
		r.id AS order_id,
		COALESCE(json_extract(j.value, '$.sku'), '') AS sku,
		COALESCE(json_extract(j.value, '$.title'), '') AS title,
		COALESCE(json_extract(j.value, '$.category'), '') AS category,
		COALESCE(CAST(json_extract(j.value, '$.quantity') AS INTEGER), 0) AS quantity,
		CASE
			WHEN COALESCE(CAST(json_extract(j.value, '$.line_total') AS REAL), 0) > 0
				THEN CAST(json_extract(j.value, '$.line_total') AS REAL)
			ELSE COALESCE(CAST(json_extract(j.value, '$.unit_price') AS REAL), 0)
				* COALESCE(CAST(json_extract(j.value, '$.quantity') AS INTEGER), 0)
		END AS value
	FROM resolved r, json_each(r.embedded_json) j
	UNION ALL
	SELECT r.seq * 1000000 + ROW_NUMBER() OVER (PARTITION BY oi.order_id ORDER BY oi.id) - 1 AS ord,
		r.id AS order_id,
		oi.sku,
		COALESCE(oi.title, '') AS title,
		COALESCE(oi.category, '') AS category,
		oi.quantity,
		CASE WHEN oi.line_total > 0 THEN oi.line_total ELSE oi.unit_price * oi.quantity END AS value
	FROM order_items oi
	JOIN resolved r ON r.id = oi.order_id
	WHERE json_array_length(r.embedded_json) = 0
),
ranked AS (
	SELECT l.*,
		FIRST_VALUE(l.title) OVER (PARTITION BY l.sku ORDER BY l.ord) AS first_title,
		FIRST_VALUE(l.category) OVER (PARTITION BY l.sku ORDER BY l.ord) AS first_category
	FROM lines l
)`

// Pushdown computes the same metrics as InMemory with grouped queries, so
// the order set of the window is never materialized. An instance memoizes
// its totals and daily series and must not be shared between goroutines.
type Pushdown struct {
	db     *gorm.DB
	window timeframe.Window
	filter orders.Filter
	opts   Options

	totals *Totals
	daily  []DailyBucket
}

func NewPushdown(db *gorm.DB, window timeframe.Window, filter orders.Filter, opts Options) *Pushdown {
	opts = opts.withDefaults()
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewRepository(db)
	}
	return &Pushdown{db: db, window: window, filter: filter, opts: opts}
}

func storeErr(what string, err error) error {
	return fmt.Errorf("%w: error querying %s: %w", ErrStoreUnavailable, what, err)
}

// scoped prefixes query with the resolved CTE for this window and filter.
func (p *Pushdown) scoped(cte, query string, extra ...any) (string, []any) {
	where, args := p.filter.SQL("o")
	sql := fmt.Sprintf(resolvedCTE, where) + cte + "\n" + query
	all := append([]any{p.window.From(), p.window.Until()}, args...)
	return sql, append(all, extra...)
}

type totalsRow struct {
	Orders          int64
	Revenue         float64
	ProcessedOrders int64
	OpenOrders      int64
}

// Totals runs the headline aggregate and the items-sold queries.
func (p *Pushdown) Totals(ctx context.Context) (Totals, error) {
	if p.totals != nil {
		return *p.totals, nil
	}

	sql, args := p.scoped("", `
SELECT COUNT(*) AS orders,
	COALESCE(SUM(revenue), 0) AS revenue,
	COALESCE(SUM(CASE WHEN is_processed THEN 1 ELSE 0 END), 0) AS processed_orders,
	COALESCE(SUM(CASE WHEN is_open THEN 1 ELSE 0 END), 0) AS open_orders
FROM resolved`)

	var row totalsRow
	if err := p.db.WithContext(ctx).Raw(sql, args...).Scan(&row).Error; err != nil {
		return Totals{}, storeErr("totals", err)
	}

	items, err := p.TotalItemsSold(ctx)
	if err != nil {
		return Totals{}, err
	}

	t := Totals{
		Revenue:         decimal.NewFromFloat(row.Revenue),
		Orders:          row.Orders,
		Items:           items,
		ProcessedOrders: row.ProcessedOrders,
		OpenOrders:      row.OpenOrders,
	}
	p.totals = &t
	return t, nil
}

func (p *Pushdown) TotalRevenue(ctx context.Context) (decimal.Decimal, error) {
	t, err := p.Totals(ctx)
	return t.Revenue, err
}

func (p *Pushdown) TotalOrders(ctx context.Context) (int64, error) {
	t, err := p.Totals(ctx)
	return t.Orders, err
}

func (p *Pushdown) AverageOrderValue(ctx context.Context) (decimal.Decimal, error) {
	t, err := p.Totals(ctx)
	return t.AverageOrderValue(), err
}

// TotalItemsSold sums the item table joined to the window's orders and falls
// back to the embedded lines only when that sum is exactly zero, matching
// InMemory.TotalItemsSold.
func (p *Pushdown) TotalItemsSold(ctx context.Context) (int64, error) {
	where, args := p.filter.SQL("o")
	query := `
SELECT COALESCE(SUM(oi.quantity), 0)
FROM order_items oi
JOIN orders o ON o.id = oi.order_id
WHERE o.received_at >= ? AND o.received_at < ? AND ` + where

	var table int64
	all := append([]any{p.window.From(), p.window.Until()}, args...)
	if err := p.db.WithContext(ctx).Raw(query, all...).Scan(&table).Error; err != nil {
		return 0, storeErr("items sold", err)
	}
	if table != 0 {
		return table, nil
	}

	sql, sqlArgs := p.scoped("", `SELECT COALESCE(SUM(embedded_units), 0) FROM resolved`)
	var embedded int64
	if err := p.db.WithContext(ctx).Raw(sql, sqlArgs...).Scan(&embedded).Error; err != nil {
		return 0, storeErr("embedded items sold", err)
	}
	return embedded, nil
}

type dayResult struct {
	Day              string
	Orders           int64
	Revenue          float64
	Items            int64
	OpenOrders       int64
	ProcessedOrders  int64
	OpenRevenue      float64
	ProcessedRevenue float64
}

// DailySalesData groups by day in the store and gap-fills the result. A
// single-day window yields the padded three bucket series.
func (p *Pushdown) DailySalesData(ctx context.Context) ([]DailyBucket, error) {
	if p.daily != nil {
		return p.daily, nil
	}

	sql, args := p.scoped("", `
SELECT day,
	COUNT(*) AS orders,
	COALESCE(SUM(revenue), 0) AS revenue,
	COALESCE(SUM(units), 0) AS items,
	COALESCE(SUM(CASE WHEN is_open THEN 1 ELSE 0 END), 0) AS open_orders,
	COALESCE(SUM(CASE WHEN is_processed THEN 1 ELSE 0 END), 0) AS processed_orders,
	COALESCE(SUM(CASE WHEN is_open THEN revenue ELSE 0 END), 0) AS open_revenue,
	COALESCE(SUM(CASE WHEN is_processed THEN revenue ELSE 0 END), 0) AS processed_revenue
FROM resolved
GROUP BY day
ORDER BY day`)

	var results []dayResult
	if err := p.db.WithContext(ctx).Raw(sql, args...).Scan(&results).Error; err != nil {
		return nil, storeErr("daily series", err)
	}

	rows := make([]DayRow, len(results))
	for i, r := range results {
		rows[i] = DayRow{
			Day:              r.Day,
			Orders:           r.Orders,
			Revenue:          decimal.NewFromFloat(r.Revenue),
			Items:            r.Items,
			OpenOrders:       r.OpenOrders,
			ProcessedOrders:  r.ProcessedOrders,
			OpenRevenue:      decimal.NewFromFloat(r.OpenRevenue),
			ProcessedRevenue: decimal.NewFromFloat(r.ProcessedRevenue),
		}
	}

	if p.window.SingleDay {
		p.daily = BuildPaddedDay(rows, p.window.Start)
	} else {
		p.daily = BuildDailySeries(rows, p.window.Start, p.window.End)
	}
	return p.daily, nil
}

// BestPerformingDay is the highest revenue day, or nil when no day has orders.
func (p *Pushdown) BestPerformingDay(ctx context.Context) (*DailyBucket, error) {
	series, err := p.DailySalesData(ctx)
	if err != nil {
		return nil, err
	}
	return bestDay(series), nil
}

type channelResult struct {
	Channel   string
	Subsource string
	Orders    int64
	Revenue   float64
}

func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// channels ranks on the sum scaled to the stored money precision, so totals
// that are equal as decimals tie and fall back to first appearance.
func (p *Pushdown) channels(ctx context.Context, limit int) ([]channelResult, error) {
	sql, args := p.scoped("", `
SELECT channel, subsource, COUNT(*) AS orders, COALESCE(SUM(revenue), 0) AS revenue
FROM resolved
GROUP BY channel, subsource
ORDER BY CAST(ROUND(SUM(revenue) * 10000) AS INTEGER) DESC, MIN(seq) ASC
LIMIT ?`, sqlLimit(limit))

	var results []channelResult
	if err := p.db.WithContext(ctx).Raw(sql, args...).Scan(&results).Error; err != nil {
		return nil, storeErr("top channels", err)
	}
	return results, nil
}

func channelsWithShare(results []channelResult, total decimal.Decimal) []TopChannel {
	out := make([]TopChannel, len(results))
	for i, r := range results {
		out[i] = newTopChannel(r.Channel, r.Subsource, r.Orders, decimal.NewFromFloat(r.Revenue), total)
	}
	return out
}

// TopChannels is InMemory.TopChannels computed in the store.
func (p *Pushdown) TopChannels(ctx context.Context, limit int) ([]TopChannel, error) {
	results, err := p.channels(ctx, limit)
	if err != nil {
		return nil, err
	}
	total, err := p.TotalRevenue(ctx)
	if err != nil {
		return nil, err
	}
	return channelsWithShare(results, total), nil
}

type productResult struct {
	SKU      string
	Title    string
	Category string
	Quantity int64
	Revenue  float64
	Orders   int64
}

// TopProducts groups effective lines by SKU in the store, limits there, and
// reconciles titles with one batched catalog lookup.
func (p *Pushdown) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	sql, args := p.scoped(productLinesCTE, `
SELECT sku,
	MAX(first_title) AS title,
	MAX(first_category) AS category,
	COALESCE(SUM(quantity), 0) AS quantity,
	COALESCE(SUM(value), 0) AS revenue,
	COUNT(DISTINCT order_id) AS orders
FROM ranked
GROUP BY sku
ORDER BY CAST(ROUND(SUM(value) * 10000) AS INTEGER) DESC, MIN(ord) ASC
LIMIT ?`, sqlLimit(limit))

	var results []productResult
	if err := p.db.WithContext(ctx).Raw(sql, args...).Scan(&results).Error; err != nil {
		return nil, storeErr("top products", err)
	}

	rows := make([]productRow, len(results))
	for i, r := range results {
		rows[i] = productRow{
			sku:      r.SKU,
			title:    r.Title,
			category: r.Category,
			quantity: r.Quantity,
			revenue:  decimal.NewFromFloat(r.Revenue),
			orders:   r.Orders,
		}
	}

	out, err := enrichProducts(ctx, p.opts.Catalog, rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return out, nil
}

// RecentOrders loads only the newest limit orders and resolves them in memory.
func (p *Pushdown) RecentOrders(ctx context.Context, limit int) ([]RecentOrder, error) {
	where, args := p.filter.SQL("")

	var records []orders.OrderRecord
	err := p.db.WithContext(ctx).
		Preload("LineItems", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") }).
		Where("received_at >= ? AND received_at < ?", p.window.From(), p.window.Until()).
		Where(where, args...).
		Order("received_at DESC, id DESC").
		Limit(sqlLimit(limit)).
		Find(&records).Error
	if err != nil {
		return nil, storeErr("recent orders", err)
	}

	resolver := NewRevenueResolver()
	out := make([]RecentOrder, len(records))
	for i, r := range records {
		o := orders.FromRecord(r, true)
		out[i] = newRecentOrder(o, resolver.Resolve(o))
	}
	return out, nil
}

// Summary runs every query of the window, up to Options.Workers at a time,
// and fails with ErrStoreUnavailable if any of them fails.
func (p *Pushdown) Summary(ctx context.Context) (Summary, error) {
	var (
		totals   Totals
		channels []channelResult
		products []TopProduct
		daily    []DailyBucket
		recent   []RecentOrder
	)

	tasks := []async.Task{
		{Name: "totals", Execute: func(ctx context.Context) (interface{}, error) {
			var err error
			totals, err = p.Totals(ctx)
			return nil, err
		}},
		{Name: "daily", Execute: func(ctx context.Context) (interface{}, error) {
			var err error
			daily, err = p.DailySalesData(ctx)
			return nil, err
		}},
		{Name: "channels", Execute: func(ctx context.Context) (interface{}, error) {
			var err error
			channels, err = p.channels(ctx, p.opts.TopLimit)
			return nil, err
		}},
		{Name: "products", Execute: func(ctx context.Context) (interface{}, error) {
			var err error
			products, err = p.TopProducts(ctx, p.opts.TopLimit)
			return nil, err
		}},
		{Name: "recent", Execute: func(ctx context.Context) (interface{}, error) {
			var err error
			recent, err = p.RecentOrders(ctx, p.opts.RecentLimit)
			return nil, err
		}},
	}

	if p.opts.Workers > 1 {
		results := async.NewPool(p.opts.Workers).Execute(ctx, tasks)
		if err := async.FirstError(tasks, results); err != nil {
			return Summary{}, err
		}
	} else {
		for _, t := range tasks {
			if _, err := t.Execute(ctx); err != nil {
				return Summary{}, err
			}
		}
	}

	s := Summary{
		Period:       p.window.Period,
		StartDate:    timeframe.DayKey(p.window.Start),
		EndDate:      timeframe.DayKey(p.window.End),
		Strategy:     StrategyPushdown,
		TopChannels:  channelsWithShare(channels, totals.Revenue),
		TopProducts:  nonNil(products),
		DailySeries:  daily,
		RecentOrders: nonNil(recent),
		BestDay:      bestDay(daily),
		ComputedAt:   p.opts.Now().UTC(),
	}
	applyTotals(&s, totals)
	return s, nil
}
