package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"salesboard/internal/catalog"
	"salesboard/internal/orders"
)

// Defaults for Options.
const (
	DefaultTopLimit    = 6
	DefaultRecentLimit = 10
)

// Options tunes an aggregation run.
type Options struct {
	TopLimit    int
	RecentLimit int
	// Catalog enriches product rows. Pushdown falls back to the products
	// table; the in-memory path falls back to line titles.
	Catalog catalog.Lookup
	// Workers bounds concurrent pushdown queries. Values below 2 run them
	// one after another.
	Workers int
	Now     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TopLimit <= 0 {
		o.TopLimit = DefaultTopLimit
	}
	if o.RecentLimit <= 0 {
		o.RecentLimit = DefaultRecentLimit
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Totals are the headline figures of a window.
type Totals struct {
	Revenue         decimal.Decimal
	Orders          int64
	Items           int64
	ProcessedOrders int64
	OpenOrders      int64
}

// AverageOrderValue is revenue per order, zero without orders.
func (t Totals) AverageOrderValue() decimal.Decimal {
	return average(t.Revenue, t.Orders)
}

type TopChannel struct {
	Name          string  `json:"name"`
	Channel       string  `json:"channel"`
	Subsource     string  `json:"subsource"`
	Orders        int64   `json:"orders"`
	Revenue       float64 `json:"revenue"`
	AvgOrderValue float64 `json:"avg_order_value"`
	Percentage    float64 `json:"percentage"`
}

func newTopChannel(channel, subsource string, count int64, revenue, total decimal.Decimal) TopChannel {
	return TopChannel{
		Name:          orders.ChannelDisplayName(channel, subsource),
		Channel:       channel,
		Subsource:     subsource,
		Orders:        count,
		Revenue:       money(revenue),
		AvgOrderValue: money(average(revenue, count)),
		Percentage:    percentage(revenue, total),
	}
}

type TopProduct struct {
	SKU      string  `json:"sku"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Quantity int64   `json:"quantity"`
	Revenue  float64 `json:"revenue"`
	Orders   int64   `json:"orders"`
	AvgPrice float64 `json:"avg_price"`
	Margin   float64 `json:"margin"`
}

// productRow is a product aggregate before catalog enrichment.
type productRow struct {
	sku      string
	title    string
	category string
	quantity int64
	revenue  decimal.Decimal
	orders   int64
}

func newTopProduct(r productRow, p catalog.Product, found bool) TopProduct {
	tp := TopProduct{
		SKU:      r.sku,
		Title:    catalog.TitleOr(p, found, r.title),
		Category: catalog.CategoryOr(p, found, r.category),
		Quantity: r.quantity,
		Revenue:  money(r.revenue),
		Orders:   r.orders,
		AvgPrice: money(average(r.revenue, r.quantity)),
	}
	if found && p.PurchasePrice.IsPositive() {
		cost := p.PurchasePrice.Mul(decimal.NewFromInt(r.quantity))
		tp.Margin = money(r.revenue.Sub(cost))
	}
	return tp
}

type RecentOrder struct {
	ID         string    `json:"id"`
	Number     int64     `json:"number"`
	Channel    string    `json:"channel"`
	ReceivedAt time.Time `json:"received_at"`
	Revenue    float64   `json:"revenue"`
	Items      int64     `json:"items"`
	Status     string    `json:"status"`
	IsPaid     bool      `json:"is_paid"`
}

func newRecentOrder(o orders.Order, revenue decimal.Decimal) RecentOrder {
	return RecentOrder{
		ID:         o.Key(),
		Number:     o.Number,
		Channel:    o.ChannelDisplayName(),
		ReceivedAt: o.ReceivedAt,
		Revenue:    money(revenue),
		Items:      orders.SumQuantity(o.EffectiveItems()),
		Status:     o.Status(),
		IsPaid:     o.IsPaid,
	}
}

// Summary is the full metric set of one window.
type Summary struct {
	Period          string        `json:"period"`
	StartDate       string        `json:"start_date"`
	EndDate         string        `json:"end_date"`
	Strategy        Strategy      `json:"strategy"`
	Revenue         float64       `json:"revenue"`
	Orders          int64         `json:"orders"`
	Items           int64         `json:"items"`
	AvgOrderValue   float64       `json:"avg_order_value"`
	ProcessedOrders int64         `json:"processed_orders"`
	OpenOrders      int64         `json:"open_orders"`
	GrowthRate      float64       `json:"growth_rate"`
	TopChannels     []TopChannel  `json:"top_channels"`
	TopProducts     []TopProduct  `json:"top_products"`
	DailySeries     []DailyBucket `json:"daily_series"`
	RecentOrders    []RecentOrder `json:"recent_orders"`
	BestDay         *DailyBucket  `json:"best_day"`
	ComputedAt      time.Time     `json:"computed_at"`
}

func applyTotals(s *Summary, t Totals) {
	s.Revenue = money(t.Revenue)
	s.Orders = t.Orders
	s.Items = t.Items
	s.AvgOrderValue = money(t.AverageOrderValue())
	s.ProcessedOrders = t.ProcessedOrders
	s.OpenOrders = t.OpenOrders
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
