// Package charts shapes computed metrics into the series structures consumed
// by dashboard charts. It performs no aggregation.
package charts

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"salesboard/internal/metrics"
)

// Metric selects the DailyBucket field plotted by a series.
type Metric string

const (
	MetricRevenue          Metric = "revenue"
	MetricOrders           Metric = "orders"
	MetricItems            Metric = "items"
	MetricAvgOrderValue    Metric = "avg_order_value"
	MetricOpenOrders       Metric = "open_orders"
	MetricProcessedOrders  Metric = "processed_orders"
	MetricOpenRevenue      Metric = "open_revenue"
	MetricProcessedRevenue Metric = "processed_revenue"
)

// IsMonetary reports whether m is rendered as an amount of money.
func (m Metric) IsMonetary() bool {
	switch m {
	case MetricRevenue, MetricAvgOrderValue, MetricOpenRevenue, MetricProcessedRevenue:
		return true
	default:
		return false
	}
}

// ParseMetric returns the metric named s, or revenue for unknown names.
func ParseMetric(s string) Metric {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case MetricRevenue, MetricOrders, MetricItems, MetricAvgOrderValue,
		MetricOpenOrders, MetricProcessedOrders, MetricOpenRevenue, MetricProcessedRevenue:
		return m
	default:
		return MetricRevenue
	}
}

func (m Metric) value(b metrics.DailyBucket) float64 {
	switch m {
	case MetricOrders:
		return float64(b.Orders)
	case MetricItems:
		return float64(b.Items)
	case MetricAvgOrderValue:
		return b.AvgOrderValue
	case MetricOpenOrders:
		return float64(b.OpenOrders)
	case MetricProcessedOrders:
		return float64(b.ProcessedOrders)
	case MetricOpenRevenue:
		return b.OpenRevenue
	case MetricProcessedRevenue:
		return b.ProcessedRevenue
	default:
		return b.Revenue
	}
}

// Series is one plotted data set.
type Series struct {
	Name   string    `json:"name"`
	Metric Metric    `json:"metric"`
	Data   []float64 `json:"data"`
}

// Padding asks the renderer for extra room around a chart whose series has
// at most one real data point, so the point is not drawn against an edge.
type Padding struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// SparsePadding is applied to series with at most one real data point.
var SparsePadding = Padding{Left: 40, Right: 40, Top: 20, Bottom: 20}

// Chart is a line or bar chart over a daily series.
type Chart struct {
	Type    string   `json:"type"`
	Labels  []string `json:"labels"`
	Series  []Series `json:"series"`
	Padding *Padding `json:"padding,omitempty"`
}

// Doughnut is a share-of-total chart.
type Doughnut struct {
	Labels      []string  `json:"labels"`
	Values      []float64 `json:"values"`
	Percentages []float64 `json:"percentages"`
}

// Formatter renders chart labels in one currency and locale.
type Formatter struct {
	printer  *message.Printer
	currency string
	symbol   string
}

var currencySymbols = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
	"JPY": "¥",
	"AUD": "A$",
	"CAD": "C$",
}

// NewFormatter returns a Formatter for a three-letter currency code. Unknown
// codes are rendered as a prefix ("CHF 10.00").
func NewFormatter(currency string) *Formatter {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "GBP"
	}
	symbol, ok := currencySymbols[currency]
	if !ok {
		symbol = currency + " "
	}
	return &Formatter{
		printer:  message.NewPrinter(language.BritishEnglish),
		currency: currency,
		symbol:   symbol,
	}
}

// Money formats an amount with the currency symbol and two decimals.
func (f *Formatter) Money(v float64) string {
	if v < 0 {
		return "-" + f.symbol + f.printer.Sprintf("%.2f", -v)
	}
	return f.symbol + f.printer.Sprintf("%.2f", v)
}

// Count formats a whole number with digit grouping.
func (f *Formatter) Count(v int64) string {
	return f.printer.Sprintf("%d", v)
}

func (f *Formatter) metric(m Metric, v float64) string {
	if m.IsMonetary() {
		return f.Money(v)
	}
	return f.Count(int64(v))
}

func (f *Formatter) label(b metrics.DailyBucket, m Metric) string {
	return b.Date + ": " + f.metric(m, m.value(b))
}

// Line projects a daily series onto a single-metric line chart. Each label
// carries the date and the formatted metric value.
func (f *Formatter) Line(series []metrics.DailyBucket, metric Metric) Chart {
	return f.project("line", series, metric)
}

// Bar projects a daily series onto a bar chart with one data set per metric.
// Labels carry the value of the first metric. With no metrics it plots
// orders.
func (f *Formatter) Bar(series []metrics.DailyBucket, ms ...Metric) Chart {
	if len(ms) == 0 {
		ms = []Metric{MetricOrders}
	}
	return f.project("bar", series, ms...)
}

func (f *Formatter) project(kind string, series []metrics.DailyBucket, ms ...Metric) Chart {
	chart := Chart{
		Type:   kind,
		Labels: make([]string, len(series)),
		Series: make([]Series, len(ms)),
	}
	for j, m := range ms {
		chart.Series[j] = Series{Name: seriesName(m), Metric: m, Data: make([]float64, len(series))}
	}

	for i, b := range series {
		chart.Labels[i] = f.label(b, ms[0])
		for j, m := range ms {
			chart.Series[j].Data[i] = m.value(b)
		}
	}

	if realPoints(series) <= 1 {
		padding := SparsePadding
		chart.Padding = &padding
	}
	return chart
}

// Doughnut projects channel rows onto a revenue share chart.
func (f *Formatter) Doughnut(channels []metrics.TopChannel) Doughnut {
	d := Doughnut{
		Labels:      make([]string, len(channels)),
		Values:      make([]float64, len(channels)),
		Percentages: make([]float64, len(channels)),
	}
	for i, c := range channels {
		d.Labels[i] = c.Name + ": " + f.Money(c.Revenue)
		d.Values[i] = c.Revenue
		d.Percentages[i] = c.Percentage
	}
	return d
}

func realPoints(series []metrics.DailyBucket) int {
	n := 0
	for _, b := range series {
		if b.HasData() {
			n++
		}
	}
	return n
}

func seriesName(m Metric) string {
	switch m {
	case MetricAvgOrderValue:
		return "Avg. order value"
	case MetricOpenOrders:
		return "Open orders"
	case MetricProcessedOrders:
		return "Processed orders"
	case MetricOpenRevenue:
		return "Open revenue"
	case MetricProcessedRevenue:
		return "Processed revenue"
	case MetricOrders:
		return "Orders"
	case MetricItems:
		return "Items"
	default:
		return "Revenue"
	}
}

// Dashboard is the full chart payload for one summary.
type Dashboard struct {
	Revenue  Chart    `json:"revenue"`
	Orders   Chart    `json:"orders"`
	Channels Doughnut `json:"channels"`
}

// Project builds the dashboard charts for a summary.
func (f *Formatter) Project(s metrics.Summary, metric Metric) Dashboard {
	return Dashboard{
		Revenue:  f.Line(s.DailySeries, metric),
		Orders:   f.Bar(s.DailySeries, MetricProcessedOrders, MetricOpenOrders),
		Channels: f.Doughnut(s.TopChannels),
	}
}
