package charts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesboard/internal/charts"
	"salesboard/internal/metrics"
)

func series() []metrics.DailyBucket {
	return []metrics.DailyBucket{
		{Date: "Jun 1", ISODate: "2024-06-01", Revenue: 12.5, Orders: 2, AvgOrderValue: 6.25, OpenOrders: 1, ProcessedOrders: 1},
		{Date: "Jun 2", ISODate: "2024-06-02"},
		{Date: "Jun 3", ISODate: "2024-06-03", Revenue: 1500, Orders: 1500, ProcessedOrders: 1500},
	}
}

func TestLine(t *testing.T) {
	f := charts.NewFormatter("GBP")

	chart := f.Line(series(), charts.MetricRevenue)
	assert.Equal(t, "line", chart.Type)
	assert.Equal(t, []string{"Jun 1: £12.50", "Jun 2: £0.00", "Jun 3: £1,500.00"}, chart.Labels)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, []float64{12.5, 0, 1500}, chart.Series[0].Data)
	assert.Equal(t, "Revenue", chart.Series[0].Name)
	assert.Nil(t, chart.Padding)
}

func TestLineCountLabels(t *testing.T) {
	chart := charts.NewFormatter("GBP").Line(series(), charts.MetricOrders)
	assert.Equal(t, []string{"Jun 1: 2", "Jun 2: 0", "Jun 3: 1,500"}, chart.Labels)
}

func TestBar(t *testing.T) {
	chart := charts.NewFormatter("USD").Bar(series(), charts.MetricProcessedOrders, charts.MetricOpenOrders)
	assert.Equal(t, "bar", chart.Type)
	require.Len(t, chart.Series, 2)
	assert.Equal(t, []float64{1, 0, 1500}, chart.Series[0].Data)
	assert.Equal(t, []float64{1, 0, 0}, chart.Series[1].Data)

	defaulted := charts.NewFormatter("USD").Bar(series())
	require.Len(t, defaulted.Series, 1)
	assert.Equal(t, charts.MetricOrders, defaulted.Series[0].Metric)
}

func TestSparseSeriesIsPadded(t *testing.T) {
	padded := []metrics.DailyBucket{
		{Date: "Jun 1"},
		{Date: "Jun 2", Revenue: 10, Orders: 1},
		{Date: "Jun 3"},
	}

	chart := charts.NewFormatter("GBP").Line(padded, charts.MetricRevenue)
	require.NotNil(t, chart.Padding)
	assert.Equal(t, charts.SparsePadding, *chart.Padding)

	empty := charts.NewFormatter("GBP").Line(nil, charts.MetricRevenue)
	assert.NotNil(t, empty.Padding)
	assert.Empty(t, empty.Labels)
}

func TestDoughnut(t *testing.T) {
	channels := []metrics.TopChannel{
		{Name: "UK (Amazon)", Revenue: 75, Percentage: 75},
		{Name: "eBay", Revenue: 25, Percentage: 25},
	}

	d := charts.NewFormatter("EUR").Doughnut(channels)
	assert.Equal(t, []string{"UK (Amazon): €75.00", "eBay: €25.00"}, d.Labels)
	assert.Equal(t, []float64{75, 25}, d.Values)
	assert.Equal(t, []float64{75, 25}, d.Percentages)

	empty := charts.NewFormatter("EUR").Doughnut(nil)
	assert.Empty(t, empty.Labels)
	assert.NotNil(t, empty.Values)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "CHF 3.10", charts.NewFormatter("chf").Money(3.1))
	assert.Equal(t, "-£4.00", charts.NewFormatter("").Money(-4))
}

func TestParseMetric(t *testing.T) {
	assert.Equal(t, charts.MetricItems, charts.ParseMetric(" Items "))
	assert.Equal(t, charts.MetricRevenue, charts.ParseMetric("bogus"))
	assert.True(t, charts.MetricAvgOrderValue.IsMonetary())
	assert.False(t, charts.MetricOrders.IsMonetary())
}

func TestProject(t *testing.T) {
	s := metrics.Summary{
		DailySeries: series(),
		TopChannels: []metrics.TopChannel{{Name: "Amazon", Revenue: 10, Percentage: 100}},
	}
	d := charts.NewFormatter("GBP").Project(s, charts.MetricItems)
	assert.Equal(t, charts.MetricItems, d.Revenue.Series[0].Metric)
	assert.Len(t, d.Orders.Series, 2)
	assert.Equal(t, []string{"Amazon: £10.00"}, d.Channels.Labels)
}
