package metrics_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"salesboard/internal/metrics"
	"salesboard/internal/orders"
	"salesboard/internal/testsupport"
)

var dec = testsupport.Dec

func TestResolveStages(t *testing.T) {
	received := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		order    orders.Order
		expected string
		source   metrics.RevenueSource
	}{
		{
			name:     "positive charge wins",
			order:    orders.Order{ExternalID: "a", TotalCharge: dec("99.90"), TotalPaid: dec("200"), Items: []orders.Item{testsupport.Item("X", 1, "10")}},
			expected: "99.90",
			source:   metrics.SourceCharge,
		},
		{
			name: "embedded lines before paid",
			order: orders.Order{ExternalID: "b", TotalPaid: dec("200.00"), Items: []orders.Item{
				testsupport.Item("X", 2, "50"),
				{SKU: "Y", Quantity: 1, UnitPrice: dec("1"), LineTotal: dec("50.00")},
			}},
			expected: "150",
			source:   metrics.SourceEmbeddedItems,
		},
		{
			name:     "normalized lines when loaded",
			order:    orders.Order{ExternalID: "c", TotalPaid: dec("5"), LineItemsLoaded: true, LineItems: []orders.Item{testsupport.Item("X", 3, "7.5")}},
			expected: "22.5",
			source:   metrics.SourceLineItems,
		},
		{
			name:     "normalized lines ignored when not loaded",
			order:    orders.Order{ExternalID: "d", TotalPaid: dec("5"), LineItems: []orders.Item{testsupport.Item("X", 3, "7.5")}},
			expected: "5",
			source:   metrics.SourcePaid,
		},
		{
			name:     "negative charge falls through",
			order:    orders.Order{ExternalID: "e", TotalCharge: dec("-20"), Items: []orders.Item{testsupport.Item("X", 1, "12")}},
			expected: "12",
			source:   metrics.SourceEmbeddedItems,
		},
		{
			name:     "nothing positive",
			order:    orders.Order{ExternalID: "f", TotalCharge: dec("0"), TotalPaid: dec("-3")},
			expected: "0",
			source:   metrics.SourceNone,
		},
		{
			name:     "missing fields default to zero",
			order:    orders.Order{ExternalID: "g", ReceivedAt: received},
			expected: "0",
			source:   metrics.SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := metrics.NewRevenueResolver()
			v, source := r.ResolveStage(tt.order)
			assert.True(t, dec(tt.expected).Equal(v), "expected %s, got %s", tt.expected, v)
			assert.Equal(t, tt.source, source)
		})
	}
}

func TestResolveFallbackPrefersItemsOverPaid(t *testing.T) {
	o := orders.Order{
		ExternalID: "p2",
		TotalPaid:  dec("200.00"),
		Items: []orders.Item{
			testsupport.Item("A", 1, "100.00"),
			testsupport.Item("B", 2, "25.00"),
		},
	}

	got := metrics.NewRevenueResolver().Resolve(o)
	assert.Equal(t, "150", got.String())
}

func TestResolveIsIdempotent(t *testing.T) {
	r := metrics.NewRevenueResolver()
	o := orders.Order{ExternalID: "x", Items: []orders.Item{testsupport.Item("A", 3, "3.33")}}

	first := r.Resolve(o)
	second := r.Resolve(o)

	assert.True(t, first.Equal(second))
	assert.Equal(t, 1, r.Len())
}

func TestResolveDoesNotSumBothRepresentations(t *testing.T) {
	items := []orders.Item{testsupport.Item("A", 2, "10"), testsupport.Item("B", 1, "5")}
	o := orders.Order{ExternalID: "both", Items: items, LineItems: items, LineItemsLoaded: true}

	got := metrics.NewRevenueResolver().Resolve(o)
	assert.True(t, decimal.NewFromInt(25).Equal(got))
}

func TestRevenueSourceString(t *testing.T) {
	assert.Equal(t, "charge", metrics.SourceCharge.String())
	assert.Equal(t, "embedded_items", metrics.SourceEmbeddedItems.String())
	assert.Equal(t, "line_items", metrics.SourceLineItems.String())
	assert.Equal(t, "paid", metrics.SourcePaid.String())
	assert.Equal(t, "none", metrics.SourceNone.String())
}
