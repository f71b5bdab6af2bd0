package orders_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesboard/internal/orders"
)

const apiPayload = `[
  {
    "order_id": "LW-1001",
    "number": "1001",
    "total_charge": "129.99",
    "total_paid": 129.99,
    "currency": "gbp",
    "is_processed": true,
    "is_paid": true,
    "received_at": "2024-06-01T10:15:00",
    "processed_at": "2024-06-02 08:00:00",
    "source": "AMAZON",
    "subsource": " UK ",
    "items": [
      {"sku": "A-1", "title": "Widget", "quantity": "2", "unit_price": "1,000.50"},
      {"sku": "A-2", "quantity": -3, "unit_price": null, "line_total": "bogus"}
    ],
    "updated_at": "2024-06-02T08:00:00Z"
  },
  {
    "total_charge": null,
    "channel_name": "eBay"
  }
]`

func TestDecodeAndNormalizeAPIOrders(t *testing.T) {
	payload, err := orders.DecodeAPIOrders([]byte(apiPayload))
	require.NoError(t, err)
	require.Len(t, payload, 2)

	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	first := orders.FromAPI(payload[0], now)
	assert.Equal(t, "LW-1001", first.ExternalID)
	assert.Equal(t, int64(1001), first.Number)
	assert.Equal(t, "129.99", first.TotalCharge.String())
	assert.Equal(t, "GBP", first.Currency)
	assert.Equal(t, "1", first.ConversionRate.String())
	assert.True(t, first.IsProcessed)
	assert.False(t, first.IsOpen)
	assert.Equal(t, time.Date(2024, 6, 1, 10, 15, 0, 0, time.UTC), first.ReceivedAt)
	require.NotNil(t, first.ProcessedAt)
	assert.Nil(t, first.DispatchedAt)
	assert.Equal(t, "Amazon", first.Channel)
	assert.Equal(t, "UK", first.Subsource)
	assert.Equal(t, "UK (Amazon)", first.ChannelDisplayName())

	require.Len(t, first.Items, 2)
	assert.Equal(t, 2, first.Items[0].Quantity)
	assert.Equal(t, "1000.5", first.Items[0].UnitPrice.String())
	assert.Equal(t, 0, first.Items[1].Quantity)
	assert.True(t, first.Items[1].LineTotal.IsZero())

	second := orders.FromAPI(payload[1], now)
	assert.NotEmpty(t, second.ExternalID)
	assert.True(t, second.TotalCharge.IsZero())
	assert.Equal(t, "eBay", second.Channel)
	assert.True(t, second.IsOpen)
	assert.Equal(t, now, second.ReceivedAt)
	assert.Empty(t, second.Items)
}

func TestFromAPIDefaultsChannel(t *testing.T) {
	o := orders.FromAPI(orders.APIOrder{OrderID: "x"}, time.Now())
	assert.Equal(t, "Direct", o.Channel)
}

func TestDecodeAPIOrdersRejectsNonArray(t *testing.T) {
	_, err := orders.DecodeAPIOrders([]byte(`{"order_id": "x"}`))
	assert.Error(t, err)
}
