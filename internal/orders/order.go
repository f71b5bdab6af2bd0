// Package orders holds the order model consumed by the metrics core and the
// adapters that normalize database rows and remote API payloads into it.
package orders

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Item is one order line. The same shape is used for embedded (JSON) lines
// and for rows of the normalized order_items table.
type Item struct {
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Category  string          `json:"category,omitempty"`
}

// Value returns the line's monetary value: LineTotal when positive, else
// UnitPrice * Quantity.
func (i Item) Value() decimal.Decimal {
	if i.LineTotal.IsPositive() {
		return i.LineTotal
	}
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the single concrete order shape seen by the aggregators.
type Order struct {
	ID         uint
	ExternalID string
	Number     int64

	TotalCharge    decimal.Decimal
	TotalPaid      decimal.Decimal
	TotalDiscount  decimal.Decimal
	PostageCost    decimal.Decimal
	Tax            decimal.Decimal
	Currency       string
	ConversionRate decimal.Decimal

	IsProcessed bool
	IsOpen      bool
	IsPaid      bool
	IsCancelled bool

	ReceivedAt   time.Time
	ProcessedAt  *time.Time
	DispatchedAt *time.Time

	Channel   string
	Subsource string

	// Items are the denormalized lines that arrived with the order.
	Items []Item
	// LineItems are rows from the normalized item table. They are only
	// meaningful when LineItemsLoaded is set.
	LineItems       []Item
	LineItemsLoaded bool

	UpdatedAt time.Time
}

// Key identifies the order within one aggregation run.
func (o Order) Key() string {
	if o.ExternalID != "" {
		return o.ExternalID
	}
	if o.ID != 0 {
		return "#" + strconv.FormatUint(uint64(o.ID), 10)
	}
	return "n" + strconv.FormatInt(o.Number, 10)
}

// ChannelDisplayName renders "{subsource} ({channel})", or the channel alone
// when there is no subsource.
func ChannelDisplayName(channel, subsource string) string {
	if subsource == "" {
		return channel
	}
	return subsource + " (" + channel + ")"
}

// ChannelDisplayName is the order's channel label.
func (o Order) ChannelDisplayName() string {
	return ChannelDisplayName(o.Channel, o.Subsource)
}

// EffectiveItems returns the lines used for unit and product aggregation:
// the embedded lines when present, otherwise the loaded normalized lines.
// The two representations describe the same lines and are never combined.
func (o Order) EffectiveItems() []Item {
	if len(o.Items) > 0 {
		return o.Items
	}
	if o.LineItemsLoaded {
		return o.LineItems
	}
	return nil
}

// Status is a label for the order's disposition.
func (o Order) Status() string {
	switch {
	case o.IsCancelled:
		return "cancelled"
	case o.IsProcessed:
		return "processed"
	case o.IsOpen:
		return "open"
	default:
		return "unknown"
	}
}

// SumQuantity adds up the quantities of items.
func SumQuantity(items []Item) int64 {
	var total int64
	for _, it := range items {
		total += int64(it.Quantity)
	}
	return total
}

// SumValue adds up Item.Value over items.
func SumValue(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Value())
	}
	return total
}
