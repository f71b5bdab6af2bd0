package orders

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// FlexNumber decodes a JSON number that may also arrive as a quoted string,
// a boolean or null. Anything unparseable decodes to zero.
type FlexNumber struct {
	decimal.Decimal
}

func (n *FlexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		n.Decimal = decimal.Zero
		return nil
	case bytes.Equal(data, []byte("true")):
		n.Decimal = decimal.NewFromInt(1)
		return nil
	}

	s := strings.Trim(string(data), `"`)
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		n.Decimal = decimal.Zero
		return nil
	}
	n.Decimal = d
	return nil
}

// FlexTime decodes RFC 3339 timestamps and the remote API's
// "2006-01-02T15:04:05" and "2006-01-02 15:04:05" forms. Unparseable values
// decode to the zero time.
type FlexTime struct {
	time.Time
}

var flexTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	t.Time = time.Time{}
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range flexTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return nil
}

// APIItem is one embedded line as delivered by the order-management API.
type APIItem struct {
	SKU       string     `json:"sku"`
	Title     string     `json:"title"`
	Quantity  FlexNumber `json:"quantity"`
	UnitPrice FlexNumber `json:"unit_price"`
	LineTotal FlexNumber `json:"line_total"`
	Category  string     `json:"category"`
}

// APIOrder is the order payload delivered by the order-management API.
type APIOrder struct {
	OrderID        string     `json:"order_id"`
	Number         FlexNumber `json:"number"`
	TotalCharge    FlexNumber `json:"total_charge"`
	TotalPaid      FlexNumber `json:"total_paid"`
	TotalDiscount  FlexNumber `json:"total_discount"`
	PostageCost    FlexNumber `json:"postage_cost"`
	Tax            FlexNumber `json:"tax"`
	Currency       string     `json:"currency"`
	ConversionRate FlexNumber `json:"conversion_rate"`
	IsProcessed    bool       `json:"is_processed"`
	IsPaid         bool       `json:"is_paid"`
	IsCancelled    bool       `json:"is_cancelled"`
	ReceivedAt     FlexTime   `json:"received_at"`
	ProcessedAt    FlexTime   `json:"processed_at"`
	DispatchedAt   FlexTime   `json:"dispatched_at"`
	Source         string     `json:"source"`
	ChannelName    string     `json:"channel_name"`
	Subsource      string     `json:"subsource"`
	Items          []APIItem  `json:"items"`
	UpdatedAt      FlexTime   `json:"updated_at"`
}

// DecodeAPIOrders parses a JSON array of API orders.
func DecodeAPIOrders(data []byte) ([]APIOrder, error) {
	var payload []APIOrder
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// FromAPI normalizes an API payload into an Order. Open and processed are
// mutually exclusive: an order is open exactly when it is not processed.
// Orders without an external id get a generated one; orders without a
// received timestamp are stamped with now.
func FromAPI(a APIOrder, now time.Time) Order {
	o := Order{
		ExternalID:     strings.TrimSpace(a.OrderID),
		Number:         a.Number.IntPart(),
		TotalCharge:    a.TotalCharge.Decimal,
		TotalPaid:      a.TotalPaid.Decimal,
		TotalDiscount:  a.TotalDiscount.Decimal,
		PostageCost:    a.PostageCost.Decimal,
		Tax:            a.Tax.Decimal,
		Currency:       strings.ToUpper(strings.TrimSpace(a.Currency)),
		ConversionRate: a.ConversionRate.Decimal,
		IsProcessed:    a.IsProcessed,
		IsOpen:         !a.IsProcessed,
		IsPaid:         a.IsPaid,
		IsCancelled:    a.IsCancelled,
		ReceivedAt:     a.ReceivedAt.Time,
		Channel:        normalizeChannel(a.ChannelName),
		Subsource:      strings.TrimSpace(a.Subsource),
		UpdatedAt:      a.UpdatedAt.Time,
	}

	if o.ExternalID == "" {
		o.ExternalID = uuid.NewString()
	}
	if o.Channel == "" {
		o.Channel = normalizeChannel(a.Source)
	}
	if o.Channel == "" {
		o.Channel = "Direct"
	}
	if o.ConversionRate.IsZero() {
		o.ConversionRate = decimal.NewFromInt(1)
	}
	if o.ReceivedAt.IsZero() {
		o.ReceivedAt = now.UTC()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = now.UTC()
	}
	if !a.ProcessedAt.IsZero() {
		ts := a.ProcessedAt.Time
		o.ProcessedAt = &ts
	}
	if !a.DispatchedAt.IsZero() {
		ts := a.DispatchedAt.Time
		o.DispatchedAt = &ts
	}

	if len(a.Items) > 0 {
		o.Items = make([]Item, 0, len(a.Items))
		for _, it := range a.Items {
			qty := int(it.Quantity.IntPart())
			if qty < 0 {
				qty = 0
			}
			o.Items = append(o.Items, Item{
				SKU:       strings.TrimSpace(it.SKU),
				Title:     strings.TrimSpace(it.Title),
				Quantity:  qty,
				UnitPrice: it.UnitPrice.Decimal,
				LineTotal: it.LineTotal.Decimal,
				Category:  strings.TrimSpace(it.Category),
			})
		}
	}

	return o
}

// normalizeChannel title-cases channel names that arrive in a single case
// ("AMAZON", "ebay") and leaves mixed-case names ("eBay") alone.
func normalizeChannel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	hasUpper, hasLower := false, false
	for _, r := range name {
		if unicode.IsUpper(r) {
			hasUpper = true
		}
		if unicode.IsLower(r) {
			hasLower = true
		}
	}
	if hasUpper && hasLower {
		return name
	}
	return cases.Title(language.English).String(strings.ToLower(name))
}
