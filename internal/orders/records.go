package orders

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ItemList is the embedded line item column. It is stored as a JSON array.
type ItemList []Item

// Scan implements sql.Scanner. Malformed or missing JSON yields an empty list
// rather than an error so one bad row cannot fail a report.
func (l *ItemList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		*l = nil
		return nil
	}

	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		*l = nil
		return nil
	}
	*l = items
	return nil
}

// Value implements driver.Valuer.
func (l ItemList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([]Item(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// OrderRecord is the persisted order row.
type OrderRecord struct {
	ID             uint              `gorm:"primaryKey;autoIncrement"`
	ExternalID     string            `gorm:"uniqueIndex;not null"`
	Number         int64             `gorm:"not null;default:0"`
	TotalCharge    decimal.Decimal   `gorm:"type:decimal(14,4);not null;default:0"`
	TotalPaid      decimal.Decimal   `gorm:"type:decimal(14,4);not null;default:0"`
	TotalDiscount  decimal.Decimal   `gorm:"type:decimal(14,4);not null;default:0"`
	PostageCost    decimal.Decimal   `gorm:"type:decimal(14,4);not null;default:0"`
	Tax            decimal.Decimal   `gorm:"type:decimal(14,4);not null;default:0"`
	Currency       string            `gorm:"size:3"`
	ConversionRate decimal.Decimal   `gorm:"type:decimal(14,6);not null;default:1"`
	IsProcessed    bool              `gorm:"index:idx_orders_status;not null;default:false"`
	IsOpen         bool              `gorm:"index:idx_orders_status;not null;default:false"`
	IsPaid         bool              `gorm:"index:idx_orders_status;not null;default:false"`
	IsCancelled    bool              `gorm:"not null;default:false"`
	ReceivedAt     time.Time         `gorm:"index;type:datetime;not null"`
	ProcessedAt    *time.Time        `gorm:"type:datetime"`
	DispatchedAt   *time.Time        `gorm:"type:datetime"`
	Channel        string            `gorm:"index:idx_orders_channel;not null"`
	Subsource      string            `gorm:"index:idx_orders_channel"`
	Items          ItemList          `gorm:"type:text"`
	LineItems      []OrderItemRecord `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (OrderRecord) TableName() string {
	return "orders"
}

// OrderItemRecord is one row of the normalized item table.
type OrderItemRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	OrderID   uint   `gorm:"index;not null"`
	SKU       string `gorm:"index;not null"`
	Title     string
	Quantity  int             `gorm:"not null;default:0"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	LineTotal decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	Category  string
}

func (OrderItemRecord) TableName() string {
	return "order_items"
}

// FromRecord converts a database row into an Order. The normalized lines are
// marked as loaded only when loaded is true, i.e. the caller preloaded them.
func FromRecord(r OrderRecord, loaded bool) Order {
	o := Order{
		ID:             r.ID,
		ExternalID:     r.ExternalID,
		Number:         r.Number,
		TotalCharge:    r.TotalCharge,
		TotalPaid:      r.TotalPaid,
		TotalDiscount:  r.TotalDiscount,
		PostageCost:    r.PostageCost,
		Tax:            r.Tax,
		Currency:       r.Currency,
		ConversionRate: r.ConversionRate,
		IsProcessed:    r.IsProcessed,
		IsOpen:         r.IsOpen,
		IsPaid:         r.IsPaid,
		IsCancelled:    r.IsCancelled,
		ReceivedAt:     r.ReceivedAt.UTC(),
		ProcessedAt:    r.ProcessedAt,
		DispatchedAt:   r.DispatchedAt,
		Channel:        r.Channel,
		Subsource:      r.Subsource,
		Items:          []Item(r.Items),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}

	if loaded {
		o.LineItemsLoaded = true
		o.LineItems = make([]Item, 0, len(r.LineItems))
		for _, li := range r.LineItems {
			o.LineItems = append(o.LineItems, Item{
				SKU:       li.SKU,
				Title:     li.Title,
				Quantity:  li.Quantity,
				UnitPrice: li.UnitPrice,
				LineTotal: li.LineTotal,
				Category:  li.Category,
			})
		}
	}

	return o
}

// ToRecord converts an Order into a database row, including its normalized
// lines when they are loaded.
func ToRecord(o Order) OrderRecord {
	r := OrderRecord{
		ID:             o.ID,
		ExternalID:     o.ExternalID,
		Number:         o.Number,
		TotalCharge:    o.TotalCharge,
		TotalPaid:      o.TotalPaid,
		TotalDiscount:  o.TotalDiscount,
		PostageCost:    o.PostageCost,
		Tax:            o.Tax,
		Currency:       o.Currency,
		ConversionRate: o.ConversionRate,
		IsProcessed:    o.IsProcessed,
		IsOpen:         o.IsOpen,
		IsPaid:         o.IsPaid,
		IsCancelled:    o.IsCancelled,
		ReceivedAt:     o.ReceivedAt.UTC(),
		ProcessedAt:    o.ProcessedAt,
		DispatchedAt:   o.DispatchedAt,
		Channel:        o.Channel,
		Subsource:      o.Subsource,
		Items:          ItemList(o.Items),
		UpdatedAt:      o.UpdatedAt,
	}
	if r.ConversionRate.IsZero() {
		r.ConversionRate = decimal.NewFromInt(1)
	}

	if o.LineItemsLoaded {
		r.LineItems = make([]OrderItemRecord, 0, len(o.LineItems))
		for _, li := range o.LineItems {
			r.LineItems = append(r.LineItems, OrderItemRecord{
				OrderID:   o.ID,
				SKU:       li.SKU,
				Title:     li.Title,
				Quantity:  li.Quantity,
				UnitPrice: li.UnitPrice,
				LineTotal: li.LineTotal,
				Category:  li.Category,
			})
		}
	}

	return r
}
