package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"
)

// StockAlert is a product at or below its minimum stock level.
type StockAlert struct {
	SKU            string `json:"sku"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	StockAvailable int    `json:"stock_available"`
	StockMinimum   int    `json:"stock_minimum"`
	Shortfall      int    `json:"shortfall"`
	OutOfStock     bool   `json:"out_of_stock"`
}

// LowStock lists products whose available stock is at or below their minimum,
// largest shortfall first.
func LowStock(ctx context.Context, db *gorm.DB) ([]StockAlert, error) {
	var products []Product
	err := db.WithContext(ctx).
		Where("stock_available <= stock_minimum").
		Order("(stock_minimum - stock_available) DESC, sku ASC").
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("error fetching low stock products: %w", err)
	}

	alerts := make([]StockAlert, len(products))
	for i, p := range products {
		alerts[i] = StockAlert{
			SKU:            p.SKU,
			Title:          TitleOr(p, true, ""),
			Category:       CategoryOr(p, true, ""),
			StockAvailable: p.StockAvailable,
			StockMinimum:   p.StockMinimum,
			Shortfall:      p.StockMinimum - p.StockAvailable,
			OutOfStock:     p.StockAvailable <= 0,
		}
	}
	return alerts, nil
}

const stockAlertsKey = "low_stock"

// StockAlerts serves LowStock through a short-lived cache.
type StockAlerts struct {
	cache *cache.Cache[string, []StockAlert]
}

// NewStockAlerts creates a cached stock alert source reading from db.
func NewStockAlerts(db *gorm.DB, logger *slog.Logger, ttl time.Duration) *StockAlerts {
	fetchFunc := func(key string) ([]StockAlert, error) {
		return LowStock(context.Background(), db)
	}
	return &StockAlerts{
		cache: cache.NewCache[string, []StockAlert](logger, ttl, fetchFunc),
	}
}

// Get returns the cached alerts, fetching them on a miss.
func (s *StockAlerts) Get() ([]StockAlert, error) {
	return s.cache.Get(stockAlertsKey)
}

// Invalidate drops the cached alerts.
func (s *StockAlerts) Invalidate() {
	s.cache.Clear()
}
