// Package catalog provides read access to the product catalog used to enrich
// aggregated SKU rows and to raise stock alerts.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Placeholders used when a SKU has no catalog entry.
const (
	UnknownProduct  = "Unknown Product"
	UnknownCategory = "Unknown Category"
)

// Product is a catalog entry.
type Product struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	SKU            string `gorm:"uniqueIndex;not null"`
	Title          string `gorm:"not null"`
	CategoryName   string
	StockAvailable int             `gorm:"not null;default:0"`
	StockMinimum   int             `gorm:"not null;default:0"`
	PurchasePrice  decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	RetailPrice    decimal.Decimal `gorm:"type:decimal(14,4);not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Lookup resolves catalog entries for a batch of SKUs in one round trip.
type Lookup interface {
	BySKUs(ctx context.Context, skus []string) (map[string]Product, error)
}

// Repository is the database-backed Lookup.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// lookupBatchSize keeps IN lists under SQLite's bound parameter limit.
const lookupBatchSize = 500

// BySKUs returns the products whose SKU is in skus, keyed by SKU. SKUs with
// no product are simply absent from the map.
func (r *Repository) BySKUs(ctx context.Context, skus []string) (map[string]Product, error) {
	out := make(map[string]Product, len(skus))
	if len(skus) == 0 {
		return out, nil
	}

	for start := 0; start < len(skus); start += lookupBatchSize {
		end := start + lookupBatchSize
		if end > len(skus) {
			end = len(skus)
		}

		var products []Product
		if err := r.db.WithContext(ctx).Where("sku IN ?", skus[start:end]).Find(&products).Error; err != nil {
			return nil, fmt.Errorf("error looking up products by sku: %w", err)
		}
		for _, p := range products {
			out[p.SKU] = p
		}
	}
	return out, nil
}

// StaticLookup is an in-memory Lookup, handy for tests and for callers that
// already hold the catalog.
type StaticLookup map[string]Product

func (s StaticLookup) BySKUs(_ context.Context, skus []string) (map[string]Product, error) {
	out := make(map[string]Product, len(skus))
	for _, sku := range skus {
		if p, ok := s[sku]; ok {
			out[sku] = p
		}
	}
	return out, nil
}

// TitleOr returns the catalog title, falling back to fallback and then to
// UnknownProduct.
func TitleOr(p Product, found bool, fallback string) string {
	if found && p.Title != "" {
		return p.Title
	}
	if fallback != "" {
		return fallback
	}
	return UnknownProduct
}

// CategoryOr returns the catalog category, falling back to fallback and then
// to UnknownCategory.
func CategoryOr(p Product, found bool, fallback string) string {
	if found && p.CategoryName != "" {
		return p.CategoryName
	}
	if fallback != "" {
		return fallback
	}
	return UnknownCategory
}
