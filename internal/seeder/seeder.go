// Package seeder fills a database with realistic demo orders and products.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"salesboard/internal/catalog"
	"salesboard/internal/orders"
)

// DefaultDays is how far back generated orders reach.
const DefaultDays = 400

// batchSize is the number of orders written per transaction.
const batchSize = 250

// Seeder handles the data seeding process
type Seeder struct {
	DBManager  cartridge.DBManager
	Logger     *slog.Logger
	OrderCount int
	Days       int

	rng *rand.Rand
	now func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, orderCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:  dbManager,
		Logger:     logger,
		OrderCount: orderCount,
		Days:       DefaultDays,
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 1)),
		now:        time.Now,
	}
}

// WithSeed makes generation deterministic and anchors it at now.
func (s *Seeder) WithSeed(seed uint64, now time.Time) *Seeder {
	s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	s.now = func() time.Time { return now }
	return s
}

type channel struct {
	name      string
	subsource string
	weight    int
}

var channels = []channel{
	{"Amazon", "UK", 35},
	{"Amazon", "DE", 10},
	{"eBay", "", 20},
	{"Etsy", "", 10},
	{"Shopify", "", 20},
	{"Direct", "", 5},
}

var products = []catalog.Product{
	{SKU: "MUG-001", Title: "Enamel Camping Mug", CategoryName: "Kitchen", StockAvailable: 120, StockMinimum: 20, PurchasePrice: decimal.RequireFromString("3.10"), RetailPrice: decimal.RequireFromString("9.99")},
	{SKU: "MUG-002", Title: "Stoneware Mug Set", CategoryName: "Kitchen", StockAvailable: 8, StockMinimum: 10, PurchasePrice: decimal.RequireFromString("11.00"), RetailPrice: decimal.RequireFromString("24.50")},
	{SKU: "TEA-010", Title: "Loose Leaf Tea Tin", CategoryName: "Pantry", StockAvailable: 300, StockMinimum: 50, PurchasePrice: decimal.RequireFromString("2.40"), RetailPrice: decimal.RequireFromString("6.75")},
	{SKU: "TEA-011", Title: "Tea Infuser", CategoryName: "Kitchen", StockAvailable: 0, StockMinimum: 15, PurchasePrice: decimal.RequireFromString("1.20"), RetailPrice: decimal.RequireFromString("4.99")},
	{SKU: "LMP-100", Title: "Brass Desk Lamp", CategoryName: "Lighting", StockAvailable: 14, StockMinimum: 5, PurchasePrice: decimal.RequireFromString("21.00"), RetailPrice: decimal.RequireFromString("59.00")},
	{SKU: "LMP-101", Title: "Linen Lamp Shade", CategoryName: "Lighting", StockAvailable: 40, StockMinimum: 10, PurchasePrice: decimal.RequireFromString("7.50"), RetailPrice: decimal.RequireFromString("19.00")},
	{SKU: "TXT-200", Title: "Wool Throw", CategoryName: "Textiles", StockAvailable: 3, StockMinimum: 6, PurchasePrice: decimal.RequireFromString("18.00"), RetailPrice: decimal.RequireFromString("48.00")},
	{SKU: "TXT-201", Title: "Cotton Cushion Cover", CategoryName: "Textiles", StockAvailable: 75, StockMinimum: 20, PurchasePrice: decimal.RequireFromString("3.80"), RetailPrice: decimal.RequireFromString("12.50")},
	{SKU: "CND-300", Title: "Soy Candle", CategoryName: "Home Fragrance", StockAvailable: 60, StockMinimum: 25, PurchasePrice: decimal.RequireFromString("2.90"), RetailPrice: decimal.RequireFromString("14.00")},
	{SKU: "CND-301", Title: "Reed Diffuser", CategoryName: "Home Fragrance", StockAvailable: 25, StockMinimum: 25, PurchasePrice: decimal.RequireFromString("4.10"), RetailPrice: decimal.RequireFromString("16.00")},
	{SKU: "PLT-400", Title: "Terracotta Planter", CategoryName: "Garden", StockAvailable: 33, StockMinimum: 10, PurchasePrice: decimal.RequireFromString("5.00"), RetailPrice: decimal.RequireFromString("15.00")},
	{SKU: "PLT-401", Title: "Hanging Planter", CategoryName: "Garden", StockAvailable: 90, StockMinimum: 10, PurchasePrice: decimal.RequireFromString("6.20"), RetailPrice: decimal.RequireFromString("18.00")},
}

// Products returns the demo catalog.
func Products() []catalog.Product {
	out := make([]catalog.Product, len(products))
	copy(out, products)
	return out
}

// Run executes the seeding process
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Starting database seeding...", slog.Int("orderCount", s.OrderCount), slog.Int("days", s.Days))

	if err := s.seedProducts(); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	created, err := s.seedOrders(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed orders: %w", err)
	}

	s.Logger.Info("Seeding completed successfully",
		slog.Int("orders", created),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// seedProducts creates the demo catalog, leaving existing SKUs untouched.
func (s *Seeder) seedProducts() error {
	db := s.DBManager.GetConnection()
	catalogProducts := Products()

	return sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoNothing: true,
		}).Create(&catalogProducts).Error
	})
}

func (s *Seeder) seedOrders(ctx context.Context) (int, error) {
	db := s.DBManager.GetConnection()
	now := s.now().UTC()
	days := s.Days
	if days < 1 {
		days = 1
	}

	created := 0
	batch := make([]orders.Order, 0, batchSize)
	for i := 0; i < s.OrderCount; i++ {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		batch = append(batch, s.generateOrder(now, days))
		if len(batch) == batchSize {
			if err := orders.Upsert(ctx, s.Logger, db, batch); err != nil {
				return created, err
			}
			created += len(batch)
			batch = batch[:0]
			s.Logger.Debug("Seeded order batch", slog.Int("created", created))
		}
	}

	if len(batch) > 0 {
		if err := orders.Upsert(ctx, s.Logger, db, batch); err != nil {
			return created, err
		}
		created += len(batch)
	}
	return created, nil
}

func (s *Seeder) pickChannel() channel {
	total := 0
	for _, c := range channels {
		total += c.weight
	}
	n := s.rng.IntN(total)
	for _, c := range channels {
		if n < c.weight {
			return c
		}
		n -= c.weight
	}
	return channels[0]
}

// generateOrder builds one order. Recent orders skew toward open, older ones
// toward processed. Lines are stored either embedded or normalized, and a
// share of orders carry no charge so every revenue fallback is exercised.
func (s *Seeder) generateOrder(now time.Time, days int) orders.Order {
	age := time.Duration(s.rng.Int64N(int64(days) * int64(24*time.Hour)))
	receivedAt := now.Add(-age).Truncate(time.Second)
	ch := s.pickChannel()

	lineCount := 1 + s.rng.IntN(3)
	lines := make([]orders.Item, 0, lineCount)
	for range lineCount {
		p := products[s.rng.IntN(len(products))]
		qty := 1 + s.rng.IntN(3)
		lines = append(lines, orders.Item{
			SKU:       p.SKU,
			Title:     p.Title,
			Quantity:  qty,
			UnitPrice: p.RetailPrice,
			Category:  p.CategoryName,
		})
	}
	lineSum := orders.SumValue(lines)
	postage := decimal.NewFromFloat(3.95)

	processed := age > 72*time.Hour || s.rng.IntN(4) == 0
	o := orders.Order{
		ExternalID:     uuid.NewString(),
		Number:         s.rng.Int64N(900000) + 100000,
		TotalCharge:    lineSum.Add(postage),
		TotalPaid:      lineSum.Add(postage),
		PostageCost:    postage,
		Tax:            lineSum.Mul(decimal.NewFromFloat(0.2)).Round(2),
		Currency:       "GBP",
		ConversionRate: decimal.NewFromInt(1),
		IsProcessed:    processed,
		IsOpen:         !processed,
		IsPaid:         processed || s.rng.IntN(10) > 0,
		IsCancelled:    s.rng.IntN(100) == 0,
		ReceivedAt:     receivedAt,
		Channel:        ch.name,
		Subsource:      ch.subsource,
		UpdatedAt:      receivedAt,
	}
	if processed {
		processedAt := receivedAt.Add(time.Duration(1+s.rng.IntN(48)) * time.Hour)
		o.ProcessedAt = &processedAt
		o.UpdatedAt = processedAt
	}

	switch s.rng.IntN(10) {
	case 0:
		// Charge missing upstream; revenue comes from the lines.
		o.TotalCharge = decimal.Zero
	case 1:
		// Neither charge nor lines carry a value; only the paid amount does.
		o.TotalCharge = decimal.Zero
		for i := range lines {
			lines[i].UnitPrice = decimal.Zero
		}
	}

	if s.rng.IntN(2) == 0 {
		o.Items = lines
	} else {
		o.LineItems = lines
		o.LineItemsLoaded = true
	}
	return o
}
