package metrics_test

import (
	"fmt"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"salesboard/internal/catalog"
	"salesboard/internal/orders"
	"salesboard/internal/testsupport"
)

type fixtureItem struct {
	SKU       string `yaml:"sku"`
	Title     string `yaml:"title"`
	Category  string `yaml:"category"`
	Quantity  int    `yaml:"quantity"`
	UnitPrice string `yaml:"unit_price"`
	LineTotal string `yaml:"line_total"`
}

type fixtureOrder struct {
	ID        string        `yaml:"id"`
	DaysAgo   int           `yaml:"days_ago"`
	Hour      int           `yaml:"hour"`
	Charge    string        `yaml:"charge"`
	Paid      string        `yaml:"paid"`
	Channel   string        `yaml:"channel"`
	Subsource string        `yaml:"subsource"`
	Processed bool          `yaml:"processed"`
	Unpaid    bool          `yaml:"unpaid"`
	Items     []fixtureItem `yaml:"items"`
	Lines     []fixtureItem `yaml:"lines"`
	RawItems  string        `yaml:"raw_items"`
}

type fixtureProduct struct {
	SKU            string `yaml:"sku"`
	Title          string `yaml:"title"`
	Category       string `yaml:"category"`
	PurchasePrice  string `yaml:"purchase_price"`
	StockAvailable int    `yaml:"stock_available"`
	StockMinimum   int    `yaml:"stock_minimum"`
}

type fixture struct {
	Products []fixtureProduct `yaml:"products"`
	Orders   []fixtureOrder   `yaml:"orders"`
}

func decOrZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

func toItems(in []fixtureItem) []orders.Item {
	out := make([]orders.Item, len(in))
	for i, it := range in {
		out[i] = orders.Item{
			SKU:       it.SKU,
			Title:     it.Title,
			Category:  it.Category,
			Quantity:  it.Quantity,
			UnitPrice: decOrZero(it.UnitPrice),
			LineTotal: decOrZero(it.LineTotal),
		}
	}
	return out
}

// loadFixture writes the products and orders of a YAML fixture relative to now.
func loadFixture(t *testing.T, db *gorm.DB, path string, now time.Time) {
	t.Helper()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var fx fixture
	require.NoError(t, yaml.Unmarshal(raw, &fx))

	for _, p := range fx.Products {
		require.NoError(t, db.Create(&catalog.Product{
			SKU:            p.SKU,
			Title:          p.Title,
			CategoryName:   p.Category,
			PurchasePrice:  decOrZero(p.PurchasePrice),
			RetailPrice:    decimal.Zero,
			StockAvailable: p.StockAvailable,
			StockMinimum:   p.StockMinimum,
		}).Error)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	set := make([]orders.Order, 0, len(fx.Orders))
	for i, fo := range fx.Orders {
		received := today.AddDate(0, 0, -fo.DaysAgo).Add(time.Duration(fo.Hour) * time.Hour)
		o := orders.Order{
			ExternalID:  fo.ID,
			Number:      int64(i + 1),
			TotalCharge: decOrZero(fo.Charge),
			TotalPaid:   decOrZero(fo.Paid),
			Currency:    "GBP",
			IsProcessed: fo.Processed,
			IsOpen:      !fo.Processed,
			IsPaid:      !fo.Unpaid,
			ReceivedAt:  received,
			Channel:     fo.Channel,
			Subsource:   fo.Subsource,
			Items:       toItems(fo.Items),
			UpdatedAt:   received,
		}
		if len(fo.Lines) > 0 {
			o.LineItems = toItems(fo.Lines)
			o.LineItemsLoaded = true
		}
		set = append(set, o)
	}
	testsupport.InsertOrders(t, db, set...)

	for _, fo := range fx.Orders {
		if fo.RawItems != "" {
			require.NoError(t, db.Exec("UPDATE orders SET items = ? WHERE external_id = ?", fo.RawItems, fo.ID).Error)
		}
	}
}

var generatedChannels = [][2]string{
	{"Amazon", "UK"},
	{"Amazon", "DE"},
	{"eBay", ""},
	{"Etsy", ""},
	{"Shopify", "POS"},
}

var generatedPrices = []string{"4.99", "9.50", "12.00", "19.99", "24.75", "39.00", "74.25"}

// generateOrders builds a deterministic order history covering days before now.
func generateOrders(days int, now time.Time) []orders.Order {
	rng := rand.New(rand.NewPCG(7, 11))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var set []orders.Order
	seq := 0
	for d := 0; d < days; d++ {
		perDay := rng.IntN(4)
		for k := 0; k < perDay; k++ {
			seq++
			received := today.AddDate(0, 0, -d).Add(time.Duration(rng.IntN(86400)) * time.Second)
			ch := generatedChannels[rng.IntN(len(generatedChannels))]

			var items []orders.Item
			for n := rng.IntN(3) + 1; n > 0; n-- {
				sku := fmt.Sprintf("GEN-%02d", rng.IntN(12))
				it := orders.Item{
					SKU:       sku,
					Title:     "Product " + sku,
					Category:  "Generated",
					Quantity:  rng.IntN(4) + 1,
					UnitPrice: decimal.RequireFromString(generatedPrices[rng.IntN(len(generatedPrices))]),
				}
				if rng.IntN(4) == 0 {
					it.LineTotal = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Sub(decimal.RequireFromString("0.50"))
				}
				items = append(items, it)
			}

			processed := rng.IntN(2) == 0
			o := orders.Order{
				ExternalID:  fmt.Sprintf("GEN-%05d", seq),
				Number:      int64(1000 + seq),
				Currency:    "GBP",
				IsProcessed: processed,
				IsOpen:      !processed,
				IsPaid:      rng.IntN(5) != 0,
				ReceivedAt:  received,
				Channel:     ch[0],
				Subsource:   ch[1],
				UpdatedAt:   received,
			}

			switch rng.IntN(10) {
			case 0, 1, 2, 3:
				o.Items = items
			case 4, 5, 6, 7, 8:
				o.LineItems = items
				o.LineItemsLoaded = true
			default:
				o.Items = items
				o.LineItems = items
				o.LineItemsLoaded = true
			}

			switch rng.IntN(6) {
			case 0:
				o.TotalPaid = decimal.RequireFromString("15.00")
			case 1, 2:
			default:
				o.TotalCharge = orders.SumValue(items).Add(decimal.RequireFromString("3.95"))
			}

			set = append(set, o)
		}
	}
	return set
}
