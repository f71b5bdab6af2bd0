package orders_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesboard/internal/orders"
	"salesboard/internal/testsupport"
	"salesboard/internal/timeframe"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func lastWeek(t *testing.T) timeframe.Window {
	t.Helper()
	w, err := timeframe.NewWindow("7", now.AddDate(0, 0, -6), now)
	require.NoError(t, err)
	return w
}

func TestUpsertAndLoad(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()

	a := testsupport.Order("A", now.Add(-2*time.Hour), "10")
	a.Items = []orders.Item{testsupport.Item("E", 1, "10")}
	b := testsupport.Order("B", now.Add(-time.Hour), "0")
	b.LineItems = []orders.Item{testsupport.Item("L1", 2, "3"), testsupport.Item("L2", 1, "4")}
	b.LineItemsLoaded = true
	old := testsupport.Order("OLD", now.AddDate(0, 0, -7), "99")

	testsupport.InsertOrders(t, db, a, b, old)

	loaded, err := orders.Load(ctx, db, lastWeek(t), orders.Filter{})
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "A", loaded[0].ExternalID)
	assert.True(t, loaded[0].LineItemsLoaded)
	assert.Empty(t, loaded[0].LineItems)
	require.Len(t, loaded[0].Items, 1)
	assert.Equal(t, "10", loaded[0].Items[0].UnitPrice.String())

	assert.Equal(t, "B", loaded[1].ExternalID)
	assert.Empty(t, loaded[1].Items)
	require.Len(t, loaded[1].LineItems, 2)
	assert.Equal(t, "L1", loaded[1].LineItems[0].SKU)
	assert.Equal(t, time.UTC, loaded[1].ReceivedAt.Location())
}

func TestUpsertReplacesLines(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()

	o := testsupport.Order("A", now, "10")
	o.LineItems = []orders.Item{testsupport.Item("X", 1, "1"), testsupport.Item("Y", 1, "1")}
	o.LineItemsLoaded = true
	testsupport.InsertOrders(t, db, o)

	o.TotalCharge = testsupport.Dec("20")
	o.LineItems = []orders.Item{testsupport.Item("Z", 5, "4")}
	testsupport.InsertOrders(t, db, o)

	unloaded := o
	unloaded.LineItemsLoaded = false
	unloaded.LineItems = nil
	testsupport.InsertOrders(t, db, unloaded)

	loaded, err := orders.Load(ctx, db, lastWeek(t), orders.Filter{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "20", loaded[0].TotalCharge.String())
	require.Len(t, loaded[0].LineItems, 1)
	assert.Equal(t, "Z", loaded[0].LineItems[0].SKU)

	var rows int64
	require.NoError(t, db.Model(&orders.OrderRecord{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestLoadAppliesFilter(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	paid := testsupport.Order("paid", now, "1")
	unpaid := testsupport.Order("unpaid", now, "1")
	unpaid.IsPaid = false
	etsy := testsupport.Order("etsy", now, "1")
	etsy.Channel = "Etsy"
	testsupport.InsertOrders(t, db, paid, unpaid, etsy)

	loaded, err := orders.Load(context.Background(), db, lastWeek(t), orders.Filter{Channel: "Amazon", Status: orders.StatusOpen})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "paid", loaded[0].ExternalID)
}

func TestMalformedEmbeddedItemsLoadEmpty(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.InsertOrders(t, db, testsupport.Order("bad", now, "1"))
	require.NoError(t, db.Exec("UPDATE orders SET items = ? WHERE external_id = ?", "{oops", "bad").Error)

	loaded, err := orders.Load(context.Background(), db, lastWeek(t), orders.Filter{})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Empty(t, loaded[0].Items)
}

func TestStreamVersions(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	testsupport.InsertOrders(t, db,
		testsupport.Order("b", now, "1"),
		testsupport.Order("a", now.Add(-time.Hour), "1"),
	)

	var ids []string
	err := orders.StreamVersions(context.Background(), db, lastWeek(t), orders.Filter{}, func(id string, updatedAt time.Time) error {
		ids = append(ids, id)
		assert.False(t, updatedAt.IsZero())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}
