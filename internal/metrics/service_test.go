package metrics_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salesboard/internal/metrics"
	"salesboard/internal/metricscache"
	"salesboard/internal/testsupport"
	"salesboard/internal/timeframe"
)

// tickingClock advances one second per call, so every computation gets a
// distinct ComputedAt while staying on the same day.
type tickingClock struct {
	mu sync.Mutex
	n  int
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fixedNow.Add(time.Duration(c.n) * time.Second)
}

type failingStore struct{}

var errBackend = errors.New("cache backend down")

func (failingStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, errBackend }
func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errBackend
}
func (failingStore) Delete(context.Context, ...string) error { return errBackend }

func newService(t *testing.T, store metricscache.Store) (*metrics.Service, *testsupport.TestDBManager) {
	t.Helper()
	dbManager, logger := testsupport.SetupTestDBManager(t)
	cache := metricscache.New(store, logger)
	svc := metrics.NewService(dbManager, cache, logger, metrics.ServiceConfig{
		PushdownThresholdDays: 365,
		CacheTTL:              time.Hour,
		TimeProvider:          &tickingClock{},
	})
	return svc, dbManager
}

func TestServiceResolveStrategy(t *testing.T) {
	svc, _ := newService(t, metricscache.NewMemoryStore())

	tests := []struct {
		req      metrics.Request
		expected metrics.Strategy
	}{
		{metrics.Request{Period: "30"}, metrics.StrategyMemory},
		{metrics.Request{Period: "364"}, metrics.StrategyMemory},
		{metrics.Request{Period: "365"}, metrics.StrategyPushdown},
		{metrics.Request{Period: "730"}, metrics.StrategyPushdown},
		{metrics.Request{Period: "7", Strategy: "pushdown"}, metrics.StrategyPushdown},
		{metrics.Request{Period: "730", Strategy: "memory"}, metrics.StrategyMemory},
	}

	for _, tt := range tests {
		t.Run(tt.req.Period+"/"+tt.req.Strategy, func(t *testing.T) {
			plan, err := svc.Resolve(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, plan.Strategy)
		})
	}
}

func TestServiceRejectsInvalidRequests(t *testing.T) {
	svc, _ := newService(t, metricscache.NewMemoryStore())

	_, err := svc.Compute(context.Background(), metrics.Request{Period: "forever"})
	assert.ErrorIs(t, err, metrics.ErrInvalidRequest)
	assert.ErrorIs(t, err, timeframe.ErrInvalidPeriod)

	_, err = svc.Compute(context.Background(), metrics.Request{Period: "7", Status: "shipped"})
	assert.ErrorIs(t, err, metrics.ErrInvalidRequest)

	_, err = svc.Compute(context.Background(), metrics.Request{Period: "7", Strategy: "magic"})
	assert.ErrorIs(t, err, metrics.ErrInvalidRequest)
}

func TestServiceComputesGrowth(t *testing.T) {
	svc, dbManager := newService(t, metricscache.NewMemoryStore())
	db := dbManager.GetConnection()

	testsupport.InsertOrders(t, db,
		testsupport.Order("current", fixedNow, "150"),
		testsupport.Order("previous", fixedNow.AddDate(0, 0, -8), "100"),
	)

	for _, strategy := range []string{"memory", "pushdown"} {
		summary, err := svc.Compute(context.Background(), metrics.Request{Period: "7", Strategy: strategy})
		require.NoError(t, err)
		assert.Equal(t, 150.0, summary.Revenue, strategy)
		assert.Equal(t, 50.0, summary.GrowthRate, strategy)
		assert.Equal(t, metrics.Strategy(strategy), summary.Strategy)
		assert.Equal(t, "7", summary.Period)
		assert.Equal(t, "2024-06-24", summary.StartDate)
		assert.Equal(t, "2024-06-30", summary.EndDate)
	}
}

func TestServiceCachesUntilDataChanges(t *testing.T) {
	store := metricscache.NewMemoryStore()
	svc, dbManager := newService(t, store)
	db := dbManager.GetConnection()
	ctx := context.Background()

	order := testsupport.Order("A-1", fixedNow, "10")
	testsupport.InsertOrders(t, db, order)

	first, err := svc.Compute(ctx, metrics.Request{Period: "7"})
	require.NoError(t, err)
	second, err := svc.Compute(ctx, metrics.Request{Period: "7"})
	require.NoError(t, err)
	assert.True(t, first.ComputedAt.Equal(second.ComputedAt), "identical data should be served from cache")
	assert.True(t, svc.CacheStatus(ctx).Warm)

	order.TotalCharge = testsupport.Dec("25")
	testsupport.InsertOrders(t, db, order)

	third, err := svc.Compute(ctx, metrics.Request{Period: "7"})
	require.NoError(t, err)
	assert.False(t, first.ComputedAt.Equal(third.ComputedAt), "a changed order must miss the cache")
	assert.Equal(t, 25.0, third.Revenue)

	status := svc.CacheStatus(ctx)
	assert.Equal(t, 2, status.Entries)

	removed, err := svc.InvalidateCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.False(t, svc.CacheStatus(ctx).Warm)
}

func TestServiceDegradesWhenCacheFails(t *testing.T) {
	svc, dbManager := newService(t, failingStore{})
	testsupport.InsertOrders(t, dbManager.GetConnection(), testsupport.Order("A-1", fixedNow, "10"))

	summary, err := svc.Compute(context.Background(), metrics.Request{Period: "7"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, summary.Revenue)
	assert.False(t, svc.CacheStatus(context.Background()).Warm)
}

func TestServiceWarm(t *testing.T) {
	svc, _ := newService(t, metricscache.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, svc.Warm(ctx, "7", "30", "90"))
	status := svc.CacheStatus(ctx)
	assert.True(t, status.Warm)
	assert.Equal(t, 3, status.Entries)
}
