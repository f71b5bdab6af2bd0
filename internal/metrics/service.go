package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/karloscodes/cartridge"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"salesboard/internal/catalog"
	"salesboard/internal/metricscache"
	"salesboard/internal/orders"
	"salesboard/internal/timeframe"
)

// Strategy selects the aggregation path.
type Strategy string

const (
	StrategyAuto     Strategy = "auto"
	StrategyMemory   Strategy = "memory"
	StrategyPushdown Strategy = "pushdown"
)

// ParseStrategy validates a strategy name. Empty means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyMemory:
		return StrategyMemory, nil
	case StrategyPushdown:
		return StrategyPushdown, nil
	default:
		return "", fmt.Errorf("invalid strategy: %q", s)
	}
}

// CacheNamespace prefixes every metrics cache key.
const CacheNamespace = "metrics"

// DefaultPushdownThresholdDays is the smallest window that aggregates in the store.
const DefaultPushdownThresholdDays = 365

// ErrInvalidRequest marks request parameters that cannot be parsed.
var ErrInvalidRequest = errors.New("invalid metrics request")

// Request describes one metrics computation.
type Request struct {
	Period   string
	Start    string
	End      string
	Channel  string
	Status   string
	Strategy string
}

// ServiceConfig tunes a Service.
type ServiceConfig struct {
	PushdownThresholdDays int
	TopLimit              int
	RecentLimit           int
	Workers               int
	CacheTTL              time.Duration
	TimeProvider          timeframe.TimeProvider
}

// Service resolves requests into windows, picks the aggregation path and
// serves results through the fingerprint cache.
type Service struct {
	dbManager cartridge.DBManager
	cache     *metricscache.Cache
	logger    *slog.Logger
	cfg       ServiceConfig
	parser    *timeframe.Parser
}

// NewService creates a Service. A nil cache computes every request.
func NewService(dbManager cartridge.DBManager, cache *metricscache.Cache, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PushdownThresholdDays < 1 {
		cfg.PushdownThresholdDays = DefaultPushdownThresholdDays
	}
	if cfg.TopLimit <= 0 {
		cfg.TopLimit = DefaultTopLimit
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	if cfg.TimeProvider == nil {
		cfg.TimeProvider = &timeframe.DefaultTimeProvider{}
	}
	return &Service{
		dbManager: dbManager,
		cache:     cache,
		logger:    logger,
		cfg:       cfg,
		parser:    timeframe.NewParser(cfg.TimeProvider),
	}
}

// Plan is a request resolved against the clock and configuration.
type Plan struct {
	Window   timeframe.Window
	Filter   orders.Filter
	Strategy Strategy
}

// Resolve parses req. Errors wrap ErrInvalidRequest and, for bad periods,
// the timeframe sentinel errors.
func (s *Service) Resolve(req Request) (Plan, error) {
	window, err := s.parser.Parse(req.Period, req.Start, req.End)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	status, err := orders.ParseStatus(req.Status)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	strategy, err := ParseStrategy(req.Strategy)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if strategy == StrategyAuto {
		strategy = StrategyMemory
		if window.Days() >= s.cfg.PushdownThresholdDays {
			strategy = StrategyPushdown
		}
	}

	return Plan{
		Window:   window,
		Filter:   orders.Filter{Channel: strings.TrimSpace(req.Channel), Status: status},
		Strategy: strategy,
	}, nil
}

// Compute returns the summary for req, from cache when the orders of the
// window and of the previous period are unchanged.
func (s *Service) Compute(ctx context.Context, req Request) (Summary, error) {
	plan, err := s.Resolve(req)
	if err != nil {
		return Summary{}, err
	}
	return s.ComputePlan(ctx, plan)
}

// ComputePlan is Compute for an already resolved plan.
func (s *Service) ComputePlan(ctx context.Context, plan Plan) (Summary, error) {
	db := s.dbManager.GetConnection()
	if db == nil {
		return Summary{}, fmt.Errorf("%w: no database connection", ErrStoreUnavailable)
	}

	// Growth depends on the previous period, so it is part of the fingerprinted span.
	span := timeframe.Window{Period: plan.Window.Period, Start: plan.Window.Previous().Start, End: plan.Window.End}
	fingerprint, err := metricscache.QueryFingerprint(ctx, db, span, plan.Filter)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	key := strings.Join([]string{
		plan.Window.Key(),
		plan.Filter.Key(),
		string(plan.Strategy),
		strconv.Itoa(s.cfg.TopLimit),
		strconv.Itoa(s.cfg.RecentLimit),
	}, "|")

	return metricscache.Cached(ctx, s.cache, CacheNamespace, key, fingerprint, s.cfg.CacheTTL, func(ctx context.Context) (Summary, error) {
		start := time.Now()
		summary, err := s.compute(ctx, db, plan)
		if err != nil {
			return Summary{}, err
		}
		s.logger.Debug("Metrics computed",
			slog.String("window", plan.Window.Key()),
			slog.String("strategy", string(plan.Strategy)),
			slog.Int64("orders", summary.Orders),
			slog.Duration("elapsed", time.Since(start)))
		return summary, nil
	})
}

func (s *Service) options(db *gorm.DB) Options {
	return Options{
		TopLimit:    s.cfg.TopLimit,
		RecentLimit: s.cfg.RecentLimit,
		Catalog:     catalog.NewRepository(db),
		Workers:     s.cfg.Workers,
		Now:         s.cfg.TimeProvider.Now,
	}
}

func (s *Service) compute(ctx context.Context, db *gorm.DB, plan Plan) (Summary, error) {
	opts := s.options(db)

	if plan.Strategy == StrategyPushdown {
		current := NewPushdown(db, plan.Window, plan.Filter, opts)
		summary, err := current.Summary(ctx)
		if err != nil {
			return Summary{}, err
		}
		revenue, err := current.TotalRevenue(ctx)
		if err != nil {
			return Summary{}, err
		}
		previous, err := NewPushdown(db, plan.Window.Previous(), plan.Filter, opts).TotalRevenue(ctx)
		if err != nil {
			return Summary{}, err
		}
		summary.GrowthRate = GrowthRate(revenue, previous)
		return summary, nil
	}

	current, err := orders.Load(ctx, db, plan.Window, plan.Filter)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	previous, err := orders.Load(ctx, db, plan.Window.Previous(), plan.Filter)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	agg := NewInMemory(current, plan.Window, opts)
	summary, err := agg.Summary(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	summary.GrowthRate = agg.GrowthRate(previous)
	return summary, nil
}

// warmConcurrency bounds how many periods Warm computes at once.
const warmConcurrency = 2

// Warm computes the default filter of each period so later requests hit the
// cache, then marks the namespace warm. Periods whose data is unchanged are
// cache hits and still count. The first failure cancels the remaining
// periods and is returned.
func (s *Service) Warm(ctx context.Context, periods ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, period := range periods {
		g.Go(func() error {
			summary, err := s.Compute(gctx, Request{Period: period})
			if err != nil {
				return fmt.Errorf("error warming period %s: %w", period, err)
			}
			s.logger.Debug("Warmed metrics period",
				slog.String("period", period),
				slog.String("strategy", string(summary.Strategy)),
				slog.Int64("orders", summary.Orders))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := s.cache.MarkWarm(ctx, CacheNamespace); err != nil {
		s.logger.Warn("Failed to mark metric cache warm", slog.Any("error", err))
	}
	return nil
}

// CacheStatus reports the metrics cache namespace.
func (s *Service) CacheStatus(ctx context.Context) metricscache.Status {
	return s.cache.Status(ctx, CacheNamespace)
}

// InvalidateCache drops every cached summary.
func (s *Service) InvalidateCache(ctx context.Context) (int, error) {
	return s.cache.InvalidateAll(ctx, CacheNamespace)
}
