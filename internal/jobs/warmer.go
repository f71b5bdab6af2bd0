package jobs

import (
	"context"
	"log/slog"
	"time"
)

// DefaultWarmPeriods are the dashboard periods kept warm in the cache.
var DefaultWarmPeriods = []string{"7", "30", "90"}

// Warmer is the subset of metrics.Service the warmer needs.
type Warmer interface {
	Warm(ctx context.Context, periods ...string) error
}

// CacheWarmerJob precomputes the default summaries so dashboard requests
// are served from the fingerprint cache.
type CacheWarmerJob struct {
	service Warmer
	logger  *slog.Logger
	periods []string
}

func NewCacheWarmerJob(service Warmer, logger *slog.Logger, periods ...string) *CacheWarmerJob {
	if len(periods) == 0 {
		periods = DefaultWarmPeriods
	}
	return &CacheWarmerJob{
		service: service,
		logger:  logger,
		periods: periods,
	}
}

// Run warms every configured period and refreshes the warm marker, even
// when every period was already cached.
func (j *CacheWarmerJob) Run(ctx context.Context) error {
	start := time.Now()

	if err := j.service.Warm(ctx, j.periods...); err != nil {
		return err
	}

	j.logger.Info("Metrics cache warmed",
		slog.Int("periods", len(j.periods)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
