package jobs

import (
	"context"
	"log/slog"
)

// ExpiredEntryPurger removes cache entries past their expiry.
type ExpiredEntryPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// CacheCleanupJob deletes expired rows from the persistent metrics cache.
// Without a purger (memory backend) it does nothing.
type CacheCleanupJob struct {
	purger ExpiredEntryPurger
	logger *slog.Logger
}

func NewCacheCleanupJob(purger ExpiredEntryPurger, logger *slog.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{
		purger: purger,
		logger: logger,
	}
}

func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if j.purger == nil {
		return nil
	}

	deleted, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		j.logger.Error("Failed to purge expired cache entries", slog.Any("error", err))
		return err
	}

	if deleted > 0 {
		j.logger.Info("Purged expired cache entries", slog.Int64("deleted", deleted))
	} else {
		j.logger.Debug("No expired cache entries to purge")
	}
	return nil
}
