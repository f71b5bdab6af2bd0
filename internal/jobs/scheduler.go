package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultCleanupInterval is how often expired cache rows are purged.
const DefaultCleanupInterval = time.Hour

// Config tunes the scheduler.
type Config struct {
	WarmInterval    time.Duration
	CleanupInterval time.Duration
	Periods         []string
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	wg sync.WaitGroup

	// Job instances
	warmer     *CacheWarmerJob
	cleanupJob *CacheCleanupJob

	// Tickers for each job type
	warmTicker    *time.Ticker
	cleanupTicker *time.Ticker
}

// NewScheduler creates a scheduler that keeps the metrics cache warm. purger
// may be nil when the cache is not persisted.
func NewScheduler(service Warmer, purger ExpiredEntryPurger, logger *slog.Logger, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WarmInterval <= 0 {
		cfg.WarmInterval = 5 * time.Minute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	return &Scheduler{
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		enabled:    true,
		cfg:        cfg,
		warmer:     NewCacheWarmerJob(service, logger, cfg.Periods...),
		cleanupJob: NewCacheCleanupJob(purger, logger),
	}
}

// executeJobSafely runs a job only if no other job is currently executing.
// It reports whether the job ran.
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func(context.Context) error) bool {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return false
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
	return true
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	s.warmTicker = s.startJob("cache_warmer", s.cfg.WarmInterval, s.warmer.Run)
	s.cleanupTicker = s.startJob("cache_cleanup", s.cfg.CleanupInterval, s.cleanupJob.Run)

	s.logger.Info("Background jobs started",
		slog.Duration("warm_interval", s.cfg.WarmInterval),
		slog.Duration("cleanup_interval", s.cfg.CleanupInterval))

	return nil
}

func (s *Scheduler) startJob(name string, interval time.Duration, run func(context.Context) error) *time.Ticker {
	s.logger.Info("Starting job", slog.String("job", name), slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.executeJobSafely(name, run)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(name, run)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", name))
				return
			}
		}
	}()
	return ticker
}

// Stop halts all background jobs and waits for running executions to return.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	if s.warmTicker != nil {
		s.warmTicker.Stop()
	}
	if s.cleanupTicker != nil {
		s.cleanupTicker.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// WarmNow runs the cache warmer immediately in the caller's goroutine.
func (s *Scheduler) WarmNow(ctx context.Context) error {
	if !s.enabled {
		return nil
	}
	return s.warmer.Run(ctx)
}
