package background

import (
	"context"
	"log/slog"
	"time"
)

// AttemptPruner deletes login attempts older than a cutoff.
type AttemptPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CacheSweeper drops expired cache entries.
type CacheSweeper interface {
	Sweep() int
}

// CleanupManager periodically prunes login-attempt history and the user
// cache. Attempts are kept well past the lockout window so the history
// remains useful for audits. Session rows are deliberately not pruned:
// deactivation moves expires_at, never deletes, and the rows stay as an
// audit trail.
type CleanupManager struct {
	attempts AttemptPruner
	cache    CacheSweeper
	logger   *slog.Logger
	interval time.Duration

	attemptRetention time.Duration

	stopCh chan struct{}
}

func NewCleanupManager(attempts AttemptPruner, cache CacheSweeper, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		attempts:         attempts,
		cache:            cache,
		logger:           logger,
		interval:         interval,
		attemptRetention: 30 * 24 * time.Hour,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()

	attempts, err := cm.attempts.DeleteOlderThan(cleanupCtx, now.Add(-cm.attemptRetention))
	if err != nil {
		cm.logger.Error("failed to prune login attempts", slog.Any("error", err))
	}

	swept := cm.cache.Sweep()

	if attempts > 0 || swept > 0 {
		cm.logger.Info("cleanup completed",
			slog.Int64("attempts_pruned", attempts),
			slog.Int("cache_entries_swept", swept))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
