package workers

import (
	"context"
	"time"

	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/repositories"
)

// RetentionWorker prunes read notifications past their retention window.
// Deletions propagate to live clients through the change capture
// triggers, so cached copies disappear too.
type RetentionWorker struct {
	notificationRepo repositories.NotificationRepository
	retention        time.Duration
	interval         time.Duration
}

func NewRetentionWorker(notificationRepo repositories.NotificationRepository, retention time.Duration) *RetentionWorker {
	return &RetentionWorker{
		notificationRepo: notificationRepo,
		retention:        retention,
		interval:         time.Hour,
	}
}

func (w *RetentionWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *RetentionWorker) sweep() {
	cutoff := time.Now().Add(-w.retention)
	deleted, err := w.notificationRepo.DeleteReadOlderThan(cutoff)
	if err != nil {
		logger.Error("notification retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		logger.Info("notification retention sweep", "deleted", deleted)
	}
}
