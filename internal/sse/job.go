package sse

import (
	"context"
	"time"

	"mailsorter/internal/logger"
	"mailsorter/internal/service"
)

// EmailSyncJob periodically triggers a sync for every user with a live connection.
type EmailSyncJob struct {
	syncService service.SyncService
	sseManager  *SSEManager
	logger      *logger.Logger
	interval    time.Duration
}

// NewEmailSyncJob creates a new email sync job
func NewEmailSyncJob(syncService service.SyncService, sseManager *SSEManager, interval time.Duration, logger *logger.Logger) *EmailSyncJob {
	return &EmailSyncJob{
		syncService: syncService,
		sseManager:  sseManager,
		logger:      logger,
		interval:    interval,
	}
}

// Start runs until ctx is cancelled. A non-positive interval disables the job.
func (j *EmailSyncJob) Start(ctx context.Context) {
	if j.interval <= 0 {
		j.logger.Info("Periodic email sync disabled")
		return
	}
	j.logger.Info("Starting email sync job with interval:", j.interval.String())

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce()
		case <-ctx.Done():
			j.logger.Info("Email sync job stopped")
			return
		}
	}
}

// RunOnce triggers a background sync for each connected user and returns how many were scheduled.
func (j *EmailSyncJob) RunOnce() int {
	users := j.sseManager.ConnectedUsers()
	scheduled := 0
	for _, userID := range users {
		if j.syncService.TriggerSync(userID) {
			scheduled++
		}
	}
	if scheduled > 0 {
		j.logger.Debug("Scheduled periodic sync for", scheduled, "users")
	}
	return scheduled
}

// GetInterval returns the sync interval
func (j *EmailSyncJob) GetInterval() time.Duration {
	return j.interval
}
