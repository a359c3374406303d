// File: internal/jobs/token_cleanup.go
package jobs

import (
	"context"
	"time"

	"auth_api/internal/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ExpiredTokenPurger deletes token records that can no longer be presented.
type ExpiredTokenPurger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenCleanupJob periodically purges expired rows from the token blocklist.
type TokenCleanupJob struct {
	store         ExpiredTokenPurger
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
	now           func() time.Time
}

// NewTokenCleanupJob creates a new TokenCleanupJob.
func NewTokenCleanupJob(store ExpiredTokenPurger, logger *zap.Logger, cfg *config.Config) *TokenCleanupJob {
	cl := NewCronLogger(logger.Named("cron"))
	scheduler := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.SkipIfStillRunning(cl)),
	)

	return &TokenCleanupJob{
		store:         store,
		logger:        logger.Named("TokenCleanupJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
		now:           time.Now,
	}
}

// SetupAndStart schedules and starts the cron job. An empty schedule leaves the job disabled.
func (j *TokenCleanupJob) SetupAndStart() error {
	jobSpec := j.cfg.TokenCleanupSchedule
	if jobSpec == "" {
		j.logger.Warn("Token cleanup schedule not defined (TOKEN_CLEANUP_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.RunOnce)
	if err != nil {
		j.logger.Error("Failed to schedule token cleanup job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Token cleanup job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID))
	j.cronScheduler.Start()
	return nil
}

// RunOnce performs a single purge.
func (j *TokenCleanupJob) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	deleted, err := j.store.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("Token cleanup run failed", zap.Error(err))
		return
	}
	j.logger.Info("Token cleanup run completed", zap.Int64("tokens_deleted", deleted))
}

// Stop gracefully stops the cron scheduler.
func (j *TokenCleanupJob) Stop() {
	if j.cronScheduler == nil {
		return
	}
	stopCtx := j.cronScheduler.Stop()
	select {
	case <-stopCtx.Done():
		j.logger.Info("Token cleanup scheduler stopped.")
	case <-time.After(10 * time.Second):
		j.logger.Warn("Token cleanup scheduler stop timed out.")
	}
}
