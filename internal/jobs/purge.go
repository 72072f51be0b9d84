// Package jobs holds scheduled maintenance work.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Purger hard-deletes threads soft-deleted before a cutoff.
type Purger interface {
	PurgeDeletedThreads(ctx context.Context, before time.Time) (int64, error)
}

type PurgeJob struct {
	purger    Purger
	retention time.Duration
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewPurgeJob(purger Purger, retention time.Duration, logger *zap.Logger) *PurgeJob {
	return &PurgeJob{
		purger:    purger,
		retention: retention,
		logger:    logger.Sugar(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (j *PurgeJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := j.now().Add(-j.retention)
	n, err := j.purger.PurgeDeletedThreads(ctx, cutoff)
	if err != nil {
		j.logger.Errorw("Purge of deleted threads failed", "cutoff", cutoff, "error", err)
		return
	}
	j.logger.Infow("Purged deleted threads", "count", n, "cutoff", cutoff)
}

// Schedule starts a cron scheduler running job on schedule. The caller stops it.
func Schedule(schedule string, job cron.Job, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()
	if _, err := c.AddJob(schedule, job); err != nil {
		return nil, err
	}
	c.Start()
	logger.Info("Scheduled purge job", zap.String("schedule", schedule))
	return c, nil
}
