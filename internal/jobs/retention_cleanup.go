package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"ticus/internal/services"
)

// RetentionCleanupJob deletes finalized sessions older than the
// configured retention window. The Mongo archive, when enabled, keeps
// the long-term copy.
type RetentionCleanupJob struct {
	sessions      *services.SessionService
	retentionDays int
	schedule      cron.Schedule
}

// NewRetentionCleanupJob creates a new retention cleanup job.
func NewRetentionCleanupJob(sessions *services.SessionService, cronExpr string, retentionDays int) (*RetentionCleanupJob, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", cronExpr, err)
	}
	return &RetentionCleanupJob{
		sessions:      sessions,
		retentionDays: retentionDays,
		schedule:      schedule,
	}, nil
}

// Run deletes sessions past retention.
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	if j.retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -j.retentionDays)
	deleted, err := j.sessions.DeleteFinalizedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		log.Printf("🧹 [RETENTION] Deleted %d sessions older than %d days", deleted, j.retentionDays)
	}
	return nil
}

// GetNextRunTime returns the next cron occurrence.
func (j *RetentionCleanupJob) GetNextRunTime() time.Time {
	return j.schedule.Next(time.Now())
}
