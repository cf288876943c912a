package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tradesmatepro/portal-identity/internal/metrics"
)

// StaleSessionDeleter is the slice of the session repository the job needs.
type StaleSessionDeleter interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob periodically removes session rows that expired, were revoked or
// were consumed more than retention ago. Validity never depends on this job.
type CleanupJob struct {
	sessions  StaleSessionDeleter
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	done      chan struct{}
}

func NewCleanupJob(sessions StaleSessionDeleter, retention, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessions:  sessions,
		retention: retention,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
		done:      make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := j.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("failed to cleanup sessions")
	}
}

// RunOnce deletes stale sessions and returns how many rows went away.
func (j *CleanupJob) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)

	count, err := j.sessions.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		metrics.CleanupDeleted.Add(float64(count))
		log.Info().Int64("count", count).Time("cutoff", cutoff).Msg("cleaned up sessions")
	}
	return count, nil
}
