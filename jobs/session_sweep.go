package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/akademika-id/akademika/internal/jobs"
)

// SessionSweeper deletes sessions past their expiry and reports how many.
type SessionSweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// SessionSweepJob removes expired session rows on a schedule. Lookup already
// rejects expired sessions; the sweep only keeps the table from growing.
type SessionSweepJob struct {
	Sweeper SessionSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewSessionSweepJob initialises the sweep handler.
func NewSessionSweepJob(sweeper SessionSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweepJob{Sweeper: sweeper, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Sweeper == nil {
		return errors.New("session sweep: handler not configured")
	}
	tracker := j.Metrics.Track(TaskSessionSweep)
	swept, err := j.Sweeper.SweepExpiredSessions(ctx)
	if err != nil {
		j.Logger.Error("session sweep", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.AddSweptSessions(swept)
	if swept > 0 {
		j.Logger.Info("session sweep", slog.Int64("deleted", swept))
	}
	return tracker.End(nil)
}
