package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionSweep is the task type for deleting expired sessions.
	TaskSessionSweep = "sessions:sweep"
)

// NewSessionSweepTask constructs an Asynq task. The sweep carries no payload;
// the handler deletes every session past its expiry.
func NewSessionSweepTask() *asynq.Task {
	return asynq.NewTask(TaskSessionSweep, nil)
}
