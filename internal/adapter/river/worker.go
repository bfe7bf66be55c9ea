package river

import (
	"context"

	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

// TransitionWorker processes transition jobs from the River queue.
// It records each transition in the log; downstream delivery (mail, webhooks)
// hooks in here.
type TransitionWorker struct {
	river.WorkerDefaults[TransitionJobArgs]
	logger *zap.Logger
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[TransitionJobArgs]) error {
	w.logger.Info("workflow transition delivered",
		zap.String("tenant_id", job.Args.TenantID),
		zap.String("request_id", job.Args.RequestID),
		zap.String("action", job.Args.Action),
		zap.String("from", job.Args.From),
		zap.String("to", job.Args.To),
		zap.Bool("completed", job.Args.Completed),
		zap.Int64("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}
