package worker

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/duedatechanger/api/internal/bulkedit"
	"github.com/duedatechanger/api/internal/jobs"
	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/model"
	"github.com/duedatechanger/api/internal/service"
)

// Runner executes one bulk edit against a job's progress record.
type Runner interface {
	Run(ctx context.Context, job bulkedit.Progress, courseID string, form map[string][]string) (model.JobMeta, error)
}

// BulkEditWorker processes bulk edit tasks
type BulkEditWorker struct {
	store  jobs.Store
	runner Runner
	log    zerolog.Logger
}

func NewBulkEditWorker(store jobs.Store, runner Runner) *BulkEditWorker {
	return &BulkEditWorker{
		store:  store,
		runner: runner,
		log:    logger.Get().With().Str("component", "bulkedit_worker").Logger(),
	}
}

// ProcessTask runs the bulk edit and records the outcome on the job. An item
// that fails to update still finishes the job normally with a failed status;
// only infrastructure faults and panics mark the job itself as failed. Tasks
// are never retried.
func (w *BulkEditWorker) ProcessTask(ctx context.Context, t *asynq.Task) (err error) {
	jobID, payload, err := service.ParseBulkEditTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	log := w.log.With().Str("job_id", jobID).Str("course_id", payload.CourseID).Logger()

	handle, err := jobs.Load(ctx, w.store, jobID)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load job")
		return fmt.Errorf("failed to load job %s: %v: %w", jobID, err, asynq.SkipRetry)
	}

	defer func() {
		if r := recover(); r != nil {
			excInfo := fmt.Sprintf("panic: %v\n%s", r, debug.Stack())
			w.fail(ctx, log, handle, excInfo)
			err = fmt.Errorf("bulk edit panicked: %v: %w", r, asynq.SkipRetry)
		}
	}()

	log.Info().Msg("Starting bulk edit job")

	if err := handle.Start(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to mark job running")
		return fmt.Errorf("failed to start job: %v: %w", err, asynq.SkipRetry)
	}

	meta, err := w.runner.Run(ctx, handle, payload.CourseID, payload.Form)
	if err != nil {
		w.fail(ctx, log, handle, err.Error())
		return fmt.Errorf("bulk edit failed: %v: %w", err, asynq.SkipRetry)
	}

	if err := handle.Finish(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to record job result")
		return fmt.Errorf("failed to finish job: %v: %w", err, asynq.SkipRetry)
	}

	log.Info().Str("status", string(meta.Status)).Int("updated", len(meta.UpdatedList)).Msg("Bulk edit job finished")
	return nil
}

func (w *BulkEditWorker) fail(ctx context.Context, log zerolog.Logger, handle *jobs.Handle, excInfo string) {
	log.Error().Str("exc_info", excInfo).Msg("Bulk edit job failed")
	if err := handle.Fail(ctx, excInfo); err != nil {
		log.Error().Err(err).Msg("Failed to mark job failed")
	}
}
