package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/duedatechanger/api/internal/model"
)

// Handle is a worker's view of one job. Mutations are held in memory and
// written through to the store on every state change.
type Handle struct {
	store Store
	job   *model.Job
}

// New creates a queued job record in memory. Call Report or Save to persist it.
func New(store Store, id, jobType string) *Handle {
	return &Handle{
		store: store,
		job: &model.Job{
			ID:        id,
			Type:      jobType,
			State:     model.JobStateQueued,
			CreatedAt: time.Now(),
		},
	}
}

// Load fetches an existing job record.
func Load(ctx context.Context, store Store, id string) (*Handle, error) {
	job, err := store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Handle{store: store, job: job}, nil
}

func (h *Handle) ID() string {
	return h.job.ID
}

func (h *Handle) Meta() model.JobMeta {
	return h.job.Meta
}

// Save persists the current record.
func (h *Handle) Save(ctx context.Context) error {
	return h.store.Save(ctx, h.job)
}

// Report overwrites the progress fields of the job metadata and persists the
// record synchronously. A persistence failure is returned to the caller
// without retry.
func (h *Handle) Report(ctx context.Context, percent int, msg string, status model.JobStatus, isErr bool) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("percent %d out of range", percent)
	}

	h.job.Meta.Percent = percent
	h.job.Meta.Status = status
	h.job.Meta.StatusMsg = msg
	h.job.Meta.Error = isErr

	return h.Save(ctx)
}

// SetUpdatedList attaches the items updated so far. It is persisted by the
// next Report or Save.
func (h *Handle) SetUpdatedList(list []model.UpdateResult) {
	h.job.Meta.UpdatedList = append([]model.UpdateResult(nil), list...)
}

// Start marks the job as picked up by a worker.
func (h *Handle) Start(ctx context.Context) error {
	now := time.Now()
	h.job.State = model.JobStateRunning
	h.job.StartedAt = &now
	return h.Save(ctx)
}

// Finish records the final metadata snapshot as the job result.
func (h *Handle) Finish(ctx context.Context) error {
	now := time.Now()
	result := h.job.Meta
	h.job.State = model.JobStateFinished
	h.job.Result = &result
	h.job.EndedAt = &now
	return h.Save(ctx)
}

// Fail marks the job as crashed. excInfo is kept server-side only.
func (h *Handle) Fail(ctx context.Context, excInfo string) error {
	now := time.Now()
	h.job.State = model.JobStateFailed
	h.job.ExcInfo = excInfo
	h.job.EndedAt = &now
	return h.Save(ctx)
}
