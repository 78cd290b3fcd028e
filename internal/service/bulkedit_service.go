package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/duedatechanger/api/internal/jobs"
	"github.com/duedatechanger/api/internal/logger"
	"github.com/duedatechanger/api/internal/model"
)

const TaskTypeBulkEdit = "bulkedit:update"

// Enqueuer is the subset of *asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// StatusOutcome classifies a job for the status endpoint.
type StatusOutcome int

const (
	StatusInProgress StatusOutcome = iota
	StatusFinished
	StatusFailed
)

// JobStatus is what a poller sees for one job.
type JobStatus struct {
	Outcome StatusOutcome
	Meta    model.JobMeta
}

// BulkEditService creates bulk edit jobs and reports on them.
type BulkEditService struct {
	store jobs.Store
	queue Enqueuer
	qname string
	ttl   time.Duration
	log   zerolog.Logger
}

func NewBulkEditService(store jobs.Store, queue Enqueuer, queueName string, ttl time.Duration) *BulkEditService {
	return &BulkEditService{
		store: store,
		queue: queue,
		qname: queueName,
		ttl:   ttl,
		log:   logger.Get().With().Str("component", "bulkedit_service").Logger(),
	}
}

// Enqueue persists a queued job record for the course and submits it to the
// worker queue. The record is written before the task so a fast worker never
// races the initial metadata.
func (s *BulkEditService) Enqueue(ctx context.Context, courseID string, form map[string][]string) (string, error) {
	jobID := uuid.New().String()

	handle := jobs.New(s.store, jobID, model.JobTypeBulkEdit)
	if err := handle.Report(ctx, 0, "Job Queued.", model.JobStatusQueued, false); err != nil {
		return "", fmt.Errorf("failed to save job: %w", err)
	}

	task, err := newBulkEditTask(jobID, &model.BulkEditJobPayload{CourseID: courseID, Form: form})
	if err != nil {
		return "", fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.queue.EnqueueContext(ctx, task,
		asynq.Queue(s.qname),
		asynq.TaskID(jobID),
		asynq.MaxRetry(0),
		asynq.Retention(s.ttl),
	)
	if err != nil {
		if ferr := handle.Fail(ctx, err.Error()); ferr != nil {
			s.log.Error().Err(ferr).Str("job_id", jobID).Msg("Failed to mark unqueued job as failed")
		}
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.log.Info().Str("job_id", jobID).Str("course_id", courseID).Msg("Bulk edit queued")
	return jobID, nil
}

// GetStatus returns jobs.ErrNotFound for unknown or expired ids. Crash
// details of a failed job are logged here and never returned.
func (s *BulkEditService) GetStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.State {
	case model.JobStateFinished:
		meta := job.Meta
		if job.Result != nil {
			meta = *job.Result
		}
		return &JobStatus{Outcome: StatusFinished, Meta: meta}, nil
	case model.JobStateFailed:
		s.log.Error().Str("job_id", jobID).Str("exc_info", job.ExcInfo).Msg("Job failed")
		return &JobStatus{Outcome: StatusFailed}, nil
	default:
		return &JobStatus{Outcome: StatusInProgress, Meta: job.Meta}, nil
	}
}

// IsNotFound reports whether err means the job id is unknown.
func IsNotFound(err error) bool {
	return errors.Is(err, jobs.ErrNotFound)
}

type bulkEditTaskPayload struct {
	JobID   string                    `json:"jobId"`
	Payload *model.BulkEditJobPayload `json:"payload"`
}

func newBulkEditTask(jobID string, payload *model.BulkEditJobPayload) (*asynq.Task, error) {
	data, err := json.Marshal(bulkEditTaskPayload{JobID: jobID, Payload: payload})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBulkEdit, data), nil
}

// ParseBulkEditTask decodes a task created by Enqueue.
func ParseBulkEditTask(t *asynq.Task) (string, *model.BulkEditJobPayload, error) {
	var p bulkEditTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if p.JobID == "" || p.Payload == nil {
		return "", nil, errors.New("task payload missing job id or body")
	}
	return p.JobID, p.Payload, nil
}
