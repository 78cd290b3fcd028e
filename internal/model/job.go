package model

import "time"

// JobStatus is the human status code reported in job metadata.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusStarted    JobStatus = "started"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// JobState tracks the queue-level lifecycle of a job, independent of the
// status the job itself reports. A bulk edit that fails on an item still
// finishes normally; only an infrastructure fault leaves the job in JobStateFailed.
type JobState string

const (
	JobStateQueued   JobState = "queued"
	JobStateRunning  JobState = "running"
	JobStateFinished JobState = "finished"
	JobStateFailed   JobState = "failed"
)

// JobMeta is the progress record a polling client observes.
type JobMeta struct {
	Percent     int            `json:"percent"`
	Status      JobStatus      `json:"status"`
	StatusMsg   string         `json:"status_msg"`
	Error       bool           `json:"error"`
	UpdatedList []UpdateResult `json:"updated_list,omitempty"`
}

// Job is the persisted record for one bulk edit run.
type Job struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	State     JobState   `json:"state"`
	Meta      JobMeta    `json:"meta"`
	Result    *JobMeta   `json:"result,omitempty"`
	ExcInfo   string     `json:"exc_info,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// Job types
const (
	JobTypeBulkEdit = "bulkedit"
)

// BulkEditJobPayload is the task payload handed to the worker.
type BulkEditJobPayload struct {
	CourseID string              `json:"courseId"`
	Form     map[string][]string `json:"form"`
}

// ItemType names the kind of item in an UpdateResult.
type ItemType string

const (
	ItemTypeAssignment ItemType = "Assignment"
	ItemTypeQuiz       ItemType = "Quiz"
)

// UpdateResult records one successfully updated item.
type UpdateResult struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Type  ItemType `json:"type"`
}

// EnqueueResponse is returned by POST /course/:courseId/update.
type EnqueueResponse struct {
	JobURL string `json:"update_assignments_job_url"`
}

// Smoke check names reported by GET /status.
const (
	CheckAPIKey = "api_key"
	CheckRedis  = "redis"
	CheckWorker = "worker"
)

// StatusReport is the body of GET /status.
type StatusReport struct {
	Tool      string          `json:"tool"`
	Checks    map[string]bool `json:"checks"`
	URL       string          `json:"url"`
	CanvasURL string          `json:"canvas_url"`
	XMLURL    string          `json:"xml_url"`
	JobQueue  *int            `json:"job_queue"`
	Healthy   bool            `json:"healthy"`
}
