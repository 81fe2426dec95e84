package job

import (
	"context"
	"time"
)

// Status is the job lifecycle state. Transitions are driven only by the
// worker loop and the explicit retry/cancel calls.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether the state permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// SourceType identifies where the ingested content comes from.
type SourceType string

const (
	SourceFile SourceType = "file"
	SourceURL  SourceType = "url"
	SourceText SourceType = "text"
)

const (
	// QueueKey is the tenant-agnostic FIFO dispatch list. The queue
	// entry is a dispatch hint; the database row is the record of truth.
	QueueKey = "ingestion_queue"

	lockKeyPrefix = "job_lock:"
)

// LockKeyFor returns the mutual-exclusion key serializing processing of
// one job across workers.
func LockKeyFor(jobID string) string {
	return lockKeyPrefix + jobID
}

// ProcessingJob is the durable ingestion job.
type ProcessingJob struct {
	ID           string            `json:"id"`
	TenantID     string            `json:"tenant_id"`
	DocumentID   string            `json:"document_id"`
	CollectionID string            `json:"collection_id"`
	SourceType   SourceType        `json:"source_type"`
	FileKey      string            `json:"file_key,omitempty"`
	URL          string            `json:"url,omitempty"`
	TextContent  string            `json:"text_content,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Status       Status            `json:"status"`
	Progress     int               `json:"progress"`
	RetryCount   int               `json:"retry_count"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// QueueEnvelope is the JSON payload pushed onto the dispatch list.
// Deliberately small: workers re-read the row after popping.
type QueueEnvelope struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
}

// EnqueueRequest is what job-producing callers submit.
type EnqueueRequest struct {
	TenantID     string            `json:"tenant_id"`
	DocumentID   string            `json:"document_id"`
	CollectionID string            `json:"collection_id"`
	SourceType   SourceType        `json:"source_type"`
	FileKey      string            `json:"file_key,omitempty"`
	URL          string            `json:"url,omitempty"`
	TextContent  string            `json:"text_content,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// StatusInfo is the polling view returned to callers.
type StatusInfo struct {
	JobID    string `json:"job_id"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// IRepository is the system-of-record store for jobs.
type IRepository interface {
	Create(ctx context.Context, j *ProcessingJob) error
	GetByID(ctx context.Context, jobID string) (*ProcessingJob, error)
	GetByIDForTenant(ctx context.Context, jobID, tenantID string) (*ProcessingJob, error)
	UpdateStatus(ctx context.Context, jobID string, status Status, errMsg string) error
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	IncrementRetry(ctx context.Context, jobID string) error
	ListProcessingOlderThan(ctx context.Context, cutoff time.Time) ([]*ProcessingJob, error)
}

// IJobUsecase is the queue/lock lifecycle contract.
type IJobUsecase interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (string, error)
	// DequeueAndLock returns (nil, nil) when the queue stayed empty for
	// the timeout or when another worker already owns the popped job.
	DequeueAndLock(ctx context.Context, timeout time.Duration) (*ProcessingJob, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID, errMsg string) error
	ReleaseLock(ctx context.Context, jobID string)
	RetryFailedJob(ctx context.Context, jobID, tenantID string) error
	CancelJob(ctx context.Context, jobID, tenantID string) error
	CheckStuckJobs(ctx context.Context) (int, error)
	GetJobStatus(ctx context.Context, jobID, tenantID string) (*StatusInfo, error)
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	IsCancelled(ctx context.Context, jobID string) (bool, error)
}
