package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/expense-bot/internal/gateway"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeProcessMessages handles one webhook delivery worth of chat messages.
	JobTypeProcessMessages JobType = "process_messages"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ProcessMessagesJob carries inbound messages from one transport delivery.
// Messages are processed in order. Failed jobs are not retried because a
// retry would send the user a second reply.
type ProcessMessagesJob struct {
	JobID    string                   `json:"job_id"`
	Channel  gateway.Channel          `json:"channel"`
	Messages []gateway.InboundMessage `json:"messages"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

func (j *ProcessMessagesJob) GetID() string {
	return j.JobID
}

func (j *ProcessMessagesJob) GetType() JobType {
	return JobTypeProcessMessages
}

func (j *ProcessMessagesJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs for asynchronous processing.
type Publisher interface {
	PublishProcessMessages(ctx context.Context, job *ProcessMessagesJob) error
	Close() error
}

// Consumer runs a handler over queued jobs.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes one job. A returned error marks the job failed.
type JobHandler func(ctx context.Context, job Job) error

// JobStore keeps job state for inspection through the API.
type JobStore interface {
	SaveJob(ctx context.Context, job *ProcessMessagesJob) error
	GetJob(ctx context.Context, jobID string) (*ProcessMessagesJob, error)
	// ListJobs returns jobs newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ProcessMessagesJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Channel gateway.Channel
	Status  JobStatus
	Limit   int
	Offset  int
}

// BatchProcessor is satisfied by gateway.Processor.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, msgs []gateway.InboundMessage) error
}

var _ BatchProcessor = (*gateway.Processor)(nil)

// ProcessMessagesHandler adapts a BatchProcessor to a JobHandler.
func ProcessMessagesHandler(p BatchProcessor) JobHandler {
	return func(ctx context.Context, job Job) error {
		j, ok := job.(*ProcessMessagesJob)
		if !ok {
			return fmt.Errorf("ProcessMessagesHandler: unexpected job type %s", job.GetType())
		}
		return p.ProcessBatch(ctx, j.Messages)
	}
}
