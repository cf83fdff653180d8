package adapter

import (
	"context"

	"chat-image-sync/internal/domain/model"
)

// JobStatusResult is the backend's answer to a status query. Known reports
// whether the backend has any record of the job; when false the other fields
// carry no meaning and callers must leave local state untouched.
type JobStatusResult struct {
	JobID          string
	Known          bool
	Status         model.JobStatus
	Progress       int
	QueuePosition  int
	ConversationID string
	ImageURL       string
	Error          string
}

// CancelResult mirrors the cancel endpoint's response body.
type CancelResult struct {
	Success bool
	Message string
}

// JobServiceAdapter is the REST surface of the image backend consumed by
// backfill and cancellation.
type JobServiceAdapter interface {
	Status(ctx context.Context, jobID string) (JobStatusResult, error)
	Cancel(ctx context.Context, jobID string) (CancelResult, error)
}
