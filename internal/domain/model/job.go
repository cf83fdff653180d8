package model

import "time"

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
	// JobStatusCancelled is client-local: the backend never emits it, it is
	// assigned when the user cancels a queued job.
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusComplete, JobStatusError, JobStatusCancelled:
		return true
	}
	return false
}

// CanTransition enforces queued -> processing -> {complete,error} and
// queued -> cancelled. Self-transitions are allowed so duplicate events
// merge as no-ops.
func (s JobStatus) CanTransition(to JobStatus) bool {
	if s == to {
		return true
	}
	switch s {
	case JobStatusQueued:
		return to == JobStatusProcessing || to == JobStatusComplete ||
			to == JobStatusError || to == JobStatusCancelled
	case JobStatusProcessing:
		return to == JobStatusComplete || to == JobStatusError
	}
	return false
}

// Job is one server-side unit of asynchronous image-generation work, keyed by
// a backend-issued opaque id.
type Job struct {
	ID               string
	ConversationID   string
	Prompt           string
	Status           JobStatus
	Progress         int // 0..100
	QueuePosition    int // >= 1, meaningful only while queued
	EstimatedSeconds float64
	ImageURL         string
	Error            string
	CreatedAt        time.Time
	CompletedAt      time.Time
	UpdatedAt        time.Time
}

// NewJob returns a job in its initial state. Unknown ids seen on a first
// event are created through this, not rejected.
func NewJob(id string) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    JobStatusQueued,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JobPatch carries partial fields for a merge. Nil pointers mean "not
// supplied" and never erase populated values.
type JobPatch struct {
	ID               string
	ConversationID   *string
	Prompt           *string
	Status           *JobStatus
	Progress         *int
	QueuePosition    *int
	EstimatedSeconds *float64
	ImageURL         *string
	Error            *string
}

// Merge applies p onto j in place. Terminal states are sticky and progress is
// monotone while processing, so stale or duplicate events cannot move state
// backwards.
func (j *Job) Merge(p JobPatch) {
	if p.ConversationID != nil && *p.ConversationID != "" {
		j.ConversationID = *p.ConversationID
	}
	if p.Prompt != nil && *p.Prompt != "" {
		j.Prompt = *p.Prompt
	}
	if p.Status != nil && j.Status.CanTransition(*p.Status) {
		if !j.Status.Terminal() && (*p.Status).Terminal() {
			j.CompletedAt = time.Now()
		}
		j.Status = *p.Status
	}
	if p.Progress != nil {
		np := clampProgress(*p.Progress)
		if np > j.Progress || j.Status == JobStatusQueued {
			j.Progress = np
		}
	}
	if j.Status == JobStatusComplete {
		j.Progress = 100
	}
	if p.QueuePosition != nil && *p.QueuePosition >= 1 {
		j.QueuePosition = *p.QueuePosition
	}
	if p.EstimatedSeconds != nil {
		j.EstimatedSeconds = *p.EstimatedSeconds
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		j.ImageURL = *p.ImageURL
	}
	if p.Error != nil && *p.Error != "" {
		j.Error = *p.Error
	}
	j.UpdatedAt = time.Now()
}

// Active reports whether the job is still in flight.
func (j *Job) Active() bool { return !j.Status.Terminal() }

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// Helpers so callers can build patches without local temporaries.
func StrPtr(s string) *string          { return &s }
func IntPtr(i int) *int                { return &i }
func Float64Ptr(f float64) *float64    { return &f }
func StatusPtr(s JobStatus) *JobStatus { return &s }
