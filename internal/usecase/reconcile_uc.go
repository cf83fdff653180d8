package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"chat-image-sync/internal/domain"
	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/domain/ports/repository"
	"chat-image-sync/internal/infra/cache"
	"chat-image-sync/internal/infra/metrics"
	"chat-image-sync/internal/infra/transport"

	"github.com/rs/zerolog"
)

var _ transport.ProgressHandler = (*ReconcileUseCase)(nil)

// ReconcileUseCase binds incoming progress events to chat messages. The
// cache upsert always succeeds (unknown ids create records); the message
// side may lag behind the first event, so unmatched events sit in a per-job
// pending queue with bounded retries before being dropped.
type ReconcileUseCase struct {
	cache    *cache.JobCache
	messages repository.MessageStore
	log      *zerolog.Logger

	retryDelay    time.Duration
	retryAttempts int

	mu      sync.Mutex
	pending map[string]int // job id -> attempts already made

	// after is swappable so tests can collapse the retry delay.
	after func(d time.Duration) <-chan time.Time
}

func NewReconcileUseCase(
	jobCache *cache.JobCache,
	messages repository.MessageStore,
	retryDelay time.Duration,
	retryAttempts int,
	logger *zerolog.Logger,
) *ReconcileUseCase {
	if retryDelay <= 0 {
		retryDelay = 300 * time.Millisecond
	}
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	return &ReconcileUseCase{
		cache:         jobCache,
		messages:      messages,
		log:           logger,
		retryDelay:    retryDelay,
		retryAttempts: retryAttempts,
		pending:       map[string]int{},
		after:         time.After,
	}
}

// HandleProgress applies one realtime event: merge into the cache, then try
// to merge into the matching message. Re-applying the same event is a no-op
// beyond re-assigning identical values, so duplicate delivery is harmless.
func (r *ReconcileUseCase) HandleProgress(ctx context.Context, ev transport.ProgressEvent) {
	job := r.cache.Upsert(ev.Patch())
	if job == nil {
		return
	}

	if err := r.ApplyJobToMessage(ctx, job); err == nil {
		metrics.IncReconcile("applied")
		r.clearPending(job.ID)
		return
	} else if !errors.Is(err, domain.ErrNotFound) {
		r.log.Error().Err(err).Str("job_id", job.ID).Msg("reconcile: message merge failed")
		return
	}

	// No matching message yet: likely racing the send response that creates
	// it. Queue a retry unless one is already in flight for this job.
	r.mu.Lock()
	if _, inFlight := r.pending[job.ID]; inFlight {
		r.mu.Unlock()
		return
	}
	r.pending[job.ID] = 0
	r.mu.Unlock()

	metrics.IncReconcile("retried")
	go r.retryLoop(ctx, job.ID)
}

// retryLoop re-reads the cache and retries the message merge until it lands
// or attempts run out. Exhaustion is a documented data-loss boundary: the
// event state stays in the cache but no message reflects it.
func (r *ReconcileUseCase) retryLoop(ctx context.Context, jobID string) {
	for {
		select {
		case <-ctx.Done():
			r.clearPending(jobID)
			return
		case <-r.after(r.retryDelay):
		}

		job := r.cache.Get(jobID)
		if job == nil {
			// Removed (cancelled or swept) while waiting; nothing to bind.
			r.clearPending(jobID)
			return
		}

		err := r.ApplyJobToMessage(ctx, job)
		if err == nil {
			metrics.IncReconcile("applied")
			r.clearPending(jobID)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			r.log.Error().Err(err).Str("job_id", jobID).Msg("reconcile: retry merge failed")
			r.clearPending(jobID)
			return
		}

		r.mu.Lock()
		r.pending[jobID]++
		attempts := r.pending[jobID]
		r.mu.Unlock()
		if attempts >= r.retryAttempts {
			metrics.IncReconcile("dropped")
			r.log.Warn().Str("job_id", jobID).Int("attempts", attempts).
				Msg("reconcile: no message matched, dropping event")
			r.clearPending(jobID)
			return
		}
	}
}

func (r *ReconcileUseCase) clearPending(jobID string) {
	r.mu.Lock()
	delete(r.pending, jobID)
	r.mu.Unlock()
}

// ApplyJobToMessage merges the cached job state into the message referencing
// it. Metadata merge is shallow: unrelated keys survive. Terminal states
// additionally rewrite the displayed content. Returns domain.ErrNotFound
// when no message references the job, which is also how late events for
// cancelled (deleted) messages are silently discarded.
func (r *ReconcileUseCase) ApplyJobToMessage(ctx context.Context, job *model.Job) error {
	msg, err := r.messages.FindByJobID(ctx, job.ID)
	if err != nil {
		return err
	}

	msg.MergeMetadata(map[string]any{
		model.MetaJobStatus:     string(job.Status),
		model.MetaJobProgress:   job.Progress,
		model.MetaQueuePosition: job.QueuePosition,
	})
	switch job.Status {
	case model.JobStatusComplete:
		msg.Content = model.ImageContent(job.ImageURL)
	case model.JobStatusError:
		msg.Content = model.ImageErrorContent(job.Error)
	default:
		if msg.Content.Kind == model.ContentImagePending {
			msg.Content.Progress = job.Progress
		}
	}

	if err := r.messages.Save(ctx, msg); err != nil {
		return err
	}
	return nil
}
