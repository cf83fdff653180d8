package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chat-image-sync/internal/domain"
	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/domain/ports/adapter"
	"chat-image-sync/internal/domain/ports/repository"
	"chat-image-sync/internal/infra/cache"
	"chat-image-sync/internal/infra/logging"
	"chat-image-sync/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// CancelUseCase requests backend cancellation of a queued job and finalizes
// local state: the job is marked cancelled, and after a short grace delay
// the whole message is deleted (not merely marked terminal) and the job
// removed from the cache.
type CancelUseCase struct {
	cache    *cache.JobCache
	messages repository.MessageStore
	jobs     adapter.JobServiceAdapter
	grace    time.Duration
	log      *zerolog.Logger

	after func(d time.Duration) <-chan time.Time
}

func NewCancelUseCase(
	jobCache *cache.JobCache,
	messages repository.MessageStore,
	jobs adapter.JobServiceAdapter,
	grace time.Duration,
	logger *zerolog.Logger,
) *CancelUseCase {
	if grace <= 0 {
		grace = 800 * time.Millisecond
	}
	return &CancelUseCase{
		cache:    jobCache,
		messages: messages,
		jobs:     jobs,
		grace:    grace,
		log:      logger,
		after:    time.After,
	}
}

// Cancel is permitted only while the cached status is queued; processing
// jobs already burn backend work and cannot be stopped. On any failure local
// state is untouched so the caller can revert an optimistic UI flag.
func (u *CancelUseCase) Cancel(ctx context.Context, jobID string) error {
	if jobID == "" {
		return domain.ErrInvalidArgument
	}
	log := logging.With(logging.WithJobID(ctx, jobID), u.log)
	job := u.cache.Get(jobID)
	if job == nil {
		return fmt.Errorf("cancel %s: %w", jobID, domain.ErrNotFound)
	}
	if job.Status != model.JobStatusQueued {
		metrics.IncCancel("guarded")
		return fmt.Errorf("cancel %s in status %s: %w", jobID, job.Status, domain.ErrNotCancelable)
	}

	res, err := u.jobs.Cancel(ctx, jobID)
	if err != nil {
		metrics.IncCancel("error")
		return fmt.Errorf("cancel %s: %w", jobID, err)
	}
	if !res.Success {
		// Late rejection, e.g. the job started processing server-side while
		// the request was in flight.
		metrics.IncCancel("rejected")
		log.Info().Str("message", res.Message).Msg("cancel: backend rejected")
		return fmt.Errorf("cancel %s: %s: %w", jobID, res.Message, domain.ErrCancelRejected)
	}

	u.cache.Upsert(model.JobPatch{ID: jobID, Status: model.StatusPtr(model.JobStatusCancelled)})

	// Grace delay for the UI exit transition before the message disappears.
	select {
	case <-ctx.Done():
	case <-u.after(u.grace):
	}

	if msg, err := u.messages.FindByJobID(ctx, jobID); err == nil {
		if err := u.messages.Delete(ctx, msg.ID); err != nil {
			log.Warn().Err(err).Msg("cancel: message delete failed")
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		log.Warn().Err(err).Msg("cancel: message lookup failed")
	}
	u.cache.Remove(jobID)

	metrics.IncCancel("ok")
	log.Info().Msg("cancel: job cancelled and message removed")
	return nil
}
