package usecase

import (
	"context"
	"fmt"

	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/domain/ports/adapter"
	"chat-image-sync/internal/domain/ports/repository"
	"chat-image-sync/internal/infra/cache"
	"chat-image-sync/internal/infra/logging"
	"chat-image-sync/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// BackfillUseCase converges local job/message state with the backend's
// authoritative status. It is the only path that can observe progress or
// completion that happened entirely while the transport was down, since the
// channel does not replay missed frames.
type BackfillUseCase struct {
	cache    *cache.JobCache
	messages repository.MessageStore
	jobs     adapter.JobServiceAdapter
	resolver *ReconcileUseCase
	log      *zerolog.Logger
}

func NewBackfillUseCase(
	jobCache *cache.JobCache,
	messages repository.MessageStore,
	jobs adapter.JobServiceAdapter,
	resolver *ReconcileUseCase,
	logger *zerolog.Logger,
) *BackfillUseCase {
	return &BackfillUseCase{
		cache:    jobCache,
		messages: messages,
		jobs:     jobs,
		resolver: resolver,
		log:      logger,
	}
}

// Run repairs one conversation. Trigger is "load", "reconnect" or "manual"
// and only feeds diagnostics. Returns the number of repaired messages.
func (b *BackfillUseCase) Run(ctx context.Context, conversationID, trigger string) (int, error) {
	defer logging.TraceDuration(b.log, "Backfill.Run")()
	metrics.IncBackfillRun(trigger)

	msgs, err := b.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return 0, fmt.Errorf("backfill: list messages: %w", err)
	}

	repaired := 0
	for _, msg := range msgs {
		jobID, ok := msg.JobID()
		if !ok {
			continue
		}
		if cached := b.cache.Get(jobID); cached != nil && cached.Status.Terminal() {
			// Already settled locally; nothing to repair.
			continue
		}

		res, err := b.jobs.Status(ctx, jobID)
		if err != nil {
			b.log.Warn().Err(err).Str("job_id", jobID).Msg("backfill: status query failed")
			continue
		}
		if !res.Known {
			// Orphaned job: the backend has no record, and the message stays
			// exactly as it is.
			b.log.Debug().Str("job_id", jobID).Msg("backfill: job unknown to backend, skipping")
			continue
		}

		job := b.cache.Upsert(statusPatch(res))
		if err := b.resolver.ApplyJobToMessage(ctx, job); err != nil {
			b.log.Warn().Err(err).Str("job_id", jobID).Msg("backfill: message merge failed")
			continue
		}
		repaired++
		metrics.IncBackfillRepaired()
	}

	b.log.Info().Str("conversation_id", conversationID).Str("trigger", trigger).
		Int("repaired", repaired).Msg("backfill: pass finished")
	return repaired, nil
}

// statusPatch converts a REST status result into a cache merge patch,
// mirroring how realtime frames are converted.
func statusPatch(res adapter.JobStatusResult) model.JobPatch {
	p := model.JobPatch{
		ID:       res.JobID,
		Status:   model.StatusPtr(res.Status),
		Progress: model.IntPtr(res.Progress),
	}
	if res.QueuePosition >= 1 {
		p.QueuePosition = model.IntPtr(res.QueuePosition)
	}
	if res.ConversationID != "" {
		p.ConversationID = model.StrPtr(res.ConversationID)
	}
	if res.ImageURL != "" {
		p.ImageURL = model.StrPtr(res.ImageURL)
	}
	if res.Error != "" {
		p.Error = model.StrPtr(res.Error)
	}
	return p
}
