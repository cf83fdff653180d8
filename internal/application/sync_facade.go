package application

import (
	"context"
	"fmt"

	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/domain/ports/repository"
	"chat-image-sync/internal/infra/cache"
	"chat-image-sync/internal/usecase"

	"github.com/google/uuid"
)

// SyncFacade is the surface consumed by UI collaborators. It composes the
// cache and usecases; callers never touch those directly.
type SyncFacade struct {
	Cache      *cache.JobCache
	Messages   repository.MessageStore
	CancelUC   *usecase.CancelUseCase
	BackfillUC *usecase.BackfillUseCase
}

func NewSyncFacade(jobCache *cache.JobCache, messages repository.MessageStore, cancelUC *usecase.CancelUseCase, backfillUC *usecase.BackfillUseCase) *SyncFacade {
	return &SyncFacade{
		Cache:      jobCache,
		Messages:   messages,
		CancelUC:   cancelUC,
		BackfillUC: backfillUC,
	}
}

// CreatePendingMessage materializes the assistant-side placeholder right
// after a send. The id is a provisional client uuid; the job id arrives
// separately in the send response and is bound with BindJob.
func (f *SyncFacade) CreatePendingMessage(ctx context.Context, conversationID, prompt string) (*model.ChatMessage, error) {
	msg := model.NewAssistantMessage(uuid.NewString(), conversationID, model.PendingImageContent(prompt))
	if err := f.Messages.Save(ctx, msg); err != nil {
		return nil, fmt.Errorf("create pending message: %w", err)
	}
	return msg, nil
}

// BindJob attaches the backend-issued job id to a message, making it
// eligible for reconciliation. Any progress events already queued for that
// job id will land on their next retry.
func (f *SyncFacade) BindJob(ctx context.Context, messageID, jobID string) error {
	msg, err := f.Messages.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("bind job %s: %w", jobID, err)
	}
	msg.MergeMetadata(map[string]any{model.MetaJobID: jobID})
	if err := f.Messages.Save(ctx, msg); err != nil {
		return fmt.Errorf("bind job %s: %w", jobID, err)
	}
	return nil
}

// GetJob returns a copy of the cached job, or nil when unknown.
func (f *SyncFacade) GetJob(id string) *model.Job { return f.Cache.Get(id) }

// ListActiveJobs returns copies of all non-terminal jobs.
func (f *SyncFacade) ListActiveJobs() []*model.Job { return f.Cache.ListActive() }

// ActiveJobCount counts non-terminal jobs.
func (f *SyncFacade) ActiveJobCount() int { return f.Cache.ActiveCount() }

// Subscribe registers a callback fired synchronously after every cache
// mutation; subscribers re-read state. Returns the unsubscribe func.
func (f *SyncFacade) Subscribe(fn func()) func() { return f.Cache.Subscribe(fn) }

// Cancel cancels a queued job, deletes its message after the grace delay and
// drops it from the cache.
func (f *SyncFacade) Cancel(ctx context.Context, jobID string) error {
	if f.CancelUC == nil {
		return fmt.Errorf("cancel usecase not available")
	}
	return f.CancelUC.Cancel(ctx, jobID)
}

// Backfill runs a manual repair pass over one conversation.
func (f *SyncFacade) Backfill(ctx context.Context, conversationID string) (int, error) {
	if f.BackfillUC == nil {
		return 0, fmt.Errorf("backfill usecase not available")
	}
	return f.BackfillUC.Run(ctx, conversationID, "manual")
}
