package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/domain/ports/adapter"
	"chat-image-sync/internal/infra/cache"
	"chat-image-sync/internal/infra/store"
	"chat-image-sync/internal/infra/transport"

	"github.com/rs/zerolog"
)

// ---- Fakes ----

type fakeJobService struct {
	mu       sync.Mutex
	statuses map[string]adapter.JobStatusResult
	cancels  map[string]adapter.CancelResult
	cancelErr error
	statusCalls []string
}

func newFakeJobService() *fakeJobService {
	return &fakeJobService{
		statuses: map[string]adapter.JobStatusResult{},
		cancels:  map[string]adapter.CancelResult{},
	}
}

func (f *fakeJobService) Status(ctx context.Context, jobID string) (adapter.JobStatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, jobID)
	if res, ok := f.statuses[jobID]; ok {
		return res, nil
	}
	return adapter.JobStatusResult{JobID: jobID, Known: false}, nil
}

func (f *fakeJobService) Cancel(ctx context.Context, jobID string) (adapter.CancelResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return adapter.CancelResult{}, f.cancelErr
	}
	if res, ok := f.cancels[jobID]; ok {
		return res, nil
	}
	return adapter.CancelResult{Success: true}, nil
}

// ---- Helpers ----

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// immediate replaces the retry/grace delay with a fired channel so tests do
// not wait out real clock time.
func immediate(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func newTestResolver(t *testing.T) (*cache.JobCache, *store.MemoryMessageStore, *ReconcileUseCase) {
	t.Helper()
	jobCache := cache.NewJobCache(time.Minute, testLogger())
	messages := store.NewMemoryMessageStore()
	resolver := NewReconcileUseCase(jobCache, messages, 5*time.Millisecond, 3, testLogger())
	return jobCache, messages, resolver
}

func pendingMessage(t *testing.T, messages *store.MemoryMessageStore, msgID, convID, jobID string) *model.ChatMessage {
	t.Helper()
	msg := model.NewAssistantMessage(msgID, convID, model.PendingImageContent("prompt"))
	msg.MergeMetadata(map[string]any{model.MetaJobID: jobID})
	if err := messages.Save(context.Background(), msg); err != nil {
		t.Fatalf("save message: %v", err)
	}
	return msg
}

func progressEvent(jobID, status string, progress int) transport.ProgressEvent {
	return transport.ProgressEvent{
		JobID:    jobID,
		Status:   &status,
		Progress: &progress,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
