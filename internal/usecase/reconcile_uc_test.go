package usecase

import (
	"context"
	"reflect"
	"testing"
	"time"

	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/infra/cache"
	"chat-image-sync/internal/infra/store"
	"chat-image-sync/internal/infra/transport"
)

func TestQueuedToCompleteLifecycle(t *testing.T) {
	ctx := context.Background()
	jobCache, messages, resolver := newTestResolver(t)
	pendingMessage(t, messages, "m1", "c1", "J1")

	pos := 3
	ev1 := progressEvent("J1", "queued", 0)
	ev1.QueuePosition = &pos
	resolver.HandleProgress(ctx, ev1)
	resolver.HandleProgress(ctx, progressEvent("J1", "processing", 45))

	url := "/img/a.png"
	ev3 := progressEvent("J1", "complete", 100)
	ev3.ImageURL = &url
	resolver.HandleProgress(ctx, ev3)

	msg, err := messages.FindByJobID(ctx, "J1")
	if err != nil {
		t.Fatalf("find message: %v", err)
	}
	if msg.Content.Kind != model.ContentImage || msg.Content.ImageURL != "/img/a.png" {
		t.Fatalf("final content = %+v", msg.Content)
	}
	if msg.ExtraMetadata[model.MetaJobStatus] != "complete" {
		t.Fatalf("metadata status = %v", msg.ExtraMetadata[model.MetaJobStatus])
	}

	if n := jobCache.ActiveCount(); n != 0 {
		t.Fatalf("active count = %d, want 0 after terminal event", n)
	}
}

func TestDuplicateEventIsNoOp(t *testing.T) {
	ctx := context.Background()
	_, messages, resolver := newTestResolver(t)
	pendingMessage(t, messages, "m1", "c1", "J1")

	ev := progressEvent("J1", "processing", 45)
	resolver.HandleProgress(ctx, ev)
	first, _ := messages.FindByJobID(ctx, "J1")

	resolver.HandleProgress(ctx, ev)
	second, _ := messages.FindByJobID(ctx, "J1")

	if !reflect.DeepEqual(first.ExtraMetadata, second.ExtraMetadata) {
		t.Fatalf("duplicate delivery changed metadata: %v vs %v", first.ExtraMetadata, second.ExtraMetadata)
	}
	if first.Content != second.Content {
		t.Fatalf("duplicate delivery changed content: %v vs %v", first.Content, second.Content)
	}
}

func TestErrorEventRewritesContent(t *testing.T) {
	ctx := context.Background()
	_, messages, resolver := newTestResolver(t)
	pendingMessage(t, messages, "m1", "c1", "J1")

	errText := "GPU quota exceeded"
	ev := progressEvent("J1", "error", 0)
	ev.Error = &errText
	resolver.HandleProgress(ctx, ev)

	msg, _ := messages.FindByJobID(ctx, "J1")
	if msg.Content.Kind != model.ContentImageError || msg.Content.ErrorText != errText {
		t.Fatalf("content = %+v", msg.Content)
	}
}

func TestEventualMatchingWithinRetryWindow(t *testing.T) {
	ctx := context.Background()
	jobCache := cache.NewJobCache(time.Minute, testLogger())
	messages := store.NewMemoryMessageStore()
	resolver := NewReconcileUseCase(jobCache, messages, 10*time.Millisecond, 3, testLogger())

	// Event arrives before its message exists: the race between the send
	// response and the first progress frame.
	resolver.HandleProgress(ctx, progressEvent("J1", "processing", 30))

	if jobCache.Get("J1") == nil {
		t.Fatal("cache upsert must succeed even with no message")
	}

	pendingMessage(t, messages, "m1", "c1", "J1")

	waitFor(t, time.Second, func() bool {
		msg, err := messages.FindByJobID(ctx, "J1")
		return err == nil && msg.ExtraMetadata[model.MetaJobStatus] == "processing"
	})
}

func TestUnmatchedEventDroppedAfterRetries(t *testing.T) {
	ctx := context.Background()
	jobCache := cache.NewJobCache(time.Minute, testLogger())
	messages := store.NewMemoryMessageStore()
	resolver := NewReconcileUseCase(jobCache, messages, time.Hour, 2, testLogger())
	resolver.after = immediate

	resolver.HandleProgress(ctx, progressEvent("J1", "processing", 30))

	// The retry queue must drain and give up; the job stays cached.
	waitFor(t, time.Second, func() bool {
		resolver.mu.Lock()
		defer resolver.mu.Unlock()
		return len(resolver.pending) == 0
	})
	if jobCache.Get("J1") == nil {
		t.Fatal("dropped event should still leave cache state")
	}
}

func TestIsolationAcrossJobs(t *testing.T) {
	ctx := context.Background()
	_, messages, resolver := newTestResolver(t)
	pendingMessage(t, messages, "mA", "c1", "JA")
	pendingMessage(t, messages, "mB", "c2", "JB")

	resolver.HandleProgress(ctx, progressEvent("JB", "processing", 77))

	msgA, _ := messages.FindByJobID(ctx, "JA")
	if _, ok := msgA.ExtraMetadata[model.MetaJobStatus]; ok {
		t.Fatalf("event for JB mutated JA's message: %v", msgA.ExtraMetadata)
	}
	msgB, _ := messages.FindByJobID(ctx, "JB")
	if msgB.ExtraMetadata[model.MetaJobProgress] != 77 {
		t.Fatalf("JB progress = %v", msgB.ExtraMetadata[model.MetaJobProgress])
	}
}

func TestUnrelatedMetadataSurvivesMerge(t *testing.T) {
	ctx := context.Background()
	_, messages, resolver := newTestResolver(t)
	msg := pendingMessage(t, messages, "m1", "c1", "J1")
	msg.MergeMetadata(map[string]any{"pinned": true})
	if err := messages.Save(ctx, msg); err != nil {
		t.Fatal(err)
	}

	resolver.HandleProgress(ctx, progressEvent("J1", "processing", 10))

	got, _ := messages.FindByJobID(ctx, "J1")
	if got.ExtraMetadata["pinned"] != true {
		t.Fatalf("unrelated metadata lost: %v", got.ExtraMetadata)
	}
}

func TestMalformedStatusIgnoredInPatch(t *testing.T) {
	bogus := "exploded"
	ev := transport.ProgressEvent{JobID: "J1", Status: &bogus}
	if p := ev.Patch(); p.Status != nil {
		t.Fatalf("unknown status should not map to a patch, got %v", *p.Status)
	}
}
