package store

import (
	"context"
	"errors"
	"testing"

	"chat-image-sync/internal/domain"
	"chat-image-sync/internal/domain/model"
)

func TestSaveFindDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryMessageStore()

	msg := model.NewAssistantMessage("m1", "c1", model.PendingImageContent("a dog"))
	msg.MergeMetadata(map[string]any{model.MetaJobID: "J1"})
	if err := s.Save(ctx, msg); err != nil {
		t.Fatalf("save: %v", err)
	}

	byID, err := s.FindByID(ctx, "m1")
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	byJob, err := s.FindByJobID(ctx, "J1")
	if err != nil {
		t.Fatalf("find by job: %v", err)
	}
	if byID.ID != byJob.ID {
		t.Fatal("index mismatch")
	}

	if err := s.Delete(ctx, "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.FindByJobID(ctx, "J1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "m1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double delete err = %v", err)
	}
}

func TestListByConversation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryMessageStore()
	for _, m := range []*model.ChatMessage{
		model.NewAssistantMessage("a", "c1", model.TextContent("one")),
		model.NewAssistantMessage("b", "c1", model.TextContent("two")),
		model.NewAssistantMessage("c", "c2", model.TextContent("other")),
	} {
		if err := s.Save(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.ListByConversation(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestStoredMessagesAreIsolatedCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryMessageStore()
	msg := model.NewAssistantMessage("m1", "c1", model.TextContent("hi"))
	if err := s.Save(ctx, msg); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy after save must not affect the store.
	msg.MergeMetadata(map[string]any{"dirty": true})

	got, _ := s.FindByID(ctx, "m1")
	if _, ok := got.ExtraMetadata["dirty"]; ok {
		t.Fatal("store shares memory with caller")
	}

	// Mutating a fetched copy must not affect the store either.
	got.MergeMetadata(map[string]any{"dirty": true})
	again, _ := s.FindByID(ctx, "m1")
	if _, ok := again.ExtraMetadata["dirty"]; ok {
		t.Fatal("fetched copy shares memory with store")
	}
}
