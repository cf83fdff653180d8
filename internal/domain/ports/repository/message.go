package repository

import (
	"context"

	"chat-image-sync/internal/domain/model"
)

// -----------------------------
// Chat messages
// -----------------------------

// MessageStore is the external message collaborator. The sync engine only
// reads, merges and deletes through this port; rendering layers own the rest
// of the message lifecycle.
type MessageStore interface {
	Save(ctx context.Context, msg *model.ChatMessage) error
	FindByID(ctx context.Context, id string) (*model.ChatMessage, error)
	// FindByJobID returns the message whose extra metadata references jobID,
	// or domain.ErrNotFound.
	FindByJobID(ctx context.Context, jobID string) (*model.ChatMessage, error)
	ListByConversation(ctx context.Context, conversationID string) ([]*model.ChatMessage, error)
	Delete(ctx context.Context, id string) error
}
