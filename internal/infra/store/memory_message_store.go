package store

import (
	"context"
	"sync"

	"chat-image-sync/internal/domain"
	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/domain/ports/repository"
)

var _ repository.MessageStore = (*MemoryMessageStore)(nil)

// MemoryMessageStore keeps messages in process memory. It is the reference
// MessageStore for single-process deployments and the base for test fakes.
type MemoryMessageStore struct {
	mu   sync.Mutex
	byID map[string]*model.ChatMessage
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{byID: map[string]*model.ChatMessage{}}
}

func (s *MemoryMessageStore) Save(ctx context.Context, msg *model.ChatMessage) error {
	if msg == nil || msg.ID == "" {
		return domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := cloneMessage(msg)
	s.byID[msg.ID] = cp
	return nil
}

func (s *MemoryMessageStore) FindByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byID[id]; ok {
		return cloneMessage(m), nil
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryMessageStore) FindByJobID(ctx context.Context, jobID string) (*model.ChatMessage, error) {
	if jobID == "" {
		return nil, domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.byID {
		if id, ok := m.JobID(); ok && id == jobID {
			return cloneMessage(m), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *MemoryMessageStore) ListByConversation(ctx context.Context, conversationID string) ([]*model.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ChatMessage
	for _, m := range s.byID {
		if m.ConversationID == conversationID {
			out = append(out, cloneMessage(m))
		}
	}
	return out, nil
}

func (s *MemoryMessageStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func cloneMessage(m *model.ChatMessage) *model.ChatMessage {
	cp := *m
	if m.ExtraMetadata != nil {
		cp.ExtraMetadata = make(map[string]any, len(m.ExtraMetadata))
		for k, v := range m.ExtraMetadata {
			cp.ExtraMetadata[k] = v
		}
	}
	return &cp
}
