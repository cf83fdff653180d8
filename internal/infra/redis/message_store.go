package redis

import (
	"context"
	"encoding/json"
	"time"

	"chat-image-sync/internal/domain"
	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/domain/ports/repository"
)

var _ repository.MessageStore = (*MessageStore)(nil)

// MessageStore persists chat messages in redis: one hash per conversation
// keyed by message id, plus a job-id index so FindByJobID is a single
// lookup instead of a scan.
type MessageStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewMessageStore(client RedisClient, ttl time.Duration) *MessageStore {
	return &MessageStore{client: client, ttl: ttl}
}

func convKey(conversationID string) string { return "conv_messages:" + conversationID }
func msgKey(id string) string              { return "message:" + id }
func jobIdxKey(jobID string) string        { return "job_message:" + jobID }

func (s *MessageStore) Save(ctx context.Context, msg *model.ChatMessage) error {
	if msg == nil || msg.ID == "" {
		return domain.ErrInvalidArgument
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, msgKey(msg.ID), data, s.ttl); err != nil {
		return err
	}
	if msg.ConversationID != "" {
		if err := s.client.HSet(ctx, convKey(msg.ConversationID), msg.ID, "1"); err != nil {
			return err
		}
	}
	if jobID, ok := msg.JobID(); ok {
		if err := s.client.Set(ctx, jobIdxKey(jobID), msg.ID, s.ttl); err != nil {
			return err
		}
	}
	return nil
}

func (s *MessageStore) FindByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	data, err := s.client.Get(ctx, msgKey(id))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	var msg model.ChatMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageStore) FindByJobID(ctx context.Context, jobID string) (*model.ChatMessage, error) {
	if jobID == "" {
		return nil, domain.ErrInvalidArgument
	}
	msgID, err := s.client.Get(ctx, jobIdxKey(jobID))
	if err != nil {
		if IsNil(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return s.FindByID(ctx, msgID)
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string) ([]*model.ChatMessage, error) {
	ids, err := s.client.HGetAll(ctx, convKey(conversationID))
	if err != nil {
		return nil, err
	}
	out := make([]*model.ChatMessage, 0, len(ids))
	for id := range ids {
		msg, err := s.FindByID(ctx, id)
		if err != nil {
			if err == domain.ErrNotFound {
				// Expired message body; drop the stale index entry.
				_ = s.client.HDel(ctx, convKey(conversationID), id)
				continue
			}
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) error {
	msg, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if jobID, ok := msg.JobID(); ok {
		_ = s.client.Del(ctx, jobIdxKey(jobID))
	}
	if msg.ConversationID != "" {
		_ = s.client.HDel(ctx, convKey(msg.ConversationID), id)
	}
	return s.client.Del(ctx, msgKey(id))
}
