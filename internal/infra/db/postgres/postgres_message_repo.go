package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"chat-image-sync/internal/domain"
	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/domain/ports/repository"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

var _ repository.MessageStore = (*messageRepo)(nil)

type messageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *messageRepo {
	return &messageRepo{pool: pool}
}

// EnsureSchema creates the chat_messages table and the job-id index used by
// FindByJobID.
func (r *messageRepo) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chat_messages (
  id              TEXT PRIMARY KEY,
  conversation_id TEXT NOT NULL DEFAULT '',
  role            TEXT NOT NULL DEFAULT 'assistant',
  content         JSONB NOT NULL DEFAULT '{}'::jsonb,
  extra_metadata  JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at      TIMESTAMPTZ NOT NULL,
  updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chat_messages_job_id
  ON chat_messages ((extra_metadata->>'job_id'));
CREATE INDEX IF NOT EXISTS idx_chat_messages_conversation
  ON chat_messages (conversation_id);`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *messageRepo) Save(ctx context.Context, msg *model.ChatMessage) error {
	if msg == nil || msg.ID == "" {
		return domain.ErrInvalidArgument
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	msg.UpdatedAt = time.Now()

	content, err := json.Marshal(msg.Content)
	if err != nil {
		return err
	}
	meta := msg.ExtraMetadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO chat_messages (id, conversation_id, role, content, extra_metadata, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
  conversation_id = EXCLUDED.conversation_id,
  content = EXCLUDED.content,
  extra_metadata = EXCLUDED.extra_metadata,
  updated_at = EXCLUDED.updated_at;`

	_, err = r.pool.Exec(ctx, q, msg.ID, msg.ConversationID, msg.Role, content, metaJSON, msg.CreatedAt, msg.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errors.New("save message: " + pgErr.Message)
	}
	return err
}

const selectCols = `id, conversation_id, role, content, extra_metadata, created_at, updated_at`

func (r *messageRepo) FindByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	const q = `SELECT ` + selectCols + ` FROM chat_messages WHERE id = $1;`
	return r.scanOne(r.pool.QueryRow(ctx, q, id))
}

func (r *messageRepo) FindByJobID(ctx context.Context, jobID string) (*model.ChatMessage, error) {
	if jobID == "" {
		return nil, domain.ErrInvalidArgument
	}
	const q = `SELECT ` + selectCols + ` FROM chat_messages WHERE extra_metadata->>'job_id' = $1 LIMIT 1;`
	return r.scanOne(r.pool.QueryRow(ctx, q, jobID))
}

func (r *messageRepo) ListByConversation(ctx context.Context, conversationID string) ([]*model.ChatMessage, error) {
	const q = `SELECT ` + selectCols + ` FROM chat_messages WHERE conversation_id = $1 ORDER BY created_at;`
	rows, err := r.pool.Query(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.ChatMessage
	for rows.Next() {
		msg, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

func (r *messageRepo) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM chat_messages WHERE id = $1;`
	tag, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *messageRepo) scanOne(row rowScanner) (*model.ChatMessage, error) {
	var (
		msg      model.ChatMessage
		content  []byte
		metaJSON []byte
	)
	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &content, &metaJSON, &msg.CreatedAt, &msg.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(content, &msg.Content); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metaJSON, &msg.ExtraMetadata); err != nil {
		return nil, err
	}
	return &msg, nil
}
