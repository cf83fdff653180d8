package notify

import (
	"context"

	"chat-image-sync/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

var _ adapter.NotificationSink = (*LogSink)(nil)

// LogSink is the default NotificationSink: it only logs. A UI collaborator
// replaces it with something that actually renders toasts.
type LogSink struct {
	log *zerolog.Logger
}

func NewLogSink(logger *zerolog.Logger) *LogSink {
	return &LogSink{log: logger}
}

func (s *LogSink) Notify(ctx context.Context, n adapter.Notification) {
	s.log.Info().Str("level", n.Level).Str("title", n.Title).Str("body", n.Body).Msg("notification")
}
