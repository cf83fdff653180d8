package adapter

import "context"

// Notification is a server-pushed user notice carried on the realtime
// channel alongside progress frames.
type Notification struct {
	Title string
	Body  string
	Level string // "info" | "warn" | "error"
}

// NotificationSink receives notification frames. The engine forwards them
// verbatim; presentation is a collaborator concern.
type NotificationSink interface {
	Notify(ctx context.Context, n Notification)
}
