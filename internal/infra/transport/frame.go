package transport

import (
	"encoding/json"
	"fmt"

	"chat-image-sync/internal/domain/model"
)

// Frame types the engine cares about. Anything else on the channel is
// ignored here.
const (
	FrameImageProgress = "image_progress"
	FrameNotification  = "notification"
)

// envelope is the discriminated wrapper around every realtime frame.
type envelope struct {
	Type string `json:"type"`
}

// ProgressEvent is the image_progress payload. Pointer fields distinguish
// "absent" from zero so partial frames merge without erasing state.
type ProgressEvent struct {
	JobID            string   `json:"job_id"`
	ConversationID   *string  `json:"conversation_id"`
	Status           *string  `json:"status"`
	Progress         *int     `json:"progress"`
	QueuePosition    *int     `json:"queue_position"`
	ImageURL         *string  `json:"image_url"`
	Error            *string  `json:"error"`
	Prompt           *string  `json:"prompt"`
	EstimatedSeconds *float64 `json:"estimated_seconds"`
}

// NotificationEvent is the notification payload.
type NotificationEvent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Level string `json:"level"`
}

func decodeEnvelope(data []byte) (string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return "", fmt.Errorf("decode envelope: missing type")
	}
	return env.Type, nil
}

// Patch converts the event into a cache merge patch. Unrecognized status
// strings are left out of the patch rather than failing the frame.
func (e ProgressEvent) Patch() model.JobPatch {
	p := model.JobPatch{
		ID:               e.JobID,
		ConversationID:   e.ConversationID,
		Prompt:           e.Prompt,
		Progress:         e.Progress,
		QueuePosition:    e.QueuePosition,
		EstimatedSeconds: e.EstimatedSeconds,
		ImageURL:         e.ImageURL,
		Error:            e.Error,
	}
	if e.Status != nil {
		switch s := model.JobStatus(*e.Status); s {
		case model.JobStatusQueued, model.JobStatusProcessing,
			model.JobStatusComplete, model.JobStatusError:
			p.Status = model.StatusPtr(s)
		}
	}
	return p
}
