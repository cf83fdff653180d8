package model

import (
	"strings"
	"time"
)

// Metadata keys written by the sync engine into ChatMessage.ExtraMetadata.
// Other keys in the map belong to other subsystems and are preserved on merge.
const (
	MetaJobID         = "job_id"
	MetaJobStatus     = "job_status"
	MetaJobProgress   = "job_progress"
	MetaQueuePosition = "queue_position"
)

type ContentKind string

const (
	ContentText         ContentKind = "text"
	ContentImagePending ContentKind = "image_pending"
	ContentImage        ContentKind = "image"
	ContentImageError   ContentKind = "image_error"
)

// MessageContent is a tagged variant replacing the legacy sentinel-marker
// encoding of job state inside free text. Exactly the fields relevant to
// Kind are set.
type MessageContent struct {
	Kind      ContentKind `json:"kind"`
	Text      string      `json:"text,omitempty"`
	ImageURL  string      `json:"image_url,omitempty"`
	ErrorText string      `json:"error_text,omitempty"`
	Progress  int         `json:"progress,omitempty"`
}

func TextContent(text string) MessageContent {
	return MessageContent{Kind: ContentText, Text: text}
}

func PendingImageContent(prompt string) MessageContent {
	return MessageContent{Kind: ContentImagePending, Text: prompt}
}

func ImageContent(url string) MessageContent {
	return MessageContent{Kind: ContentImage, ImageURL: url, Progress: 100}
}

func ImageErrorContent(errText string) MessageContent {
	return MessageContent{Kind: ContentImageError, ErrorText: errText}
}

// ChatMessage is one message within a conversation. A message may reference a
// Job through ExtraMetadata[MetaJobID]; message and job materialize
// independently and are bound by the resolver.
type ChatMessage struct {
	ID             string
	ConversationID string
	Role           string // "user" | "assistant" | "system"
	Content        MessageContent
	ExtraMetadata  map[string]any
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func NewAssistantMessage(id, conversationID string, content MessageContent) *ChatMessage {
	now := time.Now()
	return &ChatMessage{
		ID:             id,
		ConversationID: conversationID,
		Role:           "assistant",
		Content:        content,
		ExtraMetadata:  map[string]any{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// JobID returns the referenced job id, if any.
func (m *ChatMessage) JobID() (string, bool) {
	if m.ExtraMetadata == nil {
		return "", false
	}
	id, ok := m.ExtraMetadata[MetaJobID].(string)
	return id, ok && id != ""
}

// MergeMetadata shallow-merges kv into ExtraMetadata, preserving unrelated
// keys.
func (m *ChatMessage) MergeMetadata(kv map[string]any) {
	if m.ExtraMetadata == nil {
		m.ExtraMetadata = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		m.ExtraMetadata[k] = v
	}
	m.UpdatedAt = time.Now()
}

// Legacy wire markers. Some stores persist message content as plain text;
// these keep that format readable and writable.
const (
	legacyPendingMarker = "[IMAGE_PENDING]"
	legacyImagePrefix   = "IMAGE_PATH:"
)

// EncodeLegacy renders content in the plain-text marker format.
func (c MessageContent) EncodeLegacy() string {
	switch c.Kind {
	case ContentImagePending:
		if c.Text == "" {
			return legacyPendingMarker
		}
		return legacyPendingMarker + " " + c.Text
	case ContentImage:
		return legacyImagePrefix + c.ImageURL
	case ContentImageError:
		return "Image generation failed: " + c.ErrorText
	default:
		return c.Text
	}
}

// DecodeLegacy parses the plain-text marker format back into a variant.
func DecodeLegacy(text string) MessageContent {
	switch {
	case strings.HasPrefix(text, legacyPendingMarker):
		rest := strings.TrimSpace(strings.TrimPrefix(text, legacyPendingMarker))
		return MessageContent{Kind: ContentImagePending, Text: rest}
	case strings.HasPrefix(text, legacyImagePrefix):
		return ImageContent(strings.TrimPrefix(text, legacyImagePrefix))
	default:
		return TextContent(text)
	}
}
