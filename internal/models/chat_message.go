package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a conversational turn
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageType distinguishes plain chat text from event/suggestion turns
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeEvent      MessageType = "event"
	MessageTypeSuggestion MessageType = "suggestion"
)

// ChatMessage is one durable conversational turn. Invariant:
// ThinkingProcess, InteractionType and Confidence are populated only when
// Role is assistant. Soft-deletable; rows are retained after delete.
type ChatMessage struct {
	ID               uuid.UUID        `json:"id"`
	ProfileID        int64            `json:"profile_id"`
	UserID           int64            `json:"user_id"`
	Role             MessageRole      `json:"role"`
	MessageType      MessageType      `json:"message_type"`
	Content          string           `json:"content"`
	StageMetadata    json.RawMessage  `json:"stage_metadata,omitempty"`
	ExtractedRecords json.RawMessage  `json:"extracted_records,omitempty"`
	ThinkingProcess  json.RawMessage  `json:"thinking_process,omitempty"`
	InteractionType  *InteractionType `json:"interaction_type,omitempty"`
	Confidence       *float64         `json:"confidence,omitempty"`
	AttachmentIDs    []int64          `json:"attachment_ids"`
	CreatedAt        time.Time        `json:"created_at"`
	DeletedAt        *time.Time       `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the message has been soft-deleted
func (m *ChatMessage) IsDeleted() bool {
	return m.DeletedAt != nil
}
