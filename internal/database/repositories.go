package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sproutlog/sproutlog/internal/models"
)

// ChatMessageRepositoryInterface defines the conversation store contract.
// This interface enables better testability by allowing mock
// implementations.
type ChatMessageRepositoryInterface interface {
	Save(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error)
	ListByProfile(ctx context.Context, profileID int64, limit int) ([]*models.ChatMessage, error)
	ListByProfileAndRange(ctx context.Context, profileID int64, from, to time.Time) ([]*models.ChatMessage, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// UsageRepositoryInterface defines the usage store contract
type UsageRepositoryInterface interface {
	Insert(ctx context.Context, usage *models.ModelUsage) error
}

// AttachmentRepositoryInterface defines the attachment metadata lookup
// contract
type AttachmentRepositoryInterface interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*models.AttachmentMeta, error)
}

// Ensure concrete types implement the interfaces
var (
	_ ChatMessageRepositoryInterface = (*ChatMessageRepository)(nil)
	_ UsageRepositoryInterface       = (*UsageRepository)(nil)
	_ AttachmentRepositoryInterface  = (*AttachmentRepository)(nil)
)
