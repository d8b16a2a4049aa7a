package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sproutlog/sproutlog/internal/models"
)

// ChatMessageRepository handles conversation history persistence
type ChatMessageRepository struct {
	db *DB
}

// NewChatMessageRepository creates a new chat message repository
func NewChatMessageRepository(db *DB) *ChatMessageRepository {
	return &ChatMessageRepository{db: db}
}

const chatMessageColumns = `id, profile_id, user_id, role, message_type, content,
	stage_metadata, extracted_records, thinking_process, interaction_type,
	confidence, attachment_ids, created_at, deleted_at`

// Save inserts a new chat message, assigning its identifier and creation
// timestamp. Soft-deleted rows are never overwritten; every turn is a new
// row.
func (r *ChatMessageRepository) Save(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	query := `
		INSERT INTO chat_messages (id, profile_id, user_id, role, message_type, content,
			stage_metadata, extracted_records, thinking_process, interaction_type,
			confidence, attachment_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at
	`

	var interactionType *string
	if msg.InteractionType != nil {
		s := string(*msg.InteractionType)
		interactionType = &s
	}

	err := r.db.QueryRowContext(ctx, query,
		msg.ID,
		msg.ProfileID,
		msg.UserID,
		msg.Role,
		msg.MessageType,
		msg.Content,
		nullableJSON(msg.StageMetadata),
		nullableJSON(msg.ExtractedRecords),
		nullableJSON(msg.ThinkingProcess),
		interactionType,
		msg.Confidence,
		pq.Array(msg.AttachmentIDs),
		time.Now().UTC(),
	).Scan(&msg.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to save chat message: %w", err)
	}

	return msg, nil
}

// GetByID retrieves a chat message by id, including soft-deleted rows
func (r *ChatMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	query := fmt.Sprintf(`SELECT %s FROM chat_messages WHERE id = $1`, chatMessageColumns)

	msg, err := scanChatMessage(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chat message not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat message: %w", err)
	}
	return msg, nil
}

// ListByProfile retrieves the most recent non-deleted messages for a
// profile, returned in creation order for history reconstruction. The
// limit trims the oldest turns, not the newest.
func (r *ChatMessageRepository) ListByProfile(ctx context.Context, profileID int64, limit int) ([]*models.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM chat_messages
		WHERE profile_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`, chatMessageColumns)

	messages, err := r.queryMessages(ctx, query, profileID, limit)
	if err != nil {
		return nil, err
	}
	reverseMessages(messages)
	return messages, nil
}

// reverseMessages flips a newest-first result set back into creation order
func reverseMessages(messages []*models.ChatMessage) {
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
}

// ListByProfileAndRange retrieves non-deleted messages for a profile
// within [from, to), in creation order.
func (r *ChatMessageRepository) ListByProfileAndRange(ctx context.Context, profileID int64, from, to time.Time) ([]*models.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM chat_messages
		WHERE profile_id = $1 AND deleted_at IS NULL
			AND created_at >= $2 AND created_at < $3
		ORDER BY created_at ASC
	`, chatMessageColumns)

	return r.queryMessages(ctx, query, profileID, from, to)
}

// SoftDelete marks a message deleted without removing the row
func (r *ChatMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE chat_messages SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to soft-delete chat message: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("chat message not found")
	}

	return nil
}

func (r *ChatMessageRepository) queryMessages(ctx context.Context, query string, args ...any) ([]*models.ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}

	return messages, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChatMessage(row rowScanner) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{}
	var stageMetadata, extractedRecords, thinkingProcess []byte
	var interactionType sql.NullString
	var confidence sql.NullFloat64
	var attachmentIDs pq.Int64Array
	var deletedAt sql.NullTime

	err := row.Scan(
		&msg.ID,
		&msg.ProfileID,
		&msg.UserID,
		&msg.Role,
		&msg.MessageType,
		&msg.Content,
		&stageMetadata,
		&extractedRecords,
		&thinkingProcess,
		&interactionType,
		&confidence,
		&attachmentIDs,
		&msg.CreatedAt,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	msg.StageMetadata = json.RawMessage(stageMetadata)
	msg.ExtractedRecords = json.RawMessage(extractedRecords)
	msg.ThinkingProcess = json.RawMessage(thinkingProcess)
	if interactionType.Valid {
		it := models.InteractionType(interactionType.String)
		msg.InteractionType = &it
	}
	if confidence.Valid {
		c := confidence.Float64
		msg.Confidence = &c
	}
	msg.AttachmentIDs = []int64(attachmentIDs)
	if msg.AttachmentIDs == nil {
		msg.AttachmentIDs = []int64{}
	}
	if deletedAt.Valid {
		msg.DeletedAt = &deletedAt.Time
	}

	return msg, nil
}

// nullableJSON maps empty raw JSON to NULL so the column stays queryable
func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
