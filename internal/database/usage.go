package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sproutlog/sproutlog/internal/models"
)

// UsageRepository persists per-invocation model usage records
type UsageRepository struct {
	db *DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Insert appends one usage record. Records are never updated after
// creation except for soft delete.
func (r *UsageRepository) Insert(ctx context.Context, usage *models.ModelUsage) error {
	if usage.ID == uuid.Nil {
		usage.ID = uuid.New()
	}

	query := `
		INSERT INTO ai_model_usage (id, profile_id, user_id, operation, stage, model,
			input_tokens, output_tokens, total_tokens, cache_used, cached_tokens,
			dynamic_tokens, estimated_cost, latency_ms, success, error_message,
			has_attachments, attachment_count, request_payload, response_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		usage.ID,
		usage.ProfileID,
		usage.UserID,
		usage.Operation,
		usage.Stage,
		usage.Model,
		usage.InputTokens,
		usage.OutputTokens,
		usage.TotalTokens,
		usage.CacheUsed,
		usage.CachedTokens,
		usage.DynamicTokens,
		usage.EstimatedCost,
		usage.LatencyMS,
		usage.Success,
		usage.ErrorMessage,
		usage.HasAttachments,
		usage.AttachmentCount,
		nullableJSON(usage.RequestPayload),
		nullableJSON(usage.ResponsePayload),
		time.Now().UTC(),
	).Scan(&usage.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}

	return nil
}

// UsageSummary aggregates usage rows for reporting
type UsageSummary struct {
	ProfileID    int64   `json:"profile_id"`
	Invocations  int     `json:"invocations"`
	Failures     int     `json:"failures"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	CachedTokens int64   `json:"cached_tokens"`
	TotalCost    float64 `json:"total_cost"`
}

// SummarizeByProfile aggregates non-deleted usage rows per profile since
// the given time, for the cost report.
func (r *UsageRepository) SummarizeByProfile(ctx context.Context, since time.Time) ([]*UsageSummary, error) {
	query := `
		SELECT profile_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE NOT success),
			COALESCE(SUM(input_tokens), 0),
			COALESCE(SUM(output_tokens), 0),
			COALESCE(SUM(cached_tokens), 0),
			COALESCE(SUM(estimated_cost), 0)
		FROM ai_model_usage
		WHERE deleted_at IS NULL AND created_at >= $1
		GROUP BY profile_id
		ORDER BY profile_id
	`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}
	defer rows.Close()

	var summaries []*UsageSummary
	for rows.Next() {
		s := &UsageSummary{}
		if err := rows.Scan(&s.ProfileID, &s.Invocations, &s.Failures,
			&s.InputTokens, &s.OutputTokens, &s.CachedTokens, &s.TotalCost); err != nil {
			return nil, fmt.Errorf("failed to scan usage summary: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage summaries: %w", err)
	}

	return summaries, nil
}

// ListByProfile retrieves non-deleted usage records for a profile, newest
// first.
func (r *UsageRepository) ListByProfile(ctx context.Context, profileID int64, limit int) ([]*models.ModelUsage, error) {
	query := `
		SELECT id, profile_id, user_id, operation, stage, model,
			input_tokens, output_tokens, total_tokens, cache_used, cached_tokens,
			dynamic_tokens, estimated_cost, latency_ms, success, error_message,
			has_attachments, attachment_count, request_payload, response_payload, created_at
		FROM ai_model_usage
		WHERE profile_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []*models.ModelUsage
	for rows.Next() {
		u := &models.ModelUsage{}
		var requestPayload, responsePayload []byte
		err := rows.Scan(
			&u.ID, &u.ProfileID, &u.UserID, &u.Operation, &u.Stage, &u.Model,
			&u.InputTokens, &u.OutputTokens, &u.TotalTokens, &u.CacheUsed, &u.CachedTokens,
			&u.DynamicTokens, &u.EstimatedCost, &u.LatencyMS, &u.Success, &u.ErrorMessage,
			&u.HasAttachments, &u.AttachmentCount, &requestPayload, &responsePayload, &u.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		u.RequestPayload = json.RawMessage(requestPayload)
		u.ResponsePayload = json.RawMessage(responsePayload)
		records = append(records, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage records: %w", err)
	}

	return records, nil
}
