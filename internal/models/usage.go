package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OperationType tags the kind of model invocation a usage record covers
type OperationType string

const (
	OperationStructured        OperationType = "structured"
	OperationStreaming         OperationType = "streaming"
	OperationSimple            OperationType = "simple"
	OperationAttachmentParsing OperationType = "attachment_parsing"
	OperationClassification    OperationType = "classification"
	OperationExtraction        OperationType = "extraction"
)

// ModelUsage is one append-only record per model invocation. A single
// pipeline run may produce several: one per stage that calls the model.
// Invariants: TotalTokens = InputTokens + OutputTokens when both present;
// CachedTokens + DynamicTokens approximates InputTokens when CacheUsed.
type ModelUsage struct {
	ID              uuid.UUID       `json:"id"`
	ProfileID       int64           `json:"profile_id"`
	UserID          int64           `json:"user_id"`
	Operation       OperationType   `json:"operation"`
	Stage           string          `json:"stage"`
	Model           string          `json:"model"`
	InputTokens     int             `json:"input_tokens"`
	OutputTokens    int             `json:"output_tokens"`
	TotalTokens     int             `json:"total_tokens"`
	CacheUsed       bool            `json:"cache_used"`
	CachedTokens    int             `json:"cached_tokens"`
	DynamicTokens   int             `json:"dynamic_tokens"`
	EstimatedCost   float64         `json:"estimated_cost"`
	LatencyMS       int64           `json:"latency_ms"`
	Success         bool            `json:"success"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	HasAttachments  bool            `json:"has_attachments"`
	AttachmentCount int             `json:"attachment_count"`
	RequestPayload  json.RawMessage `json:"request_payload,omitempty"`
	ResponsePayload json.RawMessage `json:"response_payload,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	DeletedAt       *time.Time      `json:"deleted_at,omitempty"`
}

// SavingsPercent is the share of the prompt served from the provider's
// cache: cachedTokens / (cachedTokens + dynamicTokens) * 100. Returns 0
// when the denominator is zero.
func (u *ModelUsage) SavingsPercent() float64 {
	total := u.CachedTokens + u.DynamicTokens
	if total == 0 {
		return 0
	}
	return float64(u.CachedTokens) / float64(total) * 100
}
