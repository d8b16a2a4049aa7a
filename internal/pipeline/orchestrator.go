package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/database"
	"github.com/sproutlog/sproutlog/internal/models"
	"github.com/sproutlog/sproutlog/internal/queue"
	"github.com/sproutlog/sproutlog/internal/services/ai"
)

// ErrEmptyInput is returned when a request carries neither text nor
// attachments. Empty input never reaches the model.
var ErrEmptyInput = errors.New("empty input: message and attachments are both empty")

// MemorySearcher retrieves a user's memories for prompt augmentation.
// Lookups are best-effort: implementations return nil instead of failing.
type MemorySearcher interface {
	SearchBestEffort(ctx context.Context, userID int64, query string, limit int) []string
}

// JobEnqueuer publishes side-effect jobs
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// memorySearchLimit caps how many memories augment one classification
const memorySearchLimit = 5

// Orchestrator runs one parent message through the full pipeline:
// attachment parsing, memory augmentation, classification, event
// extraction, and conversation persistence. Classification is the only
// fatal stage; everything else degrades.
type Orchestrator struct {
	provider ai.StageProvider
	chatRepo database.ChatMessageRepositoryInterface
	memory   MemorySearcher
	jobQueue JobEnqueuer
	logger   *zap.Logger
}

// NewOrchestrator creates a pipeline orchestrator. memory and jobQueue
// may be nil; the corresponding stages are skipped.
func NewOrchestrator(provider ai.StageProvider, chatRepo database.ChatMessageRepositoryInterface, memory MemorySearcher, jobQueue JobEnqueuer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		chatRepo: chatRepo,
		memory:   memory,
		jobQueue: jobQueue,
		logger:   logger,
	}
}

// ProcessInput runs the pipeline for one request. A nil error with
// Success=false means classification failed but the failure was handled:
// the user turn is persisted and the caller should relay the result.
func (o *Orchestrator) ProcessInput(ctx context.Context, req *models.ProcessingRequest) (*models.ProcessingResult, error) {
	if strings.TrimSpace(req.Message) == "" && !req.HasAttachments() {
		return nil, ErrEmptyInput
	}

	ctx = ai.WithProfileID(ctx, req.ProfileID)
	ctx = ai.WithUserID(ctx, req.UserID)

	// Stage 1: attachment parsing (best-effort, per attachment)
	var attachments []models.AttachmentContent
	if req.HasAttachments() {
		var err error
		attachments, err = o.provider.DescribeAttachments(ctx, req.AttachmentURLs)
		if err != nil {
			o.logger.Warn("attachment_parsing_degraded",
				zap.Int64("profile_id", req.ProfileID),
				zap.Int("requested", len(req.AttachmentURLs)),
				zap.Int("described", len(attachments)),
				zap.Error(err),
			)
		}
	}

	// Memory augmentation (best-effort)
	var memories []string
	if o.memory != nil && strings.TrimSpace(req.Message) != "" {
		memories = o.memory.SearchBestEffort(ctx, req.UserID, req.Message, memorySearchLimit)
	}

	clientTime := ""
	if !req.ClientTime.IsZero() {
		clientTime = req.ClientTime.Format(time.RFC3339)
	}

	// Stage 2: classification (fatal)
	classification, classErr := o.provider.Classify(ctx, ai.ClassifyInput{
		Message:     req.Message,
		Attachments: attachments,
		BabyContext: req.BabyContext,
		ChatHistory: req.ChatHistory,
		Memories:    memories,
		ClientTime:  clientTime,
	})

	// The user turn is persisted regardless of the classification outcome
	o.persistUserTurn(ctx, req)

	if classErr != nil {
		o.logger.Error("classification_failed",
			zap.Int64("profile_id", req.ProfileID),
			zap.Error(classErr),
		)
		return &models.ProcessingResult{
			Success: false,
			Message: "Sorry, I couldn't process that message. Please try again.",
			Error:   classErr.Error(),
		}, nil
	}

	result := &models.ProcessingResult{
		Success:        true,
		Message:        classification.Reply,
		Classification: classification,
	}

	// Stage 3: event extraction, only for data-recording intents
	// (best-effort)
	if classification.Intent.TriggersExtraction() {
		extraction, err := o.provider.ExtractEvents(ctx, ai.ExtractInput{
			Message:     req.Message,
			Attachments: attachments,
			BabyContext: req.BabyContext,
			Intent:      classification.Intent,
			ClientTime:  clientTime,
		})
		if err != nil {
			o.logger.Warn("extraction_failed",
				zap.Int64("profile_id", req.ProfileID),
				zap.Error(err),
			)
		} else {
			result.Extraction = extraction
		}
	}

	o.persistAssistantTurn(ctx, req, result)
	o.enqueueMemoryAdd(ctx, req, result)

	return result, nil
}

// persistUserTurn saves the parent's message. Persistence failures are
// logged, never fatal.
func (o *Orchestrator) persistUserTurn(ctx context.Context, req *models.ProcessingRequest) {
	msg := &models.ChatMessage{
		ProfileID:   req.ProfileID,
		UserID:      req.UserID,
		Role:        models.RoleUser,
		MessageType: models.MessageTypeText,
		Content:     req.Message,
	}
	if len(req.AttachmentIDs) > 0 {
		msg.AttachmentIDs = req.AttachmentIDs
	}

	if _, err := o.chatRepo.Save(ctx, msg); err != nil {
		o.logger.Error("user_turn_persist_failed",
			zap.Int64("profile_id", req.ProfileID),
			zap.Error(err),
		)
	}
}

// persistAssistantTurn saves the assistant reply with stage metadata.
// Only called on successful classification.
func (o *Orchestrator) persistAssistantTurn(ctx context.Context, req *models.ProcessingRequest, result *models.ProcessingResult) {
	msg := &models.ChatMessage{
		ProfileID:   req.ProfileID,
		UserID:      models.SystemUserID,
		Role:        models.RoleAssistant,
		MessageType: models.MessageTypeText,
		Content:     result.Message,
	}

	if result.Classification != nil {
		intent := result.Classification.Intent
		confidence := result.Classification.Confidence
		msg.InteractionType = &intent
		msg.Confidence = &confidence
		if result.Classification.Thinking != "" {
			if raw, err := json.Marshal(result.Classification.Thinking); err == nil {
				msg.ThinkingProcess = raw
			}
		}
		if raw, err := json.Marshal(result.Classification); err == nil {
			msg.StageMetadata = raw
		}
	}
	if result.Extraction != nil {
		if raw, err := json.Marshal(result.Extraction); err == nil {
			msg.ExtractedRecords = raw
		}
	}
	if len(result.Events()) > 0 {
		msg.MessageType = models.MessageTypeEvent
	}

	if _, err := o.chatRepo.Save(ctx, msg); err != nil {
		o.logger.Error("assistant_turn_persist_failed",
			zap.Int64("profile_id", req.ProfileID),
			zap.Error(err),
		)
	}
}

// memoryAddPayload is the memory_add job body
type memoryAddPayload struct {
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// enqueueMemoryAdd publishes the conversation turn for memory storage.
// Fire and forget: enqueue failure never alters the pipeline result.
func (o *Orchestrator) enqueueMemoryAdd(ctx context.Context, req *models.ProcessingRequest, result *models.ProcessingResult) {
	if o.jobQueue == nil || !result.Success {
		return
	}

	var metadata json.RawMessage
	if result.Classification != nil {
		metadata, _ = json.Marshal(map[string]string{
			"intent": string(result.Classification.Intent),
		})
	}

	text := fmt.Sprintf("Parent: %s\nAssistant: %s", req.Message, result.Message)
	payload, err := json.Marshal(memoryAddPayload{Text: text, Metadata: metadata})
	if err != nil {
		return
	}

	job := queue.NewJob(queue.JobTypeMemoryAdd, req.ProfileID, req.UserID, payload)
	if err := o.jobQueue.Enqueue(ctx, job); err != nil {
		o.logger.Warn("memory_add_enqueue_failed",
			zap.Int64("profile_id", req.ProfileID),
			zap.Error(err),
		)
	}
}
