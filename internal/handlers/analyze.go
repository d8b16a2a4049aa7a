package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/database"
	"github.com/sproutlog/sproutlog/internal/models"
	"github.com/sproutlog/sproutlog/internal/pipeline"
	"github.com/sproutlog/sproutlog/internal/queue"
	"github.com/sproutlog/sproutlog/internal/request"
	"github.com/sproutlog/sproutlog/internal/services/forwarder"
	"github.com/sproutlog/sproutlog/internal/validation"
)

const (
	// MaxMessageLength is the maximum length for a parent message
	MaxMessageLength = 10000
	// MaxAttachmentsPerMessage caps attachment URLs per request
	MaxAttachmentsPerMessage = 10
)

// Processor runs one message through the chat pipeline
type Processor interface {
	ProcessInput(ctx context.Context, req *models.ProcessingRequest) (*models.ProcessingResult, error)
}

// JobEnqueuer publishes side-effect jobs
type JobEnqueuer interface {
	Enqueue(ctx context.Context, job *queue.Job) error
}

// ChatHandler handles chat message processing requests
type ChatHandler struct {
	processor   Processor
	chatRepo    database.ChatMessageRepositoryInterface
	attachments database.AttachmentRepositoryInterface
	jobQueue    JobEnqueuer
	logger      *zap.Logger
}

// NewChatHandler creates a new chat handler. attachments may be nil;
// attachment ID resolution is then skipped.
func NewChatHandler(processor Processor, chatRepo database.ChatMessageRepositoryInterface, attachments database.AttachmentRepositoryInterface, jobQueue JobEnqueuer, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		processor:   processor,
		chatRepo:    chatRepo,
		attachments: attachments,
		jobQueue:    jobQueue,
		logger:      logger,
	}
}

// RegisterRoutes registers chat routes on the given router
// The router should already have the /profiles/{profileID} prefix
func (h *ChatHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/messages/analyze", h.Analyze).Methods("POST")
	r.HandleFunc("/messages", h.ListMessages).Methods("GET")
	r.HandleFunc("/messages/{id}", h.DeleteMessage).Methods("DELETE")
}

// AnalyzeRequest represents a message analysis request
type AnalyzeRequest struct {
	Message        string   `json:"message" validate:"max=10000"`
	AttachmentURLs []string `json:"attachmentUrls,omitempty" validate:"max=10,dive,url"`
	AttachmentIDs  []int64  `json:"attachmentIds,omitempty" validate:"max=10,dive,gt=0"`
	BabyContext    string   `json:"babyContext,omitempty"`
	ChatHistory    string   `json:"chatHistory,omitempty"`
	ClientTime     string   `json:"clientTime,omitempty"`
}

// Analyze runs one parent message through the pipeline and relays the
// result. Extracted events are handed to the queue for forwarding; a
// failed enqueue never alters the response.
func (h *ChatHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	profileID, ok := profileIDFromPath(w, r)
	if !ok {
		return
	}

	var req AnalyzeRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid JSON body")
		return
	}

	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	// Callers without an authenticated user are attributed to the system
	// user
	userID := models.SystemUserID
	if user := request.UserFromContext(r); user != nil {
		userID = user.ID
	}

	var clientTime time.Time
	if req.ClientTime != "" {
		parsed, err := time.Parse(time.RFC3339, req.ClientTime)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "clientTime must be RFC3339")
			return
		}
		clientTime = parsed
	}

	attachmentURLs := h.resolveAttachments(r.Context(), profileID, &req)

	result, err := h.processor.ProcessInput(r.Context(), &models.ProcessingRequest{
		Message:        validation.SanitizeText(req.Message),
		AttachmentURLs: attachmentURLs,
		AttachmentIDs:  req.AttachmentIDs,
		ProfileID:      profileID,
		UserID:         userID,
		BabyContext:    req.BabyContext,
		ChatHistory:    req.ChatHistory,
		ClientTime:     clientTime,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyInput) {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Message and attachments cannot both be empty")
			return
		}
		h.logger.Error("analyze_failed",
			zap.Int64("profile_id", profileID),
			zap.Error(err),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to process message")
		return
	}

	if result.Success && len(result.Events()) > 0 {
		h.enqueueForwarding(r.Context(), profileID, userID, req.Message, result)
	}

	respondJSON(w, http.StatusOK, result)
}

// resolveAttachments merges direct attachment URLs with URLs looked up
// from previously uploaded attachment IDs. Lookup failures degrade the
// request to its direct URLs rather than failing it.
func (h *ChatHandler) resolveAttachments(ctx context.Context, profileID int64, req *AnalyzeRequest) []string {
	urls := req.AttachmentURLs
	if len(req.AttachmentIDs) == 0 || h.attachments == nil {
		return urls
	}

	metas, err := h.attachments.GetByIDs(ctx, req.AttachmentIDs)
	if err != nil {
		h.logger.Warn("attachment_lookup_failed",
			zap.Int64("profile_id", profileID),
			zap.Int("attachment_count", len(req.AttachmentIDs)),
			zap.Error(err),
		)
		return urls
	}

	for _, meta := range metas {
		if meta.URL != "" {
			urls = append(urls, meta.URL)
		}
	}
	return urls
}

// enqueueForwarding publishes a forward_events job. Best-effort: failure
// is logged and the events stay visible in the stored conversation.
func (h *ChatHandler) enqueueForwarding(ctx context.Context, profileID, userID int64, userMessage string, result *models.ProcessingResult) {
	if h.jobQueue == nil {
		return
	}

	payload, err := json.Marshal(forwarder.ForwardPayload{
		ProfileID:   profileID,
		UserMessage: userMessage,
		AIMessage:   result.Message,
		Events:      result.Events(),
	})
	if err != nil {
		h.logger.Error("forward_payload_marshal_failed", zap.Error(err))
		return
	}

	job := queue.NewJob(queue.JobTypeForwardEvents, profileID, userID, payload)
	if err := h.jobQueue.Enqueue(ctx, job); err != nil {
		h.logger.Warn("forward_events_enqueue_failed",
			zap.Int64("profile_id", profileID),
			zap.Int("event_count", len(result.Events())),
			zap.Error(err),
		)
	}
}

// profileIDFromPath extracts and validates the profileID path variable
func profileIDFromPath(w http.ResponseWriter, r *http.Request) (int64, bool) {
	vars := mux.Vars(r)
	profileID, err := strconv.ParseInt(vars["profileID"], 10, 64)
	if err != nil || profileID <= 0 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid profile ID")
		return 0, false
	}
	return profileID, true
}
