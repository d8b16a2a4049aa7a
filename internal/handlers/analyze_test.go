package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/models"
	"github.com/sproutlog/sproutlog/internal/pipeline"
	"github.com/sproutlog/sproutlog/internal/queue"
)

type mockProcessor struct {
	processFunc func(ctx context.Context, req *models.ProcessingRequest) (*models.ProcessingResult, error)
	lastRequest *models.ProcessingRequest
}

func (m *mockProcessor) ProcessInput(ctx context.Context, req *models.ProcessingRequest) (*models.ProcessingResult, error) {
	m.lastRequest = req
	if m.processFunc != nil {
		return m.processFunc(ctx, req)
	}
	return &models.ProcessingResult{Success: true, Message: "ok"}, nil
}

type mockChatRepo struct {
	getFunc    func(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error)
	listFunc   func(ctx context.Context, profileID int64, limit int) ([]*models.ChatMessage, error)
	deleteFunc func(ctx context.Context, id uuid.UUID) error
}

func (m *mockChatRepo) Save(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	return msg, nil
}

func (m *mockChatRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ChatMessage, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, errors.New("not found")
}

func (m *mockChatRepo) ListByProfile(ctx context.Context, profileID int64, limit int) ([]*models.ChatMessage, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, profileID, limit)
	}
	return nil, nil
}

func (m *mockChatRepo) ListByProfileAndRange(ctx context.Context, profileID int64, from, to time.Time) ([]*models.ChatMessage, error) {
	return nil, nil
}

func (m *mockChatRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

type mockEnqueuer struct {
	enqueueFunc func(ctx context.Context, job *queue.Job) error
	jobs        []*queue.Job
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	m.jobs = append(m.jobs, job)
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, job)
	}
	return nil
}

func newTestRouter(h *ChatHandler) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r.PathPrefix("/profiles/{profileID}").Subrouter())
	return r
}

func postAnalyze(t *testing.T, router *mux.Router, profileID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/profiles/"+profileID+"/messages/analyze", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEnqueuesForwarding(t *testing.T) {
	processor := &mockProcessor{
		processFunc: func(ctx context.Context, req *models.ProcessingRequest) (*models.ProcessingResult, error) {
			return &models.ProcessingResult{
				Success: true,
				Message: "Logged!",
				Classification: &models.ClassificationResult{
					Intent: models.InteractionDataRecording, Confidence: 0.9, Reply: "Logged!",
				},
				Extraction: &models.ExtractionResult{
					Events: []models.ExtractedEvent{
						{Category: models.EventCategoryJournal, Type: models.EventTypeFeeding, Summary: "120ml"},
					},
				},
			}, nil
		},
	}
	enqueuer := &mockEnqueuer{}
	handler := NewChatHandler(processor, &mockChatRepo{}, nil, enqueuer, zap.NewNop())
	router := newTestRouter(handler)

	rec := postAnalyze(t, router, "7", AnalyzeRequest{Message: "she drank 120ml"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(enqueuer.jobs) != 1 {
		t.Fatalf("expected 1 forward_events job, got %d", len(enqueuer.jobs))
	}
	job := enqueuer.jobs[0]
	if job.Type != queue.JobTypeForwardEvents {
		t.Errorf("expected forward_events, got %s", job.Type)
	}
	if job.ProfileID != 7 {
		t.Errorf("expected profile 7 on job, got %d", job.ProfileID)
	}
	if job.UserID != models.SystemUserID {
		t.Errorf("unauthenticated request should attribute the system user, got %d", job.UserID)
	}
}

func TestAnalyzeNoEventsNoEnqueue(t *testing.T) {
	processor := &mockProcessor{
		processFunc: func(ctx context.Context, req *models.ProcessingRequest) (*models.ProcessingResult, error) {
			return &models.ProcessingResult{
				Success:        true,
				Message:        "Great question!",
				Classification: &models.ClassificationResult{Intent: models.InteractionQuestion, Confidence: 0.9},
			}, nil
		},
	}
	enqueuer := &mockEnqueuer{}
	handler := NewChatHandler(processor, &mockChatRepo{}, nil, enqueuer, zap.NewNop())
	router := newTestRouter(handler)

	rec := postAnalyze(t, router, "7", AnalyzeRequest{Message: "is this normal?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(enqueuer.jobs) != 0 {
		t.Errorf("no jobs should be enqueued without events, got %d", len(enqueuer.jobs))
	}
}

func TestAnalyzeEnqueueFailureDoesNotAlterResponse(t *testing.T) {
	processor := &mockProcessor{
		processFunc: func(ctx context.Context, req *models.ProcessingRequest) (*models.ProcessingResult, error) {
			return &models.ProcessingResult{
				Success: true,
				Message: "Logged!",
				Extraction: &models.ExtractionResult{
					Events: []models.ExtractedEvent{{Category: models.EventCategoryJournal, Type: "sleep"}},
				},
			}, nil
		},
	}
	enqueuer := &mockEnqueuer{
		enqueueFunc: func(ctx context.Context, job *queue.Job) error {
			return errors.New("broker down")
		},
	}
	handler := NewChatHandler(processor, &mockChatRepo{}, nil, enqueuer, zap.NewNop())
	router := newTestRouter(handler)

	rec := postAnalyze(t, router, "7", AnalyzeRequest{Message: "napped 45 minutes"})
	if rec.Code != http.StatusOK {
		t.Fatalf("enqueue failure must not alter the response, got %d", rec.Code)
	}

	var envelope struct {
		Success bool `json:"success"`
		Data    struct {
			Success bool `json:"success"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !envelope.Success || !envelope.Data.Success {
		t.Error("response should still report success")
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	processor := &mockProcessor{
		processFunc: func(ctx context.Context, req *models.ProcessingRequest) (*models.ProcessingResult, error) {
			return nil, pipeline.ErrEmptyInput
		},
	}
	handler := NewChatHandler(processor, &mockChatRepo{}, nil, &mockEnqueuer{}, zap.NewNop())
	router := newTestRouter(handler)

	rec := postAnalyze(t, router, "7", AnalyzeRequest{Message: "   "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty input, got %d", rec.Code)
	}
}

func TestAnalyzeInvalidProfileID(t *testing.T) {
	handler := NewChatHandler(&mockProcessor{}, &mockChatRepo{}, nil, &mockEnqueuer{}, zap.NewNop())
	router := newTestRouter(handler)

	rec := postAnalyze(t, router, "abc", AnalyzeRequest{Message: "hi"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad profile ID, got %d", rec.Code)
	}
}

func TestAnalyzeSanitizesMessage(t *testing.T) {
	processor := &mockProcessor{}
	handler := NewChatHandler(processor, &mockChatRepo{}, nil, &mockEnqueuer{}, zap.NewNop())
	router := newTestRouter(handler)

	rec := postAnalyze(t, router, "7", AnalyzeRequest{Message: "  hello\x00world  "})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if processor.lastRequest.Message != "helloworld" {
		t.Errorf("message should be sanitized, got %q", processor.lastRequest.Message)
	}
}

type mockAttachmentRepo struct {
	getByIDsFunc func(ctx context.Context, ids []int64) ([]*models.AttachmentMeta, error)
}

func (m *mockAttachmentRepo) GetByIDs(ctx context.Context, ids []int64) ([]*models.AttachmentMeta, error) {
	if m.getByIDsFunc != nil {
		return m.getByIDsFunc(ctx, ids)
	}
	return nil, nil
}

func TestAnalyzeResolvesAttachmentIDs(t *testing.T) {
	attachments := &mockAttachmentRepo{
		getByIDsFunc: func(ctx context.Context, ids []int64) ([]*models.AttachmentMeta, error) {
			return []*models.AttachmentMeta{
				{ID: 4, URL: "https://media.example.com/a/4.jpg"},
			}, nil
		},
	}
	processor := &mockProcessor{}
	handler := NewChatHandler(processor, &mockChatRepo{}, attachments, &mockEnqueuer{}, zap.NewNop())
	router := newTestRouter(handler)

	rec := postAnalyze(t, router, "7", AnalyzeRequest{Message: "see photo", AttachmentIDs: []int64{4}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	got := processor.lastRequest.AttachmentURLs
	if len(got) != 1 || got[0] != "https://media.example.com/a/4.jpg" {
		t.Errorf("attachment ID should resolve to its URL, got %v", got)
	}
	if len(processor.lastRequest.AttachmentIDs) != 1 || processor.lastRequest.AttachmentIDs[0] != 4 {
		t.Errorf("attachment IDs should be carried on the request, got %v", processor.lastRequest.AttachmentIDs)
	}
}

func TestAnalyzeAttachmentLookupFailureDegrades(t *testing.T) {
	attachments := &mockAttachmentRepo{
		getByIDsFunc: func(ctx context.Context, ids []int64) ([]*models.AttachmentMeta, error) {
			return nil, errors.New("db down")
		},
	}
	processor := &mockProcessor{}
	handler := NewChatHandler(processor, &mockChatRepo{}, attachments, &mockEnqueuer{}, zap.NewNop())
	router := newTestRouter(handler)

	rec := postAnalyze(t, router, "7", AnalyzeRequest{Message: "see photo", AttachmentIDs: []int64{4}})
	if rec.Code != http.StatusOK {
		t.Fatalf("lookup failure must not fail the request, got %d", rec.Code)
	}
	if len(processor.lastRequest.AttachmentURLs) != 0 {
		t.Errorf("no URLs should survive a failed lookup, got %v", processor.lastRequest.AttachmentURLs)
	}
}

func TestDeleteMessageWrongProfile(t *testing.T) {
	id := uuid.New()
	repo := &mockChatRepo{
		getFunc: func(ctx context.Context, gotID uuid.UUID) (*models.ChatMessage, error) {
			return &models.ChatMessage{ID: gotID, ProfileID: 99}, nil
		},
	}
	handler := NewChatHandler(&mockProcessor{}, repo, nil, &mockEnqueuer{}, zap.NewNop())
	router := newTestRouter(handler)

	req := httptest.NewRequest(http.MethodDelete, "/profiles/7/messages/"+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-profile delete should 404, got %d", rec.Code)
	}
}

func TestListMessages(t *testing.T) {
	repo := &mockChatRepo{
		listFunc: func(ctx context.Context, profileID int64, limit int) ([]*models.ChatMessage, error) {
			return []*models.ChatMessage{
				{ID: uuid.New(), ProfileID: profileID, Role: models.RoleUser, Content: "hi"},
				{ID: uuid.New(), ProfileID: profileID, Role: models.RoleAssistant, Content: "hello"},
			}, nil
		},
	}
	handler := NewChatHandler(&mockProcessor{}, repo, nil, &mockEnqueuer{}, zap.NewNop())
	router := newTestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/profiles/7/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var envelope struct {
		Data ListMessagesResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Count != 2 {
		t.Errorf("expected 2 messages, got %d", envelope.Data.Count)
	}
}
