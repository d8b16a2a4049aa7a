package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/models"
)

type mockUsageRecorder struct {
	records []*models.ModelUsage
}

func (m *mockUsageRecorder) Record(ctx context.Context, usage *models.ModelUsage) {
	m.records = append(m.records, usage)
}

func TestDescribeAttachmentsFailureRecordsUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unsupported image format","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	recorder := &mockUsageRecorder{}
	provider := NewOpenAIProviderWithLogger("test-key", server.URL, "gpt-4o-mini", "gpt-4o-mini", recorder, zap.NewNop(), false)

	ctx := WithProfileID(context.Background(), 7)
	ctx = WithUserID(ctx, 3)

	contents, err := provider.DescribeAttachments(ctx, []string{"https://media.example.com/a/1.jpg"})
	if err == nil {
		t.Fatal("expected an error from the failing API")
	}
	if len(contents) != 0 {
		t.Errorf("no descriptions should survive a failed call, got %d", len(contents))
	}

	if len(recorder.records) != 1 {
		t.Fatalf("expected 1 usage record for the failed call, got %d", len(recorder.records))
	}
	usage := recorder.records[0]
	if usage.Success {
		t.Error("failed call must be recorded with Success=false")
	}
	if usage.ErrorMessage == "" {
		t.Error("failed call must carry a non-empty error message")
	}
	if usage.Operation != models.OperationAttachmentParsing {
		t.Errorf("expected attachment_parsing operation, got %s", usage.Operation)
	}
	if usage.Stage != "attachment_parsing" {
		t.Errorf("expected attachment_parsing stage, got %s", usage.Stage)
	}
	if !usage.HasAttachments || usage.AttachmentCount != 1 {
		t.Errorf("attachment flags should be set: %+v", usage)
	}
	if usage.ProfileID != 7 || usage.UserID != 3 {
		t.Errorf("identity should come from the context, got profile=%d user=%d", usage.ProfileID, usage.UserID)
	}
}

func TestClassifySuccessRecordsUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"{\"intent\":\"QUESTION\",\"confidence\":0.9,\"reply\":\"Great question!\"}"}}],
			"usage":{"prompt_tokens":120,"completion_tokens":30,"total_tokens":150,"prompt_tokens_details":{"cached_tokens":100}}
		}`))
	}))
	defer server.Close()

	recorder := &mockUsageRecorder{}
	provider := NewOpenAIProviderWithLogger("test-key", server.URL, "gpt-4o-mini", "gpt-4o-mini", recorder, zap.NewNop(), false)

	result, err := provider.Classify(context.Background(), ClassifyInput{Message: "is this normal?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != models.InteractionQuestion {
		t.Errorf("unexpected intent: %s", result.Intent)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("expected 1 usage record, got %d", len(recorder.records))
	}
	usage := recorder.records[0]
	if !usage.Success || usage.ErrorMessage != "" {
		t.Errorf("successful call should record success with no error: %+v", usage)
	}
	if usage.InputTokens != 120 || usage.OutputTokens != 30 {
		t.Errorf("token counts should come from the response, got in=%d out=%d", usage.InputTokens, usage.OutputTokens)
	}
	if !usage.CacheUsed || usage.CachedTokens != 100 || usage.DynamicTokens != 20 {
		t.Errorf("cache accounting should split prompt tokens, got %+v", usage)
	}
}
