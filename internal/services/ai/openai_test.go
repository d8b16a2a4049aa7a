package ai

import (
	"testing"
	"time"

	"github.com/sproutlog/sproutlog/internal/models"
)

func TestParseClassificationResponse(t *testing.T) {
	content := `{"intent":"DATA_RECORDING","confidence":0.92,"reply":"Logged the feeding!","thinking":"Parent reported a bottle amount."}`

	result, err := parseClassificationResponse(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != models.InteractionDataRecording {
		t.Errorf("expected DATA_RECORDING, got %s", result.Intent)
	}
	if result.Confidence != 0.92 {
		t.Errorf("expected confidence 0.92, got %f", result.Confidence)
	}
	if result.Reply != "Logged the feeding!" {
		t.Errorf("unexpected reply: %q", result.Reply)
	}
}

func TestParseClassificationResponseWithPreamble(t *testing.T) {
	content := "Here is the classification:\n" +
		`{"intent":"QUESTION","confidence":0.8,"reply":"Great question."}`

	result, err := parseClassificationResponse(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != models.InteractionQuestion {
		t.Errorf("expected QUESTION, got %s", result.Intent)
	}
}

func TestParseClassificationResponseUnknownIntent(t *testing.T) {
	content := `{"intent":"SOMETHING_ELSE","confidence":1.5,"reply":"hi"}`

	result, err := parseClassificationResponse(content)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != models.InteractionUnknown {
		t.Errorf("unknown intent should map to UNKNOWN, got %s", result.Intent)
	}
	if result.Confidence != 1.0 {
		t.Errorf("confidence should clamp to 1.0, got %f", result.Confidence)
	}
}

func TestParseClassificationResponseInvalidJSON(t *testing.T) {
	if _, err := parseClassificationResponse("not json at all"); err == nil {
		t.Error("expected error for unparsable content")
	}
}

func TestParseExtractionResponse(t *testing.T) {
	content := `{
		"events": [
			{
				"eventCategory": "journal",
				"eventType": "feeding",
				"timestamp": "2026-08-29T14:30:00Z",
				"summary": "Bottle feeding, 120ml",
				"eventData": {"amountMl": 120},
				"confidence": 0.9
			},
			{
				"eventCategory": "health",
				"eventType": "growth",
				"timestamp": "2026-08-29T09:00:00Z",
				"summary": "Weight 6.2kg",
				"eventData": {"weightKg": 6.2},
				"confidence": 0.85
			}
		],
		"summary": "One feeding and one weight measurement"
	}`

	fallback := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	result, err := parseExtractionResponse(content, fallback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(result.Events))
	}
	if result.Events[0].Category != models.EventCategoryJournal {
		t.Errorf("expected journal category, got %s", result.Events[0].Category)
	}
	if result.Events[1].Type != models.EventTypeGrowth {
		t.Errorf("expected growth type, got %s", result.Events[1].Type)
	}
	if result.Summary != "One feeding and one weight measurement" {
		t.Errorf("unexpected summary: %q", result.Summary)
	}
}

func TestParseExtractionResponseDropsInvalidEvents(t *testing.T) {
	content := `{
		"events": [
			{"eventCategory": "nonsense", "eventType": "feeding", "timestamp": "2026-08-29T14:30:00Z", "summary": "bad category"},
			{"eventCategory": "journal", "eventType": "sleep", "timestamp": "yesterday-ish", "summary": "bad timestamp"},
			{"eventCategory": "journal", "eventType": "diaper", "summary": "missing timestamp uses fallback"}
		],
		"summary": ""
	}`

	fallback := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	result, err := parseExtractionResponse(content, fallback)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected 1 surviving event, got %d", len(result.Events))
	}
	if !result.Events[0].Timestamp.Equal(fallback) {
		t.Errorf("missing timestamp should use fallback, got %v", result.Events[0].Timestamp)
	}
}

func TestParseExtractionResponseEmpty(t *testing.T) {
	result, err := parseExtractionResponse(`{"events": [], "summary": ""}`, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Events == nil {
		t.Error("events should be an empty slice, not nil")
	}
	if len(result.Events) != 0 {
		t.Errorf("expected no events, got %d", len(result.Events))
	}
}

func TestEstimateCost(t *testing.T) {
	// 1M dynamic input tokens at gpt-4o-mini rates
	cost := estimateCost("gpt-4o-mini", 1_000_000, 0, 0)
	if cost != 0.15 {
		t.Errorf("expected 0.15, got %f", cost)
	}

	// cached tokens bill at the cached rate
	cost = estimateCost("gpt-4o-mini", 1_000_000, 1_000_000, 0)
	if cost != 0.075 {
		t.Errorf("expected 0.075, got %f", cost)
	}

	// unknown models estimate to zero
	if cost := estimateCost("mystery-model", 1000, 0, 1000); cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
}

func TestSliceJSONObject(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"clean object", `{"a":1}`, `{"a":1}`},
		{"prose wrapped", "Sure! {\"a\":1} Hope that helps.", `{"a":1}`},
		{"no object", "nothing here", "nothing here"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sliceJSONObject(tt.input); got != tt.want {
				t.Errorf("sliceJSONObject(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
