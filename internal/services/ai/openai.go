package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/sproutlog/sproutlog/internal/models"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultVisionModel is the default model for attachment parsing
	DefaultVisionModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 60 * time.Second

	// ErrNoChoicesInResponse is returned when the API response has no choices
	ErrNoChoicesInResponse = "no choices in response"
)

// modelPricing is USD per one million tokens
type modelPricing struct {
	input  float64
	cached float64
	output float64
}

// Pricing snapshot used for cost estimates. Unknown models estimate to
// zero rather than guessing.
var modelPrices = map[string]modelPricing{
	"gpt-4o-mini":  {input: 0.15, cached: 0.075, output: 0.60},
	"gpt-4o":       {input: 2.50, cached: 1.25, output: 10.00},
	"gpt-4.1":      {input: 2.00, cached: 0.50, output: 8.00},
	"gpt-4.1-mini": {input: 0.40, cached: 0.10, output: 1.60},
}

// OpenAIProvider implements the StageProvider interface using OpenAI's API
type OpenAIProvider struct {
	client      openai.Client
	model       string
	visionModel string
	recorder    UsageRecorder
	logger      *zap.Logger
	debugMode   bool
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey string, model string) *OpenAIProvider {
	return NewOpenAIProviderWithLogger(apiKey, DefaultOpenAIBaseURL, model, "", nil, nil, false)
}

// NewOpenAIProviderWithLogger creates a new OpenAI provider with usage
// recording and logger support
func NewOpenAIProviderWithLogger(apiKey string, baseURL string, model string, visionModel string, recorder UsageRecorder, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if visionModel == "" {
		visionModel = DefaultVisionModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}

	httpClient := &http.Client{
		Timeout: DefaultTimeout,
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(httpClient),
	)

	return &OpenAIProvider{
		client:      client,
		model:       model,
		visionModel: visionModel,
		recorder:    recorder,
		logger:      logger,
		debugMode:   debugMode,
	}
}

// completionCall is one round trip to the completions API with usage
// recording on both the success and failure paths.
func (p *OpenAIProvider) completionCall(ctx context.Context, operation models.OperationType, stage string, model string, messages []openai.ChatCompletionMessageParamUnion, jsonMode bool, attachmentCount int) (string, error) {
	req := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
	}
	if jsonMode {
		req.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	requestID := ExtractRequestID(ctx)
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", stage),
			zap.String("model", model),
			zap.Int("message_count", len(messages)),
			zap.String("profile_id", ExtractProfileID(ctx)),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)

	p.recordUsage(ctx, operation, stage, model, resp, latency, err, attachmentCount)

	if err != nil {
		if p.logger != nil && p.debugMode {
			p.logger.Debug("llm_api_error",
				zap.String("operation", stage),
				zap.String("model", model),
				zap.Error(err),
				zap.String("profile_id", ExtractProfileID(ctx)),
				zap.String("request_id", requestID),
				zap.Int64("latency_ms", latency.Milliseconds()),
			)
		}
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return "", fmt.Errorf("%s failed: %w", stage, apiErr)
		}
		return "", fmt.Errorf("%s failed: %w", stage, err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New(ErrNoChoicesInResponse)
	}

	content := resp.Choices[0].Message.Content
	if p.logger != nil && p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", stage),
			zap.String("model", model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("profile_id", ExtractProfileID(ctx)),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return content, nil
}

// recordUsage builds one ModelUsage row for a completed (or failed) call.
// Recording never blocks the pipeline: the recorder swallows its own
// errors.
func (p *OpenAIProvider) recordUsage(ctx context.Context, operation models.OperationType, stage string, model string, resp *openai.ChatCompletion, latency time.Duration, callErr error, attachmentCount int) {
	if p.recorder == nil {
		return
	}

	usage := &models.ModelUsage{
		ProfileID:       profileIDFromContext(ctx),
		UserID:          userIDFromContext(ctx),
		Operation:       operation,
		Stage:           stage,
		Model:           model,
		LatencyMS:       latency.Milliseconds(),
		Success:         callErr == nil,
		HasAttachments:  attachmentCount > 0,
		AttachmentCount: attachmentCount,
	}
	if callErr != nil {
		usage.ErrorMessage = TruncateString(callErr.Error(), 500)
	}
	if resp != nil {
		usage.InputTokens = int(resp.Usage.PromptTokens)
		usage.OutputTokens = int(resp.Usage.CompletionTokens)
		usage.TotalTokens = int(resp.Usage.TotalTokens)
		usage.CachedTokens = int(resp.Usage.PromptTokensDetails.CachedTokens)
		usage.DynamicTokens = usage.InputTokens - usage.CachedTokens
		usage.CacheUsed = usage.CachedTokens > 0
		usage.EstimatedCost = estimateCost(model, usage.InputTokens, usage.CachedTokens, usage.OutputTokens)
	}

	p.recorder.Record(ctx, usage)
}

// estimateCost prices a call from the pricing snapshot. Cached prompt
// tokens are billed at the cached rate, the remainder at the input rate.
func estimateCost(model string, inputTokens, cachedTokens, outputTokens int) float64 {
	price, ok := modelPrices[model]
	if !ok {
		return 0
	}
	dynamic := inputTokens - cachedTokens
	if dynamic < 0 {
		dynamic = 0
	}
	cost := float64(dynamic) * price.input
	cost += float64(cachedTokens) * price.cached
	cost += float64(outputTokens) * price.output
	return cost / 1_000_000
}

// DescribeAttachments produces a text description per attachment URL.
// Failures are per-attachment: successfully described attachments are
// returned alongside a joined error for the failures.
func (p *OpenAIProvider) DescribeAttachments(ctx context.Context, urls []string) ([]models.AttachmentContent, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	contents := make([]models.AttachmentContent, 0, len(urls))
	var errs []error

	for _, url := range urls {
		messages := []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You describe images from a baby care journal. Describe what the image shows in two or three factual sentences, focusing on anything relevant to infant care: feeding amounts, diaper contents, sleep, rashes, milestones, measurements. No speculation beyond what is visible."),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart("Describe this attachment."),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: url}),
			}),
		}

		description, err := p.completionCall(ctx, models.OperationAttachmentParsing, "attachment_parsing", p.visionModel, messages, false, 1)
		if err != nil {
			errs = append(errs, fmt.Errorf("attachment %s: %w", SanitizePrompt(url, false), err))
			continue
		}

		contents = append(contents, models.AttachmentContent{
			URL:         url,
			Description: description,
		})
	}

	return contents, errors.Join(errs...)
}

// Classify determines the interaction type of a parent message and drafts
// the assistant's reply.
func (p *OpenAIProvider) Classify(ctx context.Context, input ClassifyInput) (*models.ClassificationResult, error) {
	prompt := buildClassificationPrompt(input)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(classificationSystemPrompt),
		openai.UserMessage(prompt),
	}

	content, err := p.completionCall(ctx, models.OperationClassification, "classification", p.model, messages, true, len(input.Attachments))
	if err != nil {
		return nil, &StageError{Stage: "classification", Err: err}
	}

	result, err := parseClassificationResponse(content)
	if err != nil {
		return nil, &StageError{Stage: "classification", Err: err}
	}
	return result, nil
}

// ExtractEvents pulls structured caregiving events out of a
// data-recording message.
func (p *OpenAIProvider) ExtractEvents(ctx context.Context, input ExtractInput) (*models.ExtractionResult, error) {
	prompt := buildExtractionPrompt(input)
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(extractionSystemPrompt),
		openai.UserMessage(prompt),
	}

	content, err := p.completionCall(ctx, models.OperationExtraction, "extraction", p.model, messages, true, len(input.Attachments))
	if err != nil {
		return nil, &StageError{Stage: "extraction", Err: err}
	}

	result, err := parseExtractionResponse(content, time.Now().UTC())
	if err != nil {
		return nil, &StageError{Stage: "extraction", Err: err}
	}
	return result, nil
}

const classificationSystemPrompt = `You are the assistant behind a baby care journal. Parents send you free-form messages about their baby. Classify each message and draft your reply. Respond with valid JSON only in this format:
{
  "intent": "DATA_RECORDING" | "QUESTION" | "CONVERSATION" | "MEDICAL_CONCERN" | "UNKNOWN",
  "confidence": 0.0-1.0,
  "reply": "your reply to the parent",
  "thinking": "one sentence on how you decided"
}

Guidelines:
- "DATA_RECORDING": the parent is logging something that happened (a feeding, a nap, a diaper, a measurement, a milestone)
- "QUESTION": the parent wants information or advice
- "CONVERSATION": chit-chat, venting, sharing without a loggable fact
- "MEDICAL_CONCERN": symptoms or worries that may need a professional; your reply must recommend consulting one without diagnosing
- "UNKNOWN": none of the above fit

The reply should be warm and brief. For DATA_RECORDING, acknowledge what was logged.`

const extractionSystemPrompt = `You extract structured baby care events from a parent's message. Respond with valid JSON only in this format:
{
  "events": [
    {
      "eventCategory": "journal" | "health",
      "eventType": "feeding" | "sleep" | "diaper" | "behavior" | "growth" | "milestone" | other short tag,
      "timestamp": "RFC3339 timestamp",
      "summary": "one-line summary",
      "eventData": { structured fields for this event type },
      "confidence": 0.0-1.0
    }
  ],
  "summary": "one-line summary of everything extracted"
}

Guidelines:
- "journal" covers routine care: feeding, sleep, diapers, behavior, milestones
- "health" covers measurements and medical observations: weight, height, temperature, symptoms, medication
- One event per distinct fact. A message can yield several events or none.
- Resolve relative times ("an hour ago", "this morning") against the current time given in the message context.
- Put quantities in eventData with units (e.g. {"amountMl": 120}, {"durationMinutes": 45}).
- Return {"events": [], "summary": ""} when nothing is recordable.`

func buildClassificationPrompt(input ClassifyInput) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Parent message: %q\n", input.Message)
	if input.ClientTime != "" {
		fmt.Fprintf(&buf, "\nCurrent time for the parent: %s\n", input.ClientTime)
	}
	if input.BabyContext != "" {
		fmt.Fprintf(&buf, "\nBaby context:\n%s\n", input.BabyContext)
	}
	if input.ChatHistory != "" {
		fmt.Fprintf(&buf, "\nRecent conversation:\n%s\n", input.ChatHistory)
	}
	if len(input.Memories) > 0 {
		buf.WriteString("\nRelevant memories from earlier conversations:\n")
		for _, m := range input.Memories {
			fmt.Fprintf(&buf, "- %s\n", m)
		}
	}
	writeAttachmentContext(&buf, input.Attachments)

	return buf.String()
}

func buildExtractionPrompt(input ExtractInput) string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Parent message: %q\n", input.Message)
	if input.ClientTime != "" {
		fmt.Fprintf(&buf, "\nCurrent time for the parent: %s\n", input.ClientTime)
	}
	if input.BabyContext != "" {
		fmt.Fprintf(&buf, "\nBaby context:\n%s\n", input.BabyContext)
	}
	writeAttachmentContext(&buf, input.Attachments)

	return buf.String()
}

func writeAttachmentContext(buf *bytes.Buffer, attachments []models.AttachmentContent) {
	if len(attachments) == 0 {
		return
	}
	buf.WriteString("\nAttached images (described):\n")
	for _, a := range attachments {
		fmt.Fprintf(buf, "- %s\n", a.Description)
	}
}

// sliceJSONObject trims any non-JSON preamble or trailer around the first
// top-level object. Models occasionally wrap JSON output in prose even in
// JSON mode.
func sliceJSONObject(raw string) string {
	if len(raw) > 0 && raw[0] == '{' {
		return raw
	}
	start := bytes.Index([]byte(raw), []byte("{"))
	end := bytes.LastIndex([]byte(raw), []byte("}"))
	if start != -1 && end != -1 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func parseClassificationResponse(content string) (*models.ClassificationResult, error) {
	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
		Reply      string  `json:"reply"`
		Thinking   string  `json:"thinking"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		if err := json.Unmarshal([]byte(sliceJSONObject(content)), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse classification response: %w", err)
		}
	}

	intent := models.InteractionType(parsed.Intent)
	if !intent.Valid() {
		intent = models.InteractionUnknown
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.ClassificationResult{
		Intent:     intent,
		Confidence: confidence,
		Reply:      parsed.Reply,
		Thinking:   parsed.Thinking,
	}, nil
}

// parseExtractionResponse parses the extraction JSON. Events with an
// unknown category or an unparsable timestamp are dropped rather than
// failing the stage; a missing timestamp falls back to the given time.
func parseExtractionResponse(content string, fallback time.Time) (*models.ExtractionResult, error) {
	var parsed struct {
		Events []struct {
			Category   string         `json:"eventCategory"`
			Type       string         `json:"eventType"`
			Timestamp  string         `json:"timestamp"`
			Summary    string         `json:"summary"`
			Data       map[string]any `json:"eventData"`
			Confidence float64        `json:"confidence"`
		} `json:"events"`
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		if err := json.Unmarshal([]byte(sliceJSONObject(content)), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse extraction response: %w", err)
		}
	}

	events := make([]models.ExtractedEvent, 0, len(parsed.Events))
	for _, e := range parsed.Events {
		category := models.EventCategory(e.Category)
		if !category.Valid() {
			continue
		}

		ts := fallback
		if e.Timestamp != "" {
			parsedTS, err := time.Parse(time.RFC3339, e.Timestamp)
			if err != nil {
				continue
			}
			ts = parsedTS
		}

		confidence := e.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}

		events = append(events, models.ExtractedEvent{
			Category:   category,
			Type:       e.Type,
			Timestamp:  ts,
			Summary:    e.Summary,
			Data:       e.Data,
			Confidence: confidence,
		})
	}

	return &models.ExtractionResult{
		Events:  events,
		Summary: parsed.Summary,
	}, nil
}

// RegisterOpenAI registers the OpenAI provider with the registry
func RegisterOpenAI(registry *ProviderRegistry) {
	registry.Register("openai", func(config map[string]string) (StageProvider, error) {
		apiKey, ok := config["api_key"]
		if !ok || apiKey == "" {
			return nil, fmt.Errorf("openai api_key is required")
		}

		model := config["model"]
		baseURL := config["base_url"]

		return NewOpenAIProviderWithLogger(apiKey, baseURL, model, config["vision_model"], nil, nil, false), nil
	})
}
