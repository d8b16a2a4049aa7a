package ai

import (
	"context"

	"github.com/sproutlog/sproutlog/internal/models"
)

// ClassifyInput carries everything the classification stage needs
type ClassifyInput struct {
	Message     string
	Attachments []models.AttachmentContent
	BabyContext string
	ChatHistory string
	Memories    []string
	ClientTime  string
}

// ExtractInput carries everything the event extraction stage needs.
// Extraction only runs for intents that record data, so the classified
// intent is included for prompt context.
type ExtractInput struct {
	Message     string
	Attachments []models.AttachmentContent
	BabyContext string
	Intent      models.InteractionType
	ClientTime  string
}

// StageProvider is the interface for AI providers backing the pipeline
// stages
type StageProvider interface {
	// DescribeAttachments produces a text description for each attachment
	// URL so later stages can reason over them as text
	DescribeAttachments(ctx context.Context, urls []string) ([]models.AttachmentContent, error)

	// Classify determines the interaction type of a message and drafts the
	// assistant reply
	Classify(ctx context.Context, input ClassifyInput) (*models.ClassificationResult, error)

	// ExtractEvents pulls structured caregiving events out of a
	// data-recording message
	ExtractEvents(ctx context.Context, input ExtractInput) (*models.ExtractionResult, error)
}

// UsageRecorder persists per-call usage telemetry. Implementations must
// never propagate their own failures to the caller.
type UsageRecorder interface {
	Record(ctx context.Context, usage *models.ModelUsage)
}

// ProviderFactory creates a stage provider from flat config
type ProviderFactory func(config map[string]string) (StageProvider, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates a new provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]ProviderFactory),
	}
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// GetProvider gets a provider by name
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (StageProvider, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}

	return factory(config)
}

// ErrProviderNotFound is returned when a provider is not found
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
