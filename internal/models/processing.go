package models

import "time"

// SystemUserID is the sentinel user attributed when the caller provides no
// user identity.
const SystemUserID int64 = 0

// ProcessingRequest carries one inbound parent message through the
// pipeline. Immutable once constructed; one per pipeline invocation.
type ProcessingRequest struct {
	Message        string
	AttachmentURLs []string
	AttachmentIDs  []int64
	ProfileID      int64
	UserID         int64
	BabyContext    string
	ChatHistory    string
	ClientTime     time.Time
}

// HasAttachments reports whether the request carries attachment URLs
func (r *ProcessingRequest) HasAttachments() bool {
	return len(r.AttachmentURLs) > 0
}

// ClassificationResult is the outcome of the classification stage
type ClassificationResult struct {
	Intent     InteractionType `json:"intent"`
	Confidence float64         `json:"confidence"`
	Reply      string          `json:"reply,omitempty"`
	Thinking   string          `json:"thinking,omitempty"`
}

// ExtractionResult is the outcome of the event extraction stage. A nil
// ExtractionResult on ProcessingResult means the stage was not applicable;
// an empty Events slice means it ran and found nothing.
type ExtractionResult struct {
	Events  []ExtractedEvent `json:"events"`
	Summary string           `json:"summary,omitempty"`
}

// ProcessingResult is the single merged outcome of one pipeline
// invocation. When Success is false the classification and extraction
// fields may be absent.
type ProcessingResult struct {
	Success        bool                  `json:"success"`
	Message        string                `json:"message"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Extraction     *ExtractionResult     `json:"extraction,omitempty"`
	Error          string                `json:"error,omitempty"`
}

// Events returns the extracted events, or nil when extraction did not run
func (r *ProcessingResult) Events() []ExtractedEvent {
	if r.Extraction == nil {
		return nil
	}
	return r.Extraction.Events
}
