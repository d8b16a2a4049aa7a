package models

// InteractionType is the classifier's judgment of what the parent wants
type InteractionType string

const (
	InteractionDataRecording  InteractionType = "DATA_RECORDING"
	InteractionQuestion       InteractionType = "QUESTION"
	InteractionConversation   InteractionType = "CONVERSATION"
	InteractionMedicalConcern InteractionType = "MEDICAL_CONCERN"
	InteractionUnknown        InteractionType = "UNKNOWN"
)

// ExtractionRouting maps each interaction type to whether the event
// extraction stage should run. Kept as data so the routing decision is
// testable in isolation instead of being branching logic at call sites.
var ExtractionRouting = map[InteractionType]bool{
	InteractionDataRecording:  true,
	InteractionQuestion:       false,
	InteractionConversation:   false,
	InteractionMedicalConcern: false,
	InteractionUnknown:        false,
}

// TriggersExtraction reports whether this interaction type routes the
// pipeline into the event extraction stage. Unlisted values never do.
func (t InteractionType) TriggersExtraction() bool {
	return ExtractionRouting[t]
}

// Valid reports whether the value is one of the known interaction types
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionDataRecording, InteractionQuestion, InteractionConversation,
		InteractionMedicalConcern, InteractionUnknown:
		return true
	default:
		return false
	}
}
