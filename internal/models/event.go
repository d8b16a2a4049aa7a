package models

import "time"

// EventCategory splits extracted events into the two downstream stores
type EventCategory string

const (
	EventCategoryJournal EventCategory = "journal"
	EventCategoryHealth  EventCategory = "health"
)

// Well-known event type tags. The field is an open string: the extractor
// may emit types beyond this list and downstream consumers must tolerate
// them.
const (
	EventTypeFeeding   = "feeding"
	EventTypeSleep     = "sleep"
	EventTypeDiaper    = "diaper"
	EventTypeBehavior  = "behavior"
	EventTypeGrowth    = "growth"
	EventTypeMilestone = "milestone"
)

// ExtractedEvent is one structured caregiving record derived from free
// text. Events are created by the extraction stage, never mutated, and
// consumed once by event forwarding; durable storage is owned by the
// downstream collaborator.
type ExtractedEvent struct {
	Category   EventCategory  `json:"eventCategory"`
	Type       string         `json:"eventType"`
	Timestamp  time.Time      `json:"timestamp"`
	Summary    string         `json:"summary"`
	Data       map[string]any `json:"eventData,omitempty"`
	Confidence float64        `json:"confidence"`
}

// Valid reports whether the value is a known event category
func (c EventCategory) Valid() bool {
	return c == EventCategoryJournal || c == EventCategoryHealth
}
