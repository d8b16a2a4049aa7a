package models

import "time"

// AttachmentMeta is read-only metadata for an uploaded attachment, served
// by the storage collaborator. The pipeline only ever reads it for prompt
// enrichment.
type AttachmentMeta struct {
	ID           int64     `json:"id"`
	Filename     string    `json:"filename"`
	StorageKey   string    `json:"storage_key"`
	MIMEType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Checksum     string    `json:"checksum,omitempty"`
	Width        *int      `json:"width,omitempty"`
	Height       *int      `json:"height,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AttachmentContent is the attachment parsing stage's structured
// description of one attachment, consumable by later stages as prompt
// context.
type AttachmentContent struct {
	URL         string `json:"url"`
	MIMEType    string `json:"mime_type,omitempty"`
	Description string `json:"description"`
}
