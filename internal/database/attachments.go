package database

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/sproutlog/sproutlog/internal/models"
)

// AttachmentRepository is a read-only view over attachment metadata owned
// by the media collaborator. The pipeline uses it purely for prompt
// enrichment.
type AttachmentRepository struct {
	db *DB
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// GetByIDs retrieves attachment metadata for the given ids, preserving
// input order. Missing ids are silently skipped.
func (r *AttachmentRepository) GetByIDs(ctx context.Context, ids []int64) ([]*models.AttachmentMeta, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, filename, storage_key, mime_type, size_bytes, url,
			thumbnail_url, checksum, width, height, created_at
		FROM attachments
		WHERE id = ANY($1)
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.AttachmentMeta, len(ids))
	for rows.Next() {
		a := &models.AttachmentMeta{}
		err := rows.Scan(&a.ID, &a.Filename, &a.StorageKey, &a.MIMEType, &a.SizeBytes,
			&a.URL, &a.ThumbnailURL, &a.Checksum, &a.Width, &a.Height, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		byID[a.ID] = a
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}

	ordered := make([]*models.AttachmentMeta, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			ordered = append(ordered, a)
		}
	}

	return ordered, nil
}
