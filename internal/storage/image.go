package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mwinters/loreboard/internal/schema"
)

// SaveImage stores an image blob and returns its id. Size limits are the
// caller's concern; the blob table carries no ordering invariants.
func (s *Store) SaveImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errorf(KindValidationFailed, "image data cannot be empty")
	}
	if mimeType == "" {
		return "", errorf(KindValidationFailed, "image mime type is required")
	}

	id := uuid.NewString()
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO image_blobs (id, mime_type, data, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, mimeType, data, len(data), nowStamp())
	if err != nil {
		return "", fmt.Errorf("failed to save image: %w", err)
	}
	return id, nil
}

// GetImage returns a stored image blob.
func (s *Store) GetImage(ctx context.Context, id string) (*schema.ImageBlob, error) {
	var img schema.ImageBlob
	var createdAt string
	err := s.conn.QueryRowContext(ctx, `
		SELECT id, mime_type, data, size_bytes, created_at
		FROM image_blobs WHERE id = ?`, id).
		Scan(&img.ID, &img.MimeType, &img.Data, &img.SizeBytes, &createdAt)
	if err == sql.ErrNoRows {
		return nil, errorf(KindNotFound, "image %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	img.CreatedAt = parseStamp(createdAt)
	return &img, nil
}

// DeleteImage removes a stored image blob. Deleting an unknown id is a
// no-op.
func (s *Store) DeleteImage(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM image_blobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
