package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mwinters/loreboard/internal/schema"
)

// Meta returns the campaign's metadata record.
func (s *Store) Meta(ctx context.Context) (*schema.CampaignMeta, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT key, value FROM campaign_meta`)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaign metadata: %w", err)
	}
	defer rows.Close()

	meta := &schema.CampaignMeta{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		switch key {
		case "name":
			meta.Name = value
		case "description":
			meta.Description = value
		case "created_at":
			meta.CreatedAt = value
		case "modified_at":
			meta.ModifiedAt = value
		case "version":
			meta.Version = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metadata: %w", err)
	}
	return meta, nil
}

// MetaPatch carries the caller-updatable metadata fields. Nil fields are left
// untouched. modified_at is never taken from the caller; every update stamps
// it with the current time.
type MetaPatch struct {
	Name        *string
	Description *string
}

// UpdateMeta applies a metadata patch and refreshes modified_at.
func (s *Store) UpdateMeta(ctx context.Context, patch MetaPatch) (*schema.CampaignMeta, error) {
	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, errorf(KindValidationFailed, "campaign name cannot be empty")
		}
		if len(*patch.Name) > 100 {
			return nil, errorf(KindValidationFailed, "campaign name must be 100 characters or less (got %d)", len(*patch.Name))
		}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if patch.Name != nil {
			if err := setMeta(ctx, tx, "name", *patch.Name); err != nil {
				return err
			}
		}
		if patch.Description != nil {
			if err := setMeta(ctx, tx, "description", *patch.Description); err != nil {
				return err
			}
		}
		return stampModified(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.Meta(ctx)
}

func setMeta(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO campaign_meta (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set campaign %s: %w", key, err)
	}
	return nil
}

// stampModified refreshes the campaign's modified_at inside the caller's
// transaction, so the stamp commits or rolls back with the mutation itself.
func stampModified(ctx context.Context, tx *sql.Tx) error {
	return setMeta(ctx, tx, "modified_at", nowStamp())
}
