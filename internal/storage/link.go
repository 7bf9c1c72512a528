package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mwinters/loreboard/internal/schema"
)

// LinksForField returns the raw link rows for one source card and field,
// ordered by creation time ascending.
func (s *Store) LinksForField(ctx context.Context, cardID, fieldKey string) ([]*schema.CardLink, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, source_card_id, target_card_id, field_key, created_at
		FROM card_links
		WHERE source_card_id = ? AND field_key = ?
		ORDER BY created_at`, cardID, fieldKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	var links []*schema.CardLink
	for rows.Next() {
		var link schema.CardLink
		var createdAt string
		if err := rows.Scan(&link.ID, &link.SourceCardID, &link.TargetCardID, &link.FieldKey, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		link.CreatedAt = parseStamp(createdAt)
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}
	return links, nil
}

// LinkedCards returns the target cards of a link field, populated with their
// templates, ordered by link creation time ascending.
func (s *Store) LinkedCards(ctx context.Context, cardID, fieldKey string) ([]*schema.PopulatedCard, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT
			c.id, c.list_id, c.template_id, c.name, c.field_values, c.position,
			c.created_at, c.updated_at,
			c.parent_folder_id, c.folder_level, c.is_folder, c.is_expanded,
			t.id, t.name, t.icon, t.color, t.field_definitions, t.created_at, t.updated_at
		FROM card_links cl
		JOIN cards c ON cl.target_card_id = c.id
		JOIN card_templates t ON c.template_id = t.id
		WHERE cl.source_card_id = ? AND cl.field_key = ?
		ORDER BY cl.created_at`, cardID, fieldKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked cards: %w", err)
	}
	defer rows.Close()
	return scanPopulatedCards(rows)
}

// CreateLink records a directed edge from one card's link field to another
// card. Self-links fail with ValidationFailed; a duplicate
// (source, target, field) triple fails with Conflict. The storage layer
// permits unlimited edges per field; single-valued link fields are the
// caller's policy.
func (s *Store) CreateLink(ctx context.Context, sourceID, targetID, fieldKey string) (*schema.CardLink, error) {
	link := &schema.CardLink{
		ID:           uuid.NewString(),
		SourceCardID: sourceID,
		TargetCardID: targetID,
		FieldKey:     fieldKey,
	}
	if err := link.Validate(); err != nil {
		return nil, &Error{Kind: KindValidationFailed, Msg: "invalid link", Err: err}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range []string{sourceID, targetID} {
			var n int
			if err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM cards WHERE id = ?`, id).Scan(&n); err != nil {
				return fmt.Errorf("failed to check card: %w", err)
			}
			if n == 0 {
				return errorf(KindNotFound, "card %s not found", id)
			}
		}

		var dup int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM card_links
			WHERE source_card_id = ? AND target_card_id = ? AND field_key = ?`,
			sourceID, targetID, fieldKey).Scan(&dup)
		if err != nil {
			return fmt.Errorf("failed to check for duplicate link: %w", err)
		}
		if dup > 0 {
			return errorf(KindConflict, "link from %s to %s on field %q already exists", sourceID, targetID, fieldKey)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO card_links (id, source_card_id, target_card_id, field_key, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			link.ID, sourceID, targetID, fieldKey, nowStamp())
		if err != nil {
			return fmt.Errorf("failed to insert link: %w", err)
		}
		return stampModified(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	links, err := s.LinksForField(ctx, sourceID, fieldKey)
	if err != nil {
		return nil, err
	}
	for _, l := range links {
		if l.ID == link.ID {
			return l, nil
		}
	}
	return link, nil
}

// DeleteLink removes a single link by id.
func (s *Store) DeleteLink(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM card_links WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete link: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read delete result: %w", err)
		}
		if n == 0 {
			return errorf(KindNotFound, "link %s not found", id)
		}
		return stampModified(ctx, tx)
	})
}

// DeleteLinksForField removes every link with the given source and field in
// one statement. Used before bulk re-creating an edited link set.
func (s *Store) DeleteLinksForField(ctx context.Context, cardID, fieldKey string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM card_links WHERE source_card_id = ? AND field_key = ?`, cardID, fieldKey)
		if err != nil {
			return fmt.Errorf("failed to delete links for field: %w", err)
		}
		return stampModified(ctx, tx)
	})
}

// Backlinks reports who links to a card: each incoming edge with the source
// card's name and the human label of the link field, resolved from the source
// card's template.
func (s *Store) Backlinks(ctx context.Context, cardID string) ([]*schema.Backlink, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT cl.id, cl.source_card_id, c.name, cl.field_key, t.field_definitions
		FROM card_links cl
		JOIN cards c ON cl.source_card_id = c.id
		JOIN card_templates t ON c.template_id = t.id
		WHERE cl.target_card_id = ?
		ORDER BY cl.created_at`, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query backlinks: %w", err)
	}
	defer rows.Close()

	var backlinks []*schema.Backlink
	for rows.Next() {
		var bl schema.Backlink
		var defsJSON string
		if err := rows.Scan(&bl.ID, &bl.SourceCardID, &bl.SourceCardName, &bl.FieldKey, &defsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan backlink: %w", err)
		}
		defs, err := schema.UnmarshalDefinitions(defsJSON)
		if err != nil {
			return nil, err
		}
		bl.FieldLabel = bl.FieldKey
		for i := range defs {
			if defs[i].Key == bl.FieldKey {
				bl.FieldLabel = defs[i].Label
				break
			}
		}
		backlinks = append(backlinks, &bl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backlinks: %w", err)
	}
	return backlinks, nil
}
