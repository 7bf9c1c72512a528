package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mwinters/loreboard/internal/schema"
)

// populatedSelect is the card+template join shared by all populated reads.
const populatedSelect = `
	SELECT
		c.id, c.list_id, c.template_id, c.name, c.field_values, c.position,
		c.created_at, c.updated_at,
		c.parent_folder_id, c.folder_level, c.is_folder, c.is_expanded,
		t.id, t.name, t.icon, t.color, t.field_definitions, t.created_at, t.updated_at
	FROM cards c
	JOIN card_templates t ON c.template_id = t.id
`

// CardsByList returns every card in a list (all nesting levels), populated
// with its template, ordered by position.
func (s *Store) CardsByList(ctx context.Context, listID string) ([]*schema.PopulatedCard, error) {
	rows, err := s.conn.QueryContext(ctx,
		populatedSelect+`WHERE c.list_id = ? ORDER BY c.parent_folder_id, c.position`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards for list %s: %w", listID, err)
	}
	defer rows.Close()
	return scanPopulatedCards(rows)
}

// FolderChildren returns the immediate children of a folder, ordered by
// position.
func (s *Store) FolderChildren(ctx context.Context, folderID string) ([]*schema.PopulatedCard, error) {
	rows, err := s.conn.QueryContext(ctx,
		populatedSelect+`WHERE c.parent_folder_id = ? ORDER BY c.position`, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query children of folder %s: %w", folderID, err)
	}
	defer rows.Close()
	return scanPopulatedCards(rows)
}

// AllCards returns every card across all lists, ordered by name. Used by the
// card picker and substring search.
func (s *Store) AllCards(ctx context.Context) ([]*schema.PopulatedCard, error) {
	rows, err := s.conn.QueryContext(ctx, populatedSelect+`ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query all cards: %w", err)
	}
	defer rows.Close()
	return scanPopulatedCards(rows)
}

// SearchCards returns cards whose name contains the query substring,
// case-insensitively, ordered by name.
func (s *Store) SearchCards(ctx context.Context, query string) ([]*schema.PopulatedCard, error) {
	rows, err := s.conn.QueryContext(ctx,
		populatedSelect+`WHERE c.name LIKE '%' || ? || '%' ORDER BY c.name`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search cards: %w", err)
	}
	defer rows.Close()
	return scanPopulatedCards(rows)
}

// GetCard returns the card with the given id, populated with its template.
func (s *Store) GetCard(ctx context.Context, id string) (*schema.PopulatedCard, error) {
	row := s.conn.QueryRowContext(ctx, populatedSelect+`WHERE c.id = ?`, id)
	card, err := scanPopulatedCard(row)
	if err == sql.ErrNoRows {
		return nil, errorf(KindNotFound, "card %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

// CreateCardParams carries the caller-supplied card fields. A negative
// Position appends the card at the end of its destination bucket; otherwise
// the index is clamped and later siblings shift right.
type CreateCardParams struct {
	ListID         string
	TemplateID     string
	Name           string
	FieldValues    schema.FieldValues
	Position       int
	ParentFolderID string
	IsFolder       bool
	IsExpanded     *bool
}

// CreateCard persists a new card inside one transaction: the destination
// bucket's gap is opened and the campaign stamp refreshed atomically with the
// insert.
func (s *Store) CreateCard(ctx context.Context, params CreateCardParams) (*schema.PopulatedCard, error) {
	card := &schema.Card{
		ID:             uuid.NewString(),
		ListID:         params.ListID,
		TemplateID:     params.TemplateID,
		Name:           params.Name,
		FieldValues:    params.FieldValues,
		ParentFolderID: params.ParentFolderID,
		IsFolder:       params.IsFolder,
		IsExpanded:     true,
	}
	if params.IsExpanded != nil {
		card.IsExpanded = *params.IsExpanded
	}
	if err := card.Validate(); err != nil {
		return nil, &Error{Kind: KindValidationFailed, Msg: "invalid card", Err: err}
	}

	valuesJSON, err := schema.EncodeValues(card.FieldValues)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM lists WHERE id = ?`, card.ListID).Scan(&n); err != nil {
			return fmt.Errorf("failed to check list: %w", err)
		}
		if n == 0 {
			return errorf(KindNotFound, "list %s not found", card.ListID)
		}

		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM card_templates WHERE id = ?`, card.TemplateID).Scan(&n); err != nil {
			return fmt.Errorf("failed to check template: %w", err)
		}
		if n == 0 {
			return errorf(KindNotFound, "template %s not found", card.TemplateID)
		}

		if card.ParentFolderID != "" {
			parent, err := getCardRowTx(ctx, tx, card.ParentFolderID)
			if err != nil {
				return err
			}
			if !parent.IsFolder {
				return errorf(KindValidationFailed, "card %s is not a folder", parent.ID)
			}
			if parent.ListID != card.ListID {
				return errorf(KindValidationFailed, "folder %s belongs to a different list", parent.ID)
			}
			if parent.FolderLevel >= schema.MaxFolderLevel {
				return errorf(KindDepthExceeded,
					"folder nesting depth limit of %d levels exceeded", schema.MaxFolderLevel+1)
			}
			card.FolderLevel = parent.FolderLevel + 1
		}

		size, err := bucketSize(ctx, tx, card.ListID, card.ParentFolderID)
		if err != nil {
			return err
		}
		pos := params.Position
		if pos < 0 || pos > size {
			pos = size
		}
		if err := openGap(ctx, tx, card.ListID, card.ParentFolderID, pos); err != nil {
			return err
		}
		card.Position = pos

		now := nowStamp()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cards (
				id, list_id, template_id, name, field_values, position,
				parent_folder_id, folder_level, is_folder, is_expanded,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			card.ID, card.ListID, card.TemplateID, card.Name, valuesJSON, card.Position,
			nullable(card.ParentFolderID), card.FolderLevel,
			boolToInt(card.IsFolder), boolToInt(card.IsExpanded),
			now, now)
		if err != nil {
			return fmt.Errorf("failed to insert card: %w", err)
		}
		return stampModified(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCard(ctx, card.ID)
}

// CardPatch carries partial card updates. Containment and ordering changes go
// through MoveCard, not here.
type CardPatch struct {
	Name        *string
	FieldValues *schema.FieldValues
}

// UpdateCard applies a patch and bumps updated_at.
func (s *Store) UpdateCard(ctx context.Context, id string, patch CardPatch) (*schema.PopulatedCard, error) {
	if patch.Name != nil {
		if *patch.Name == "" || len(*patch.Name) > 200 {
			return nil, errorf(KindValidationFailed, "card name must be 1-200 characters (got %d)", len(*patch.Name))
		}
	}

	if _, err := s.GetCard(ctx, id); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if patch.Name != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE cards SET name = ? WHERE id = ?`, *patch.Name, id); err != nil {
				return fmt.Errorf("failed to rename card: %w", err)
			}
		}
		if patch.FieldValues != nil {
			valuesJSON, err := schema.EncodeValues(*patch.FieldValues)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE cards SET field_values = ? WHERE id = ?`, valuesJSON, id); err != nil {
				return fmt.Errorf("failed to update card values: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cards SET updated_at = ? WHERE id = ?`, nowStamp(), id); err != nil {
			return fmt.Errorf("failed to bump card updated_at: %w", err)
		}
		return stampModified(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.GetCard(ctx, id)
}

// DeleteCard removes a card. Folder cards cascade to their whole subtree via
// the parent_folder_id foreign key. The source bucket's gap closes in the
// same transaction.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		card, err := getCardRowTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete card: %w", err)
		}
		if err := closeGap(ctx, tx, card.ListID, card.ParentFolderID, card.Position); err != nil {
			return err
		}
		return stampModified(ctx, tx)
	})
}

// cardRow is the minimal card shape read inside move/delete transactions.
type cardRow struct {
	ID             string
	ListID         string
	ParentFolderID string
	Position       int
	FolderLevel    int
	IsFolder       bool
	IsExpanded     bool
}

func getCardRowTx(ctx context.Context, tx *sql.Tx, id string) (*cardRow, error) {
	var c cardRow
	var parent sql.NullString
	var isFolder, isExpanded int
	err := tx.QueryRowContext(ctx, `
		SELECT id, list_id, parent_folder_id, position, folder_level, is_folder, is_expanded
		FROM cards WHERE id = ?`, id).
		Scan(&c.ID, &c.ListID, &parent, &c.Position, &c.FolderLevel, &isFolder, &isExpanded)
	if err == sql.ErrNoRows {
		return nil, errorf(KindNotFound, "card %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read card %s: %w", id, err)
	}
	c.ParentFolderID = parent.String
	c.IsFolder = isFolder != 0
	c.IsExpanded = isExpanded != 0
	return &c, nil
}

// bucketWhere returns the WHERE fragment and args selecting one ordering
// bucket: the root of a list, or the children of one folder.
func bucketWhere(listID, parentID string) (string, []interface{}) {
	if parentID == "" {
		return "list_id = ? AND parent_folder_id IS NULL", []interface{}{listID}
	}
	return "list_id = ? AND parent_folder_id = ?", []interface{}{listID, parentID}
}

func bucketSize(ctx context.Context, tx *sql.Tx, listID, parentID string) (int, error) {
	where, args := bucketWhere(listID, parentID)
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE `+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to measure bucket: %w", err)
	}
	return n, nil
}

// openGap shifts every sibling at or after index one position right.
func openGap(ctx context.Context, tx *sql.Tx, listID, parentID string, index int) error {
	where, args := bucketWhere(listID, parentID)
	args = append(args, index)
	_, err := tx.ExecContext(ctx,
		`UPDATE cards SET position = position + 1 WHERE `+where+` AND position >= ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to open position gap: %w", err)
	}
	return nil
}

// closeGap shifts every sibling after the removed position one left.
func closeGap(ctx context.Context, tx *sql.Tx, listID, parentID string, removed int) error {
	where, args := bucketWhere(listID, parentID)
	args = append(args, removed)
	_, err := tx.ExecContext(ctx,
		`UPDATE cards SET position = position - 1 WHERE `+where+` AND position > ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to close position gap: %w", err)
	}
	return nil
}

func scanPopulatedCards(rows *sql.Rows) ([]*schema.PopulatedCard, error) {
	var cards []*schema.PopulatedCard
	for rows.Next() {
		card, err := scanPopulatedCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	return cards, nil
}

func scanPopulatedCard(row rowScanner) (*schema.PopulatedCard, error) {
	var card schema.PopulatedCard
	var valuesJSON, createdAt, updatedAt string
	var parent, tplIcon, tplColor sql.NullString
	var isFolder, isExpanded int
	var tplDefs, tplCreated, tplUpdated string

	err := row.Scan(
		&card.ID, &card.ListID, &card.TemplateID, &card.Name, &valuesJSON, &card.Position,
		&createdAt, &updatedAt,
		&parent, &card.FolderLevel, &isFolder, &isExpanded,
		&card.Template.ID, &card.Template.Name, &tplIcon, &tplColor,
		&tplDefs, &tplCreated, &tplUpdated,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan card: %w", err)
	}

	card.CreatedAt = parseStamp(createdAt)
	card.UpdatedAt = parseStamp(updatedAt)
	card.ParentFolderID = parent.String
	card.IsFolder = isFolder != 0
	card.IsExpanded = isExpanded != 0

	values, err := schema.DecodeValues(valuesJSON)
	if err != nil {
		return nil, err
	}
	card.FieldValues = values

	card.Template.Icon = tplIcon.String
	card.Template.Color = tplColor.String
	card.Template.CreatedAt = parseStamp(tplCreated)
	card.Template.UpdatedAt = parseStamp(tplUpdated)
	defs, err := schema.UnmarshalDefinitions(tplDefs)
	if err != nil {
		return nil, err
	}
	card.Template.FieldDefinitions = defs

	return &card, nil
}
