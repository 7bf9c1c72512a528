package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mwinters/loreboard/internal/schema"
)

// ListTemplates returns all card templates ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]*schema.CardTemplate, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, icon, color, field_definitions, created_at, updated_at
		FROM card_templates
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*schema.CardTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return templates, nil
}

// GetTemplate returns the template with the given id.
func (s *Store) GetTemplate(ctx context.Context, id string) (*schema.CardTemplate, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, icon, color, field_definitions, created_at, updated_at
		FROM card_templates
		WHERE id = ?`, id)

	tpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, errorf(KindNotFound, "template %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return tpl, nil
}

// CreateTemplateParams carries the caller-supplied template fields.
type CreateTemplateParams struct {
	Name             string
	Icon             string
	Color            string
	FieldDefinitions []schema.FieldDefinition
}

// CreateTemplate persists a new template and returns it.
func (s *Store) CreateTemplate(ctx context.Context, params CreateTemplateParams) (*schema.CardTemplate, error) {
	tpl := &schema.CardTemplate{
		ID:               uuid.NewString(),
		Name:             params.Name,
		Icon:             params.Icon,
		Color:            params.Color,
		FieldDefinitions: params.FieldDefinitions,
	}
	if err := tpl.Validate(); err != nil {
		return nil, &Error{Kind: KindValidationFailed, Msg: "invalid template", Err: err}
	}

	defsJSON, err := schema.MarshalDefinitions(tpl.FieldDefinitions)
	if err != nil {
		return nil, err
	}

	now := nowStamp()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO card_templates (id, name, icon, color, field_definitions, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tpl.ID, tpl.Name, tpl.Icon, nullable(tpl.Color), defsJSON, now, now)
		if err != nil {
			return fmt.Errorf("failed to insert template: %w", err)
		}
		return stampModified(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, tpl.ID)
}

// TemplatePatch carries partial template updates. Nil fields are left
// untouched; a non-nil FieldDefinitions replaces the whole ordered list.
type TemplatePatch struct {
	Name             *string
	Icon             *string
	Color            *string
	FieldDefinitions *[]schema.FieldDefinition
}

// UpdateTemplate merges a patch over the current record and bumps updated_at.
func (s *Store) UpdateTemplate(ctx context.Context, id string, patch TemplatePatch) (*schema.CardTemplate, error) {
	current, err := s.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *current
	if patch.Name != nil {
		updated.Name = *patch.Name
	}
	if patch.Icon != nil {
		updated.Icon = *patch.Icon
	}
	if patch.Color != nil {
		updated.Color = *patch.Color
	}
	if patch.FieldDefinitions != nil {
		updated.FieldDefinitions = *patch.FieldDefinitions
	}
	if err := updated.Validate(); err != nil {
		return nil, &Error{Kind: KindValidationFailed, Msg: "invalid template", Err: err}
	}

	defsJSON, err := schema.MarshalDefinitions(updated.FieldDefinitions)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE card_templates
			SET name = ?, icon = ?, color = ?, field_definitions = ?, updated_at = ?
			WHERE id = ?`,
			updated.Name, updated.Icon, nullable(updated.Color), defsJSON, nowStamp(), id)
		if err != nil {
			return fmt.Errorf("failed to update template: %w", err)
		}
		return stampModified(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.GetTemplate(ctx, id)
}

// DeleteTemplate removes a template. The in-use check runs inside the same
// transaction as the delete, so a card created concurrently cannot slip
// between check and delete.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM card_templates WHERE id = ?`, id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check template: %w", err)
		}
		if exists == 0 {
			return errorf(KindNotFound, "template %s not found", id)
		}

		var inUse int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM cards WHERE template_id = ?`, id).Scan(&inUse)
		if err != nil {
			return fmt.Errorf("failed to count cards using template: %w", err)
		}
		if inUse > 0 {
			return errorf(KindConflict, "cannot delete template: %d cards are using it", inUse)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM card_templates WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete template: %w", err)
		}
		return stampModified(ctx, tx)
	})
}

// rowScanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*schema.CardTemplate, error) {
	var tpl schema.CardTemplate
	var icon, color sql.NullString
	var defsJSON, createdAt, updatedAt string

	err := row.Scan(&tpl.ID, &tpl.Name, &icon, &color, &defsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	tpl.Icon = icon.String
	tpl.Color = color.String
	tpl.CreatedAt = parseStamp(createdAt)
	tpl.UpdatedAt = parseStamp(updatedAt)

	defs, err := schema.UnmarshalDefinitions(defsJSON)
	if err != nil {
		return nil, err
	}
	tpl.FieldDefinitions = defs
	return &tpl, nil
}

// nullable maps the empty string to SQL NULL so CHECK constraints written
// against NULL keep working.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
