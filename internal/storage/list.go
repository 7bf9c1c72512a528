package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/mwinters/loreboard/internal/schema"
)

// ListLists returns all board lists ordered by position.
func (s *Store) ListLists(ctx context.Context) ([]*schema.List, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, name, position, collapsed, created_at
		FROM lists
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	defer rows.Close()

	var lists []*schema.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lists: %w", err)
	}
	return lists, nil
}

// GetList returns the list with the given id.
func (s *Store) GetList(ctx context.Context, id string) (*schema.List, error) {
	row := s.conn.QueryRowContext(ctx, `
		SELECT id, name, position, collapsed, created_at
		FROM lists WHERE id = ?`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, errorf(KindNotFound, "list %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// CreateListParams carries the caller-supplied list fields. A negative
// Position appends the list at the end of the board.
type CreateListParams struct {
	Name     string
	Position int
}

// CreateList persists a new list and returns it. Positions among lists are
// unique; inserting at an occupied position shifts later lists right.
func (s *Store) CreateList(ctx context.Context, params CreateListParams) (*schema.List, error) {
	l := &schema.List{
		ID:   uuid.NewString(),
		Name: params.Name,
	}
	if err := l.Validate(); err != nil {
		return nil, &Error{Kind: KindValidationFailed, Msg: "invalid list", Err: err}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM lists`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count lists: %w", err)
		}

		pos := params.Position
		if pos < 0 || pos > count {
			pos = count
		}

		// Open a gap at the insertion point.
		if _, err := tx.ExecContext(ctx, `
			UPDATE lists SET position = position + 1 WHERE position >= ?`, pos); err != nil {
			return fmt.Errorf("failed to shift list positions: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lists (id, name, position, collapsed, created_at)
			VALUES (?, ?, ?, 0, ?)`,
			l.ID, l.Name, pos, nowStamp()); err != nil {
			return fmt.Errorf("failed to insert list: %w", err)
		}
		return stampModified(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.GetList(ctx, l.ID)
}

// ListPatch carries partial list updates.
type ListPatch struct {
	Name      *string
	Collapsed *bool
}

// UpdateList applies a patch to a list's name or collapsed flag. Ordering
// changes go through MoveList instead.
func (s *Store) UpdateList(ctx context.Context, id string, patch ListPatch) (*schema.List, error) {
	if patch.Name != nil {
		probe := schema.List{ID: id, Name: *patch.Name}
		if err := probe.Validate(); err != nil {
			return nil, &Error{Kind: KindValidationFailed, Msg: "invalid list", Err: err}
		}
	}

	if _, err := s.GetList(ctx, id); err != nil {
		return nil, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if patch.Name != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE lists SET name = ? WHERE id = ?`, *patch.Name, id); err != nil {
				return fmt.Errorf("failed to rename list: %w", err)
			}
		}
		if patch.Collapsed != nil {
			if _, err := tx.ExecContext(ctx,
				`UPDATE lists SET collapsed = ? WHERE id = ?`, boolToInt(*patch.Collapsed), id); err != nil {
				return fmt.Errorf("failed to update list collapsed flag: %w", err)
			}
		}
		return stampModified(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.GetList(ctx, id)
}

// MoveList moves a list to a new position on the board, keeping positions
// dense among all lists.
func (s *Store) MoveList(ctx context.Context, id string, newIndex int) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT id FROM lists ORDER BY position`)
		if err != nil {
			return fmt.Errorf("failed to read list order: %w", err)
		}
		var ids []string
		for rows.Next() {
			var lid string
			if err := rows.Scan(&lid); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan list id: %w", err)
			}
			ids = append(ids, lid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("error iterating lists: %w", err)
		}

		from := -1
		for i, lid := range ids {
			if lid == id {
				from = i
				break
			}
		}
		if from == -1 {
			return errorf(KindNotFound, "list %s not found", id)
		}

		ids = append(ids[:from], ids[from+1:]...)
		if newIndex < 0 {
			newIndex = 0
		}
		if newIndex > len(ids) {
			newIndex = len(ids)
		}
		ids = append(ids[:newIndex], append([]string{id}, ids[newIndex:]...)...)

		for i, lid := range ids {
			if _, err := tx.ExecContext(ctx,
				`UPDATE lists SET position = ? WHERE id = ?`, i, lid); err != nil {
				return fmt.Errorf("failed to write list position: %w", err)
			}
		}
		return stampModified(ctx, tx)
	})
}

// DeleteList removes a list and, via foreign key cascade, every card in it.
func (s *Store) DeleteList(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var pos int
		err := tx.QueryRowContext(ctx, `SELECT position FROM lists WHERE id = ?`, id).Scan(&pos)
		if err == sql.ErrNoRows {
			return errorf(KindNotFound, "list %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to read list: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete list: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE lists SET position = position - 1 WHERE position > ?`, pos); err != nil {
			return fmt.Errorf("failed to close list position gap: %w", err)
		}
		return stampModified(ctx, tx)
	})
}

func scanList(row rowScanner) (*schema.List, error) {
	var l schema.List
	var collapsed int
	var createdAt string

	err := row.Scan(&l.ID, &l.Name, &l.Position, &collapsed, &createdAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan list: %w", err)
	}
	l.Collapsed = collapsed != 0
	l.CreatedAt = parseStamp(createdAt)
	return &l, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
