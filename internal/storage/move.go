package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwinters/loreboard/internal/board"
)

// Destination names where a card lands: a list, an optional containing
// folder (empty for the list root), and the index among the destination
// bucket's siblings. Index is clamped to [0, bucket size].
type Destination struct {
	ListID         string
	ParentFolderID string
	Index          int
}

// MoveCard re-parents and re-orders a card in one atomic transaction:
//
//  1. the card's old sibling bucket closes its gap,
//  2. the destination bucket opens a gap at the clamped index,
//  3. the card's list, parent, level, and position are rewritten, and the
//     levels and list of its whole subtree shift with it,
//  4. the campaign modified_at stamp refreshes.
//
// Moves into the card's own subtree fail with CycleRejected; moves that
// would push any node past the maximum folder depth fail with DepthExceeded.
// Either way no positions change.
func (s *Store) MoveCard(ctx context.Context, cardID string, dest Destination) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		card, err := getCardRowTx(ctx, tx, cardID)
		if err != nil {
			return err
		}

		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM lists WHERE id = ?`, dest.ListID).Scan(&n); err != nil {
			return fmt.Errorf("failed to check destination list: %w", err)
		}
		if n == 0 {
			return errorf(KindNotFound, "list %s not found", dest.ListID)
		}

		forest, err := loadForest(ctx, tx, card.ListID, dest.ListID)
		if err != nil {
			return err
		}

		newLevel := 0
		if dest.ParentFolderID != "" {
			if err := forest.CheckMove(cardID, dest.ParentFolderID); err != nil {
				switch {
				case errors.Is(err, board.ErrCycle):
					return &Error{Kind: KindCycleRejected, Msg: err.Error()}
				case errors.Is(err, board.ErrDepth):
					return &Error{Kind: KindDepthExceeded, Msg: err.Error()}
				default:
					return &Error{Kind: KindValidationFailed, Msg: err.Error()}
				}
			}
			parent := forest.Get(dest.ParentFolderID)
			if parent.ListID != dest.ListID {
				return errorf(KindValidationFailed,
					"folder %s belongs to a different list", dest.ParentFolderID)
			}
			newLevel = parent.Level + 1
		}

		// Close the gap the card leaves behind.
		if err := closeGap(ctx, tx, card.ListID, card.ParentFolderID, card.Position); err != nil {
			return err
		}

		// Measure the destination bucket after the removal, then open a gap.
		size, err := bucketSize(ctx, tx, dest.ListID, dest.ParentFolderID)
		if err != nil {
			return err
		}
		// The card row hasn't moved yet, so a same-bucket COUNT still
		// includes it.
		if dest.ListID == card.ListID && dest.ParentFolderID == card.ParentFolderID {
			size--
		}
		index := dest.Index
		if index < 0 || index > size {
			index = size
		}
		if err := openGap(ctx, tx, dest.ListID, dest.ParentFolderID, index); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE cards SET list_id = ?, parent_folder_id = ?, folder_level = ?, position = ?
			WHERE id = ?`,
			dest.ListID, nullable(dest.ParentFolderID), newLevel, index, cardID)
		if err != nil {
			return fmt.Errorf("failed to move card: %w", err)
		}

		// The subtree follows: every descendant shifts by the same level
		// delta and lands in the destination list.
		levelDelta := newLevel - card.FolderLevel
		if levelDelta != 0 || dest.ListID != card.ListID {
			for _, desc := range forest.Descendants(cardID) {
				_, err := tx.ExecContext(ctx, `
					UPDATE cards SET list_id = ?, folder_level = folder_level + ?
					WHERE id = ?`,
					dest.ListID, levelDelta, desc.ID)
				if err != nil {
					return fmt.Errorf("failed to shift descendant %s: %w", desc.ID, err)
				}
			}
		}

		return stampModified(ctx, tx)
	})
}

// ReorderCards is the board-surface move operation: it keeps the card in its
// current containment bucket when the list is unchanged, and moves it to the
// destination list's root otherwise.
func (s *Store) ReorderCards(ctx context.Context, listID, cardID string, newIndex int) error {
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return err
	}
	parent := ""
	if card.ListID == listID {
		parent = card.ParentFolderID
	}
	return s.MoveCard(ctx, cardID, Destination{
		ListID:         listID,
		ParentFolderID: parent,
		Index:          newIndex,
	})
}

// SetExpanded flips a folder's display state. A non-folder target is a
// silent no-op.
func (s *Store) SetExpanded(ctx context.Context, folderID string, expanded bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		card, err := getCardRowTx(ctx, tx, folderID)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return err
		}
		if !card.IsFolder || card.IsExpanded == expanded {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cards SET is_expanded = ? WHERE id = ?`, boolToInt(expanded), folderID); err != nil {
			return fmt.Errorf("failed to update folder expansion: %w", err)
		}
		return stampModified(ctx, tx)
	})
}

// ToggleExpansion flips a folder's expansion flag. Like SetExpanded, it is a
// silent no-op for non-folders.
func (s *Store) ToggleExpansion(ctx context.Context, folderID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		card, err := getCardRowTx(ctx, tx, folderID)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return err
		}
		if !card.IsFolder {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cards SET is_expanded = ? WHERE id = ?`, boolToInt(!card.IsExpanded), folderID); err != nil {
			return fmt.Errorf("failed to toggle folder expansion: %w", err)
		}
		return stampModified(ctx, tx)
	})
}

// loadForest reads the minimal card rows of the involved lists and builds the
// containment forest used for cycle and depth checks. Reading inside the move
// transaction means the checks and the mutation see the same snapshot.
func loadForest(ctx context.Context, tx *sql.Tx, listIDs ...string) (*board.Forest, error) {
	seen := map[string]bool{}
	var nodes []board.Node
	for _, listID := range listIDs {
		if seen[listID] {
			continue
		}
		seen[listID] = true

		rows, err := tx.QueryContext(ctx, `
			SELECT id, list_id, parent_folder_id, folder_level, position, is_folder
			FROM cards WHERE list_id = ?`, listID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cards for list %s: %w", listID, err)
		}
		for rows.Next() {
			var n board.Node
			var parent sql.NullString
			var isFolder int
			if err := rows.Scan(&n.ID, &n.ListID, &parent, &n.Level, &n.Position, &isFolder); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan card row: %w", err)
			}
			n.ParentID = parent.String
			n.IsFolder = isFolder != 0
			nodes = append(nodes, n)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating cards: %w", err)
		}
	}
	return board.Build(nodes), nil
}
