package storage

import (
	"context"
	"testing"

	"github.com/mwinters/loreboard/internal/schema"
)

// chain builds a folder chain in the given list, one folder per level, and
// returns them outermost first.
func chain(t *testing.T, s *Store, listID, tplID string, depth int) []*schema.PopulatedCard {
	t.Helper()
	var folders []*schema.PopulatedCard
	parent := ""
	for i := 0; i < depth; i++ {
		f := mkCard(t, s, listID, tplID, "folder", parent, true)
		folders = append(folders, f)
		parent = f.ID
	}
	return folders
}

func TestMoveCard_ToFrontScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := mkTemplate(t, s, "Character")
	list := mkList(t, s, "Characters")
	mkCard(t, s, list.ID, tpl.ID, "A", "", false)
	mkCard(t, s, list.ID, tpl.ID, "B", "", false)
	c := mkCard(t, s, list.ID, tpl.ID, "C", "", false)

	if err := s.MoveCard(ctx, c.ID, Destination{ListID: list.ID, Index: 0}); err != nil {
		t.Fatalf("MoveCard() failed: %v", err)
	}

	got := bucketNames(t, s, list.ID, "")
	want := []string{"C", "A", "B"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestMoveCard_DensityAfterArbitrarySequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := mkTemplate(t, s, "Character")
	list := mkList(t, s, "Characters")
	other := mkList(t, s, "Graveyard")

	a := mkCard(t, s, list.ID, tpl.ID, "a", "", false)
	b := mkCard(t, s, list.ID, tpl.ID, "b", "", false)
	c := mkCard(t, s, list.ID, tpl.ID, "c", "", false)
	d := mkCard(t, s, list.ID, tpl.ID, "d", "", false)

	steps := []struct {
		card string
		dest Destination
	}{
		{b.ID, Destination{ListID: list.ID, Index: 3}},     // a c d b
		{a.ID, Destination{ListID: other.ID, Index: 0}},    // cross-list
		{d.ID, Destination{ListID: list.ID, Index: 0}},     // d c b
		{c.ID, Destination{ListID: other.ID, Index: 99}},   // clamped append
		{a.ID, Destination{ListID: list.ID, Index: 1}},     // back again
	}
	for i, step := range steps {
		if err := s.MoveCard(ctx, step.card, step.dest); err != nil {
			t.Fatalf("step %d: MoveCard() failed: %v", i, err)
		}
		// Both root buckets stay dense after every step.
		bucketNames(t, s, list.ID, "")
		bucketNames(t, s, other.ID, "")
	}

	if got := bucketNames(t, s, list.ID, ""); len(got) != 3 {
		t.Fatalf("list bucket = %v, want 3 cards", got)
	}
	if got := bucketNames(t, s, other.ID, ""); len(got) != 1 || got[0] != "c" {
		t.Fatalf("other bucket = %v, want [c]", got)
	}

	if err := s.DeleteCard(ctx, b.ID); err != nil {
		t.Fatalf("DeleteCard() failed: %v", err)
	}
	bucketNames(t, s, list.ID, "")
}

func TestMoveCard_FolderBucketsIndependent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := mkTemplate(t, s, "Note")
	list := mkList(t, s, "Board")
	folder := mkCard(t, s, list.ID, tpl.ID, "Folder", "", true)
	mkCard(t, s, list.ID, tpl.ID, "root1", "", false)
	mkCard(t, s, list.ID, tpl.ID, "root2", "", false)
	x := mkCard(t, s, list.ID, tpl.ID, "x", folder.ID, false)
	mkCard(t, s, list.ID, tpl.ID, "y", folder.ID, false)

	// Folder children occupy their own dense position space starting at 0,
	// independent of root-level positions.
	if got := bucketNames(t, s, list.ID, folder.ID); got[0] != "x" || got[1] != "y" {
		t.Fatalf("folder bucket = %v, want [x y]", got)
	}
	bucketNames(t, s, list.ID, "")

	// Reordering inside the folder leaves the root bucket untouched.
	if err := s.MoveCard(ctx, x.ID, Destination{ListID: list.ID, ParentFolderID: folder.ID, Index: 1}); err != nil {
		t.Fatalf("MoveCard() failed: %v", err)
	}
	if got := bucketNames(t, s, list.ID, folder.ID); got[0] != "y" || got[1] != "x" {
		t.Fatalf("folder bucket = %v, want [y x]", got)
	}
	if got := bucketNames(t, s, list.ID, ""); len(got) != 3 {
		t.Fatalf("root bucket = %v, want 3 entries", got)
	}

	// Moving out of the folder into root: folder bucket closes its gap.
	if err := s.MoveCard(ctx, x.ID, Destination{ListID: list.ID, Index: 0}); err != nil {
		t.Fatalf("MoveCard() to root failed: %v", err)
	}
	if got := bucketNames(t, s, list.ID, folder.ID); len(got) != 1 || got[0] != "y" {
		t.Fatalf("folder bucket = %v, want [y]", got)
	}
	moved, err := s.GetCard(ctx, x.ID)
	if err != nil {
		t.Fatalf("GetCard() failed: %v", err)
	}
	if moved.ParentFolderID != "" || moved.FolderLevel != 0 || moved.Position != 0 {
		t.Errorf("moved card = %+v, want root at position 0", moved.Card)
	}
}

func TestMoveCard_CycleRejectedLeavesPositionsUnchanged(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := mkTemplate(t, s, "Note")
	list := mkList(t, s, "Board")
	folders := chain(t, s, list.ID, tpl.ID, 3)
	outer, inner := folders[0], folders[2]
	mkCard(t, s, list.ID, tpl.ID, "sibling", "", false)

	before := bucketNames(t, s, list.ID, "")

	err := s.MoveCard(ctx, outer.ID, Destination{ListID: list.ID, ParentFolderID: inner.ID, Index: 0})
	if !IsCycleRejected(err) {
		t.Fatalf("move into own subtree: err = %v, want CycleRejected", err)
	}
	err = s.MoveCard(ctx, outer.ID, Destination{ListID: list.ID, ParentFolderID: outer.ID, Index: 0})
	if !IsCycleRejected(err) {
		t.Fatalf("move into itself: err = %v, want CycleRejected", err)
	}

	after := bucketNames(t, s, list.ID, "")
	if len(before) != len(after) {
		t.Fatalf("root bucket changed: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("root bucket changed: %v -> %v", before, after)
		}
	}
	// The rejected move also leaves levels alone.
	got, err := s.GetCard(ctx, outer.ID)
	if err != nil {
		t.Fatalf("GetCard() failed: %v", err)
	}
	if got.FolderLevel != 0 || got.ParentFolderID != "" {
		t.Errorf("outer folder = %+v, want untouched root folder", got.Card)
	}
}

func TestMoveCard_DepthLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := mkTemplate(t, s, "Note")
	list := mkList(t, s, "Board")
	folders := chain(t, s, list.ID, tpl.ID, 5) // levels 0..4
	deepest := folders[4]
	if deepest.FolderLevel != schema.MaxFolderLevel {
		t.Fatalf("deepest folder level = %d, want %d", deepest.FolderLevel, schema.MaxFolderLevel)
	}

	card := mkCard(t, s, list.ID, tpl.ID, "leaf", "", false)

	// Moving into the level-3 folder succeeds (card lands at level 4).
	if err := s.MoveCard(ctx, card.ID, Destination{ListID: list.ID, ParentFolderID: folders[3].ID, Index: 0}); err != nil {
		t.Fatalf("move to level-4 slot failed: %v", err)
	}

	// One level deeper is rejected.
	err := s.MoveCard(ctx, card.ID, Destination{ListID: list.ID, ParentFolderID: deepest.ID, Index: 0})
	if !IsDepthExceeded(err) {
		t.Fatalf("move below max depth: err = %v, want DepthExceeded", err)
	}

	// Creating directly under the level-4 folder is rejected too.
	_, err = s.CreateCard(ctx, CreateCardParams{
		ListID: list.ID, TemplateID: tpl.ID, Name: "too deep",
		Position: -1, ParentFolderID: deepest.ID,
	})
	if !IsDepthExceeded(err) {
		t.Fatalf("create below max depth: err = %v, want DepthExceeded", err)
	}
}

func TestMoveCard_SubtreeFollowsAcrossLists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := mkTemplate(t, s, "Note")
	src := mkList(t, s, "Source")
	dst := mkList(t, s, "Destination")

	folder := mkCard(t, s, src.ID, tpl.ID, "Folder", "", true)
	child := mkCard(t, s, src.ID, tpl.ID, "child", folder.ID, false)
	sub := mkCard(t, s, src.ID, tpl.ID, "Sub", folder.ID, true)
	grand := mkCard(t, s, src.ID, tpl.ID, "grand", sub.ID, false)

	if err := s.MoveCard(ctx, folder.ID, Destination{ListID: dst.ID, Index: 0}); err != nil {
		t.Fatalf("cross-list folder move failed: %v", err)
	}

	for _, id := range []string{folder.ID, child.ID, sub.ID, grand.ID} {
		card, err := s.GetCard(ctx, id)
		if err != nil {
			t.Fatalf("GetCard() failed: %v", err)
		}
		if card.ListID != dst.ID {
			t.Errorf("card %s still in list %s, want %s", card.Name, card.ListID, dst.ID)
		}
	}

	// Levels are preserved relative to the moved root.
	g, _ := s.GetCard(ctx, grand.ID)
	if g.FolderLevel != 2 {
		t.Errorf("grand.FolderLevel = %d, want 2", g.FolderLevel)
	}
	bucketNames(t, s, src.ID, "")
	bucketNames(t, s, dst.ID, "")
}

func TestMoveCard_NotFound(t *testing.T) {
	s := newTestStore(t)
	list := mkList(t, s, "Board")

	err := s.MoveCard(context.Background(), "missing", Destination{ListID: list.ID, Index: 0})
	if !IsNotFound(err) {
		t.Errorf("move unknown card: err = %v, want NotFound", err)
	}
}

func TestDeleteFolder_CascadesTransitively(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := mkTemplate(t, s, "Note")
	list := mkList(t, s, "Board")

	folder := mkCard(t, s, list.ID, tpl.ID, "Folder", "", true)
	sub := mkCard(t, s, list.ID, tpl.ID, "Sub", folder.ID, true)
	mkCard(t, s, list.ID, tpl.ID, "leaf1", sub.ID, false)
	mkCard(t, s, list.ID, tpl.ID, "leaf2", folder.ID, false)
	survivor := mkCard(t, s, list.ID, tpl.ID, "survivor", "", false)

	if err := s.DeleteCard(ctx, folder.ID); err != nil {
		t.Fatalf("DeleteCard(folder) failed: %v", err)
	}

	var remaining int
	if err := s.conn.QueryRow(`SELECT COUNT(*) FROM cards`).Scan(&remaining); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if remaining != 1 {
		t.Errorf("%d cards remain, want only the survivor", remaining)
	}

	// No dangling parent references.
	var dangling int
	err := s.conn.QueryRow(`
		SELECT COUNT(*) FROM cards
		WHERE parent_folder_id IS NOT NULL
		  AND parent_folder_id NOT IN (SELECT id FROM cards)`).Scan(&dangling)
	if err != nil {
		t.Fatalf("dangling query failed: %v", err)
	}
	if dangling != 0 {
		t.Errorf("%d cards with dangling parent_folder_id", dangling)
	}

	if got := bucketNames(t, s, list.ID, ""); len(got) != 1 || got[0] != "survivor" {
		t.Fatalf("root bucket = %v, want [survivor]", got)
	}
	_ = survivor
}

func TestToggleExpansion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := mkTemplate(t, s, "Note")
	list := mkList(t, s, "Board")
	folder := mkCard(t, s, list.ID, tpl.ID, "Folder", "", true)
	card := mkCard(t, s, list.ID, tpl.ID, "plain", "", false)

	if !folder.IsExpanded {
		t.Fatal("folders default to expanded")
	}
	if err := s.ToggleExpansion(ctx, folder.ID); err != nil {
		t.Fatalf("ToggleExpansion() failed: %v", err)
	}
	got, _ := s.GetCard(ctx, folder.ID)
	if got.IsExpanded {
		t.Error("folder still expanded after toggle")
	}

	// Non-folder and unknown targets are silent no-ops.
	if err := s.ToggleExpansion(ctx, card.ID); err != nil {
		t.Errorf("ToggleExpansion on non-folder: %v", err)
	}
	if err := s.ToggleExpansion(ctx, "missing"); err != nil {
		t.Errorf("ToggleExpansion on unknown id: %v", err)
	}

	if err := s.SetExpanded(ctx, folder.ID, true); err != nil {
		t.Fatalf("SetExpanded() failed: %v", err)
	}
	got, _ = s.GetCard(ctx, folder.ID)
	if !got.IsExpanded {
		t.Error("folder not expanded after SetExpanded(true)")
	}
}

func TestReorderCards_KeepsBucket(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tpl := mkTemplate(t, s, "Note")
	list := mkList(t, s, "Board")
	folder := mkCard(t, s, list.ID, tpl.ID, "Folder", "", true)
	a := mkCard(t, s, list.ID, tpl.ID, "a", folder.ID, false)
	mkCard(t, s, list.ID, tpl.ID, "b", folder.ID, false)

	// Same-list reorder keeps the card inside its folder.
	if err := s.ReorderCards(ctx, list.ID, a.ID, 1); err != nil {
		t.Fatalf("ReorderCards() failed: %v", err)
	}
	if got := bucketNames(t, s, list.ID, folder.ID); got[0] != "b" || got[1] != "a" {
		t.Fatalf("folder bucket = %v, want [b a]", got)
	}

	// Cross-list reorder drops the card at the destination root.
	other := mkList(t, s, "Other")
	if err := s.ReorderCards(ctx, other.ID, a.ID, 0); err != nil {
		t.Fatalf("cross-list ReorderCards() failed: %v", err)
	}
	moved, _ := s.GetCard(ctx, a.ID)
	if moved.ListID != other.ID || moved.ParentFolderID != "" {
		t.Errorf("moved card = %+v, want root of other list", moved.Card)
	}
}
