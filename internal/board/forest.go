// Package board models a list's cards as a containment forest: root items
// and nested folder subtrees. The forest is a parent-indexed arena (id -> node
// plus a children index) built from flat rows, so ancestor and depth checks
// for move validation never walk a recursive object graph.
package board

import (
	"fmt"
	"sort"

	"github.com/mwinters/loreboard/internal/schema"
)

// Node is the minimal card shape the forest needs.
type Node struct {
	ID       string
	ListID   string
	ParentID string // empty at root
	Level    int
	Position int
	IsFolder bool
}

// Forest indexes nodes by id and by parent for O(1) lookups during move
// validation.
type Forest struct {
	nodes    map[string]*Node
	children map[string][]*Node // parent id ("" for root) -> ordered children
}

// Build constructs a forest from flat rows. Children are ordered by position
// within each parent bucket.
func Build(rows []Node) *Forest {
	f := &Forest{
		nodes:    make(map[string]*Node, len(rows)),
		children: make(map[string][]*Node),
	}
	for i := range rows {
		n := rows[i]
		f.nodes[n.ID] = &n
	}
	for _, n := range f.nodes {
		f.children[n.ParentID] = append(f.children[n.ParentID], n)
	}
	for parent := range f.children {
		kids := f.children[parent]
		sort.Slice(kids, func(i, j int) bool { return kids[i].Position < kids[j].Position })
	}
	return f
}

// Get returns the node with the given id, or nil.
func (f *Forest) Get(id string) *Node {
	return f.nodes[id]
}

// Children returns the ordered children of the given parent id. Pass the
// empty string for root-level nodes.
func (f *Forest) Children(parentID string) []*Node {
	return f.children[parentID]
}

// IsDescendant reports whether candidate is id itself or lies anywhere in
// id's subtree. Used to reject moves of a folder into its own contents.
func (f *Forest) IsDescendant(id, candidate string) bool {
	if id == candidate {
		return true
	}
	n := f.nodes[candidate]
	for n != nil && n.ParentID != "" {
		if n.ParentID == id {
			return true
		}
		n = f.nodes[n.ParentID]
	}
	return false
}

// Descendants returns every node in id's subtree, not including id itself.
func (f *Forest) Descendants(id string) []*Node {
	var out []*Node
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range f.children[cur] {
			out = append(out, child)
			stack = append(stack, child.ID)
		}
	}
	return out
}

// SubtreeDepth returns the number of levels below id: 0 for a leaf, 1 for a
// folder with only direct children, and so on.
func (f *Forest) SubtreeDepth(id string) int {
	depth := 0
	for _, child := range f.children[id] {
		if d := f.SubtreeDepth(child.ID) + 1; d > depth {
			depth = d
		}
	}
	return depth
}

// CheckMove validates moving cardID under destParentID (empty for root).
// It returns a DepthExceeded-shaped error when the destination folder is
// already at the maximum level or the moved subtree would not fit, and a
// cycle error when the destination lies inside the moved card's own subtree.
func (f *Forest) CheckMove(cardID, destParentID string) error {
	if destParentID == "" {
		return nil
	}
	parent := f.nodes[destParentID]
	if parent == nil {
		return fmt.Errorf("destination folder %s not found", destParentID)
	}
	if !parent.IsFolder {
		return fmt.Errorf("destination card %s is not a folder", destParentID)
	}
	if f.IsDescendant(cardID, destParentID) {
		return ErrCycle
	}
	if parent.Level >= schema.MaxFolderLevel {
		return ErrDepth
	}
	// The whole subtree shifts down with the card; its deepest node must
	// still fit under MaxFolderLevel.
	if parent.Level+1+f.SubtreeDepth(cardID) > schema.MaxFolderLevel {
		return ErrDepth
	}
	return nil
}

// ErrCycle and ErrDepth are sentinel results of CheckMove, translated into
// the storage error taxonomy by the caller.
var (
	ErrCycle = fmt.Errorf("cannot move a folder into its own subtree")
	ErrDepth = fmt.Errorf("folder nesting depth limit of %d levels exceeded", schema.MaxFolderLevel+1)
)

// ValidatePositions reports the first dense-ordering violation among each
// parent's children: positions must be exactly 0..n-1 with no duplicates.
func (f *Forest) ValidatePositions() error {
	for parent, kids := range f.children {
		for i, n := range kids {
			if n.Position != i {
				label := parent
				if label == "" {
					label = "root"
				}
				return fmt.Errorf("bucket %s: child %s has position %d, want %d", label, n.ID, n.Position, i)
			}
		}
	}
	return nil
}
