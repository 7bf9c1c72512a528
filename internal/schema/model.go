package schema

import (
	"fmt"
	"regexp"
	"time"
)

// MaxFolderLevel is the deepest folder_level a card may occupy. Nesting a
// card under a folder whose own level is already MaxFolderLevel is rejected.
const MaxFolderLevel = 4

// CampaignMeta is the singleton metadata record for a campaign file.
// modified_at is refreshed as part of every mutating transaction.
type CampaignMeta struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	ModifiedAt  string `json:"modified_at"`
	Version     string `json:"version"`
}

// CardTemplate is a named, reusable field schema shared by many cards.
type CardTemplate struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Icon             string            `json:"icon"`
	Color            string            `json:"color,omitempty"`
	FieldDefinitions []FieldDefinition `json:"field_definitions"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Validate checks template-level constraints: name length, color format, and
// the field list.
func (t *CardTemplate) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if len(t.Name) > 100 {
		return fmt.Errorf("template name must be 100 characters or less (got %d)", len(t.Name))
	}
	if t.Color != "" && !hexColorPattern.MatchString(t.Color) {
		return fmt.Errorf("template color %q must be a 6-digit hex color like #3B82F6", t.Color)
	}
	return ValidateDefinitions(t.FieldDefinitions)
}

// FieldByKey returns the definition with the given key, or nil.
func (t *CardTemplate) FieldByKey(key string) *FieldDefinition {
	for i := range t.FieldDefinitions {
		if t.FieldDefinitions[i].Key == key {
			return &t.FieldDefinitions[i]
		}
	}
	return nil
}

// List is a board column: a root-level ordered container of cards.
type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	Collapsed bool      `json:"collapsed"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks list-level constraints.
func (l *List) Validate() error {
	if l.Name == "" {
		return fmt.Errorf("list name is required")
	}
	if len(l.Name) > 100 {
		return fmt.Errorf("list name must be 100 characters or less (got %d)", len(l.Name))
	}
	if l.Position < 0 {
		return fmt.Errorf("list position must be >= 0 (got %d)", l.Position)
	}
	return nil
}

// Card is a single entity on the board, shaped by its template. A card with
// IsFolder set may contain other cards via ParentFolderID.
type Card struct {
	ID             string      `json:"id"`
	ListID         string      `json:"list_id"`
	TemplateID     string      `json:"template_id"`
	Name           string      `json:"name"`
	FieldValues    FieldValues `json:"field_values"`
	Position       int         `json:"position"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	ParentFolderID string      `json:"parent_folder_id,omitempty"`
	FolderLevel    int         `json:"folder_level"`
	IsFolder       bool        `json:"is_folder"`
	IsExpanded     bool        `json:"is_expanded"`
}

// Validate checks card-level constraints.
func (c *Card) Validate() error {
	if c.ListID == "" {
		return fmt.Errorf("card list_id is required")
	}
	if c.TemplateID == "" {
		return fmt.Errorf("card template_id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("card name is required")
	}
	if len(c.Name) > 200 {
		return fmt.Errorf("card name must be 200 characters or less (got %d)", len(c.Name))
	}
	if c.FolderLevel < 0 || c.FolderLevel > MaxFolderLevel {
		return fmt.Errorf("card folder_level must be between 0 and %d (got %d)", MaxFolderLevel, c.FolderLevel)
	}
	return nil
}

// PopulatedCard is a card joined with its template, the shape handed to
// callers of the read operations.
type PopulatedCard struct {
	Card
	Template CardTemplate `json:"template"`
}

// CardLink is a directed, field-scoped edge between two cards. Links are
// independent of containment; reordering and re-parenting never touch them.
type CardLink struct {
	ID           string    `json:"id"`
	SourceCardID string    `json:"source_card_id"`
	TargetCardID string    `json:"target_card_id"`
	FieldKey     string    `json:"field_key"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate checks link-level constraints. Self-links are rejected here,
// before the database sees them.
func (cl *CardLink) Validate() error {
	if cl.SourceCardID == "" {
		return fmt.Errorf("link source_card_id is required")
	}
	if cl.TargetCardID == "" {
		return fmt.Errorf("link target_card_id is required")
	}
	if cl.FieldKey == "" {
		return fmt.Errorf("link field_key is required")
	}
	if cl.SourceCardID == cl.TargetCardID {
		return fmt.Errorf("a card cannot link to itself")
	}
	return nil
}

// Backlink describes an incoming link: who points at this card, and through
// which field.
type Backlink struct {
	ID             string `json:"id"`
	SourceCardID   string `json:"source_card_id"`
	SourceCardName string `json:"source_card_name"`
	FieldKey       string `json:"field_key"`
	FieldLabel     string `json:"field_label"`
}

// ImageBlob is a stored image. Size limits are advisory and enforced by the
// caller, not the storage layer.
type ImageBlob struct {
	ID        string    `json:"id"`
	MimeType  string    `json:"mime_type"`
	Data      []byte    `json:"-"`
	SizeBytes int       `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
