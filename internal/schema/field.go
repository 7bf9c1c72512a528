// Package schema defines the campaign data model: templates, lists, cards,
// links, and the typed field system that shapes a card's custom values.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// FieldType identifies the kind of value a field holds and which editor the
// UI renders for it.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldLongText    FieldType = "longtext"
	FieldNumber      FieldType = "number"
	FieldBoolean     FieldType = "boolean"
	FieldSelect      FieldType = "select"
	FieldMultiSelect FieldType = "multiselect"
	FieldLink        FieldType = "link"
	FieldImage       FieldType = "image"
	FieldDate        FieldType = "date"
	FieldDateTime    FieldType = "datetime"
	FieldColor       FieldType = "color"
	FieldURL         FieldType = "url"
	FieldDice        FieldType = "dice"
)

// IsValid reports whether ft is one of the supported field types.
func (ft FieldType) IsValid() bool {
	switch ft {
	case FieldText, FieldLongText, FieldNumber, FieldBoolean,
		FieldSelect, FieldMultiSelect, FieldLink, FieldImage,
		FieldDate, FieldDateTime, FieldColor, FieldURL, FieldDice:
		return true
	}
	return false
}

// FieldValidation carries the optional constraints a field definition can
// place on its values.
type FieldValidation struct {
	Required bool     `json:"required,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// LinkConfig configures a link-type field. Link values are not stored inline;
// they live in the card_links table keyed by (card, field key). AllowMultiple
// is enforced by the caller, not the storage layer.
type LinkConfig struct {
	AllowMultiple  bool     `json:"allowMultiple"`
	StaticLinkType string   `json:"staticLinkType,omitempty"`
	PreviewFields  []string `json:"previewFields,omitempty"`
}

// FieldDefinition describes one typed field in a template.
type FieldDefinition struct {
	Key           string           `json:"key"`
	Label         string           `json:"label"`
	Type          FieldType        `json:"type"`
	Validation    *FieldValidation `json:"validation,omitempty"`
	LinkConfig    *LinkConfig      `json:"linkConfig,omitempty"`
	Placeholder   string           `json:"placeholder,omitempty"`
	HelpText      string           `json:"helpText,omitempty"`
	DefaultValue  *FieldValue      `json:"defaultValue,omitempty"`
	ShowInPreview bool             `json:"showInPreview,omitempty"`
}

// slugPattern matches the key form used for field identifiers, e.g.
// "hit_points" or "ac-bonus".
var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks a single field definition in isolation.
func (fd *FieldDefinition) Validate() error {
	if fd.Key == "" {
		return fmt.Errorf("field key is required")
	}
	if !slugPattern.MatchString(fd.Key) {
		return fmt.Errorf("field key %q must be slug-form (lowercase letters, digits, '_', '-')", fd.Key)
	}
	if !fd.Type.IsValid() {
		return fmt.Errorf("field %q has unknown type %q", fd.Key, fd.Type)
	}
	if fd.Type == FieldSelect || fd.Type == FieldMultiSelect {
		if fd.Validation == nil || len(fd.Validation.Options) == 0 {
			return fmt.Errorf("field %q of type %s requires validation options", fd.Key, fd.Type)
		}
	}
	if fd.Validation != nil && fd.Validation.Min != nil && fd.Validation.Max != nil {
		if *fd.Validation.Min > *fd.Validation.Max {
			return fmt.Errorf("field %q has min %v greater than max %v", fd.Key, *fd.Validation.Min, *fd.Validation.Max)
		}
	}
	if fd.Validation != nil && fd.Validation.Pattern != "" {
		if _, err := regexp.Compile(fd.Validation.Pattern); err != nil {
			return fmt.Errorf("field %q has invalid pattern: %w", fd.Key, err)
		}
	}
	return nil
}

// ValidateDefinitions checks a template's full field list: each definition
// must be valid on its own and keys must be unique within the list.
func ValidateDefinitions(defs []FieldDefinition) error {
	seen := make(map[string]struct{}, len(defs))
	for i := range defs {
		if err := defs[i].Validate(); err != nil {
			return err
		}
		if _, dup := seen[defs[i].Key]; dup {
			return fmt.Errorf("duplicate field key %q", defs[i].Key)
		}
		seen[defs[i].Key] = struct{}{}
	}
	return nil
}

// ValidateValue checks a value against a field definition's constraints.
// A nil value is acceptable unless the field is required. Link fields carry
// no inline value, so anything other than null is rejected for them.
func ValidateValue(def *FieldDefinition, value *FieldValue) error {
	if value == nil || value.IsNull() {
		if def.Validation != nil && def.Validation.Required {
			return fmt.Errorf("field %q is required", def.Key)
		}
		return nil
	}

	switch def.Type {
	case FieldLink:
		return fmt.Errorf("field %q is a link field; values are stored as card links, not inline", def.Key)
	case FieldNumber:
		n, ok := value.Number()
		if !ok {
			return fmt.Errorf("field %q expects a number", def.Key)
		}
		if v := def.Validation; v != nil {
			if v.Min != nil && n < *v.Min {
				return fmt.Errorf("field %q value %v is below minimum %v", def.Key, n, *v.Min)
			}
			if v.Max != nil && n > *v.Max {
				return fmt.Errorf("field %q value %v is above maximum %v", def.Key, n, *v.Max)
			}
		}
	case FieldBoolean:
		if _, ok := value.Bool(); !ok {
			return fmt.Errorf("field %q expects a boolean", def.Key)
		}
	case FieldSelect:
		s, ok := value.String()
		if !ok {
			return fmt.Errorf("field %q expects a string option", def.Key)
		}
		if !optionAllowed(def, s) {
			return fmt.Errorf("field %q value %q is not one of the allowed options", def.Key, s)
		}
	case FieldMultiSelect:
		items, ok := value.Strings()
		if !ok {
			return fmt.Errorf("field %q expects a list of options", def.Key)
		}
		for _, s := range items {
			if !optionAllowed(def, s) {
				return fmt.Errorf("field %q value %q is not one of the allowed options", def.Key, s)
			}
		}
	default:
		s, ok := value.String()
		if !ok {
			return fmt.Errorf("field %q expects a string", def.Key)
		}
		if v := def.Validation; v != nil && v.Pattern != "" {
			re, err := regexp.Compile(v.Pattern)
			if err != nil {
				return fmt.Errorf("field %q has invalid pattern: %w", def.Key, err)
			}
			if !re.MatchString(s) {
				return fmt.Errorf("field %q value does not match pattern %q", def.Key, v.Pattern)
			}
		}
	}
	return nil
}

func optionAllowed(def *FieldDefinition, s string) bool {
	if def.Validation == nil {
		return false
	}
	for _, opt := range def.Validation.Options {
		if opt == s {
			return true
		}
	}
	return false
}

// ClampNumber clamps n into the field's [min, max] range. Clamping only
// applies when both bounds are set and min < max; otherwise n is returned
// unchanged.
func ClampNumber(def *FieldDefinition, n float64) float64 {
	v := def.Validation
	if v == nil || v.Min == nil || v.Max == nil || *v.Min >= *v.Max {
		return n
	}
	if n < *v.Min {
		return *v.Min
	}
	if n > *v.Max {
		return *v.Max
	}
	return n
}

// NormalizeKey lowercases and slugifies a label into a field key, e.g.
// "Hit Points" -> "hit_points".
func NormalizeKey(label string) string {
	key := strings.ToLower(strings.TrimSpace(label))
	key = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r == ' ', r == '_':
			return '_'
		default:
			return -1
		}
	}, key)
	return strings.Trim(key, "_")
}

// MarshalDefinitions serializes a field list to the JSON array text stored in
// the card_templates row.
func MarshalDefinitions(defs []FieldDefinition) (string, error) {
	if defs == nil {
		defs = []FieldDefinition{}
	}
	data, err := json.Marshal(defs)
	if err != nil {
		return "", fmt.Errorf("failed to marshal field definitions: %w", err)
	}
	return string(data), nil
}

// UnmarshalDefinitions parses the stored JSON array text back into a field
// list. Order is preserved.
func UnmarshalDefinitions(text string) ([]FieldDefinition, error) {
	if text == "" {
		return []FieldDefinition{}, nil
	}
	var defs []FieldDefinition
	if err := json.Unmarshal([]byte(text), &defs); err != nil {
		return nil, fmt.Errorf("failed to parse field definitions: %w", err)
	}
	return defs, nil
}
