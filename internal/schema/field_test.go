package schema

import (
	"strings"
	"testing"
)

func f64(n float64) *float64 { return &n }

func TestFieldDefinition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		def     FieldDefinition
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid text field",
			def:  FieldDefinition{Key: "title", Label: "Title", Type: FieldText},
		},
		{
			name:    "missing key",
			def:     FieldDefinition{Label: "Title", Type: FieldText},
			wantErr: true,
			errMsg:  "field key is required",
		},
		{
			name:    "key not slug-form",
			def:     FieldDefinition{Key: "Hit Points", Label: "HP", Type: FieldNumber},
			wantErr: true,
			errMsg:  "slug-form",
		},
		{
			name:    "unknown type",
			def:     FieldDefinition{Key: "x", Label: "X", Type: FieldType("audio")},
			wantErr: true,
			errMsg:  "unknown type",
		},
		{
			name:    "select without options",
			def:     FieldDefinition{Key: "status", Label: "Status", Type: FieldSelect},
			wantErr: true,
			errMsg:  "requires validation options",
		},
		{
			name: "select with options",
			def: FieldDefinition{
				Key: "status", Label: "Status", Type: FieldSelect,
				Validation: &FieldValidation{Options: []string{"alive", "dead"}},
			},
		},
		{
			name: "min greater than max",
			def: FieldDefinition{
				Key: "hp", Label: "HP", Type: FieldNumber,
				Validation: &FieldValidation{Min: f64(10), Max: f64(1)},
			},
			wantErr: true,
			errMsg:  "min",
		},
		{
			name: "bad pattern",
			def: FieldDefinition{
				Key: "code", Label: "Code", Type: FieldText,
				Validation: &FieldValidation{Pattern: "["},
			},
			wantErr: true,
			errMsg:  "invalid pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Validate() succeeded, want error containing %q", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() failed: %v", err)
			}
		})
	}
}

func TestValidateDefinitions_DuplicateKey(t *testing.T) {
	defs := []FieldDefinition{
		{Key: "hp", Label: "HP", Type: FieldNumber},
		{Key: "hp", Label: "Hit Points", Type: FieldNumber},
	}
	err := ValidateDefinitions(defs)
	if err == nil {
		t.Fatal("ValidateDefinitions() succeeded, want duplicate key error")
	}
	if !strings.Contains(err.Error(), "duplicate field key") {
		t.Errorf("error = %q, want duplicate field key", err.Error())
	}
}

func TestValidateValue(t *testing.T) {
	required := &FieldValidation{Required: true}
	hp := FieldDefinition{
		Key: "hp", Label: "HP", Type: FieldNumber,
		Validation: &FieldValidation{Min: f64(0), Max: f64(100)},
	}
	status := FieldDefinition{
		Key: "status", Label: "Status", Type: FieldSelect,
		Validation: &FieldValidation{Options: []string{"alive", "dead"}},
	}
	tags := FieldDefinition{
		Key: "tags", Label: "Tags", Type: FieldMultiSelect,
		Validation: &FieldValidation{Options: []string{"npc", "villain"}},
	}

	tests := []struct {
		name    string
		def     FieldDefinition
		value   FieldValue
		wantErr bool
	}{
		{"null optional", FieldDefinition{Key: "notes", Type: FieldText}, NullValue(), false},
		{"null required", FieldDefinition{Key: "notes", Type: FieldText, Validation: required}, NullValue(), true},
		{"empty string required", FieldDefinition{Key: "notes", Type: FieldText, Validation: required}, StringValue(""), true},
		{"number in range", hp, NumberValue(50), false},
		{"number below min", hp, NumberValue(-1), true},
		{"number above max", hp, NumberValue(101), true},
		{"number wrong type", hp, StringValue("fifty"), true},
		{"select member", status, StringValue("alive"), false},
		{"select non-member", status, StringValue("undead"), true},
		{"multiselect members", tags, StringsValue([]string{"npc", "villain"}), false},
		{"multiselect non-member", tags, StringsValue([]string{"hero"}), true},
		{"link field with inline value", FieldDefinition{Key: "ally", Type: FieldLink}, StringValue("card-1"), true},
		{"link field null", FieldDefinition{Key: "ally", Type: FieldLink}, NullValue(), false},
		{"boolean ok", FieldDefinition{Key: "done", Type: FieldBoolean}, BoolValue(true), false},
		{"boolean wrong type", FieldDefinition{Key: "done", Type: FieldBoolean}, NumberValue(1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateValue(&tt.def, &tt.value)
			if tt.wantErr && err == nil {
				t.Errorf("ValidateValue() succeeded, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateValue() failed: %v", err)
			}
		})
	}
}

func TestClampNumber(t *testing.T) {
	def := FieldDefinition{
		Key: "hp", Type: FieldNumber,
		Validation: &FieldValidation{Min: f64(0), Max: f64(100)},
	}

	if got := ClampNumber(&def, -5); got != 0 {
		t.Errorf("ClampNumber(-5) = %v, want 0", got)
	}
	if got := ClampNumber(&def, 150); got != 100 {
		t.Errorf("ClampNumber(150) = %v, want 100", got)
	}
	if got := ClampNumber(&def, 42); got != 42 {
		t.Errorf("ClampNumber(42) = %v, want 42", got)
	}

	// min == max disables clamping
	eq := FieldDefinition{
		Key: "lvl", Type: FieldNumber,
		Validation: &FieldValidation{Min: f64(5), Max: f64(5)},
	}
	if got := ClampNumber(&eq, 9); got != 9 {
		t.Errorf("ClampNumber with min==max = %v, want 9 unchanged", got)
	}

	// missing bounds disable clamping
	open := FieldDefinition{Key: "n", Type: FieldNumber, Validation: &FieldValidation{Min: f64(0)}}
	if got := ClampNumber(&open, -3); got != -3 {
		t.Errorf("ClampNumber with only min = %v, want -3 unchanged", got)
	}
}

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"Hit Points", "hit_points"},
		{"AC Bonus!", "ac_bonus"},
		{"  trimmed  ", "trimmed"},
		{"already_slug", "already_slug"},
	}
	for _, tt := range tests {
		if got := NormalizeKey(tt.label); got != tt.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tt.label, got, tt.want)
		}
	}
}
