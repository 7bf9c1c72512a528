package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// FieldValue is the tagged union of values a card field can hold:
// string, number, boolean, a list of strings, or null. The zero value is
// null. Serialization to the JSON blob in the cards row happens only at the
// storage boundary; core logic works with the typed accessors.
type FieldValue struct {
	kind valueKind
	str  string
	num  float64
	b    bool
	list []string
}

type valueKind int

const (
	kindNull valueKind = iota
	kindString
	kindNumber
	kindBool
	kindStrings
)

// NullValue returns the null FieldValue.
func NullValue() FieldValue { return FieldValue{} }

// StringValue wraps a string.
func StringValue(s string) FieldValue { return FieldValue{kind: kindString, str: s} }

// NumberValue wraps a number.
func NumberValue(n float64) FieldValue { return FieldValue{kind: kindNumber, num: n} }

// BoolValue wraps a boolean.
func BoolValue(b bool) FieldValue { return FieldValue{kind: kindBool, b: b} }

// StringsValue wraps an ordered list of strings.
func StringsValue(items []string) FieldValue {
	return FieldValue{kind: kindStrings, list: items}
}

// IsNull reports whether the value is null. An empty string counts as null
// for required-field checks.
func (v FieldValue) IsNull() bool {
	return v.kind == kindNull || (v.kind == kindString && v.str == "")
}

// String returns the string payload, if any.
func (v FieldValue) String() (string, bool) {
	return v.str, v.kind == kindString
}

// Number returns the numeric payload, if any.
func (v FieldValue) Number() (float64, bool) {
	return v.num, v.kind == kindNumber
}

// Bool returns the boolean payload, if any.
func (v FieldValue) Bool() (bool, bool) {
	return v.b, v.kind == kindBool
}

// Strings returns the string-list payload, if any.
func (v FieldValue) Strings() ([]string, bool) {
	return v.list, v.kind == kindStrings
}

// MarshalJSON encodes the union as its plain JSON counterpart.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case kindString:
		return json.Marshal(v.str)
	case kindNumber:
		return json.Marshal(v.num)
	case kindBool:
		return json.Marshal(v.b)
	case kindStrings:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a plain JSON value into the union. Objects and
// mixed-type arrays are rejected.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case nil:
		*v = NullValue()
	case string:
		*v = StringValue(val)
	case float64:
		*v = NumberValue(val)
	case bool:
		*v = BoolValue(val)
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("field value arrays may only contain strings, got %T", item)
			}
			items = append(items, s)
		}
		*v = StringsValue(items)
	default:
		return fmt.Errorf("unsupported field value type %T", raw)
	}
	return nil
}

// FieldValues maps field keys to their stored values. Keys not declared in
// the owning template's current field list are retained but ignored by
// readers.
type FieldValues map[string]FieldValue

// EncodeValues serializes field values to the JSON object text stored in the
// cards row. A nil map encodes as "{}".
func EncodeValues(values FieldValues) (string, error) {
	if values == nil {
		values = FieldValues{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to marshal field values: %w", err)
	}
	return string(data), nil
}

// DecodeValues parses the stored JSON object text back into typed values.
func DecodeValues(text string) (FieldValues, error) {
	if text == "" {
		return FieldValues{}, nil
	}
	var values FieldValues
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		return nil, fmt.Errorf("failed to parse field values: %w", err)
	}
	if values == nil {
		values = FieldValues{}
	}
	return values, nil
}

// Keys returns the value keys in sorted order, for deterministic iteration.
func (fv FieldValues) Keys() []string {
	keys := make([]string, 0, len(fv))
	for k := range fv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
