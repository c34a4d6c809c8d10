package question

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Shape discriminates the value held by an Answer.
type Shape string

const (
	ShapeNone   Shape = ""
	ShapeString Shape = "string"
	ShapeNumber Shape = "number"
	ShapeList   Shape = "list"
	ShapeRecord Shape = "record"
)

// Answer is a typed answer value: exactly one of string, number, list of
// strings or record of strings. The zero value holds nothing.
type Answer struct {
	shape  Shape
	str    string
	num    float64
	list   []string
	record map[string]string
}

// String wraps a free-text value or a binary token.
func String(s string) Answer { return Answer{shape: ShapeString, str: s} }

// Number wraps a numeric value.
func Number(n float64) Answer { return Answer{shape: ShapeNumber, num: n} }

// List wraps a multi-select or tag list value.
func List(items ...string) Answer {
	return Answer{shape: ShapeList, list: append([]string{}, items...)}
}

// Record wraps the named sub-fields of a composite form.
func Record(fields map[string]string) Answer {
	m := make(map[string]string, len(fields))
	for k, v := range fields {
		m[k] = v
	}
	return Answer{shape: ShapeRecord, record: m}
}

func (a Answer) Shape() Shape { return a.shape }
func (a Answer) IsZero() bool { return a.shape == ShapeNone }

func (a Answer) Str() (string, bool)               { return a.str, a.shape == ShapeString }
func (a Answer) Num() (float64, bool)              { return a.num, a.shape == ShapeNumber }
func (a Answer) Items() ([]string, bool)           { return a.list, a.shape == ShapeList }
func (a Answer) Fields() (map[string]string, bool) { return a.record, a.shape == ShapeRecord }

// Token returns the binary token carried by a if it is legal for c.
func (a Answer) Token(c ControlType) (string, bool) {
	if a.shape != ShapeString || !c.AcceptsToken(a.str) {
		return "", false
	}
	return a.str, true
}

// Fits reports whether the answer shape is what control type c expects.
func (a Answer) Fits(c ControlType) bool {
	switch c {
	case ControlBinary3, ControlBinary2:
		_, ok := a.Token(c)
		return ok
	case ControlFreeText:
		return a.shape == ShapeString
	case ControlNumeric:
		return a.shape == ShapeNumber
	case ControlMultiSelect, ControlTagList:
		return a.shape == ShapeList
	case ControlCompositeForm:
		return a.shape == ShapeRecord
	}
	return false
}

// Value returns the answer as a plain Go value for expression evaluation.
func (a Answer) Value() interface{} {
	switch a.shape {
	case ShapeString:
		return a.str
	case ShapeNumber:
		return a.num
	case ShapeList:
		return a.list
	case ShapeRecord:
		return a.record
	}
	return nil
}

// String renders the answer for reports and logs.
func (a Answer) String() string {
	switch a.shape {
	case ShapeString:
		return a.str
	case ShapeNumber:
		return strconv.FormatFloat(a.num, 'f', -1, 64)
	case ShapeList:
		return strings.Join(a.list, ", ")
	case ShapeRecord:
		keys := sortedKeys(a.record)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+a.record[k])
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

// MarshalJSON encodes the answer as its bare JSON value.
func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Value())
}

// UnmarshalJSON picks the shape from the JSON value kind.
func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("answer: empty value")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		*a = String(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("answer: list must contain strings: %w", err)
		}
		*a = List(items...)
	case '{':
		var fields map[string]string
		if err := json.Unmarshal(data, &fields); err != nil {
			return fmt.Errorf("answer: record must map strings to strings: %w", err)
		}
		*a = Record(fields)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("answer: unsupported value %s", data)
		}
		*a = Number(n)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
