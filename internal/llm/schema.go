package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrSchemaMismatch wraps every validation failure of model output.
var ErrSchemaMismatch = errors.New("llm: output does not match schema")

// Type is a JSON schema type.
type Type string

const (
	TypeObject  Type = "object"
	TypeArray   Type = "array"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
)

// Schema is the provider-neutral output contract of a structured call.
// Objects are closed: undeclared properties fail validation.
type Schema struct {
	Type        Type
	Description string
	Properties  map[string]*Schema
	// Order fixes property order in the provider request.
	Order    []string
	Required []string
	Items    *Schema
	MinItems *int
	MaxItems *int
	Minimum  *float64
	Maximum  *float64
	Enum     []string
	// NonEmpty rejects blank strings.
	NonEmpty bool
}

// Field pairs a property name with its schema for Object.
type Field struct {
	Name     string
	Schema   *Schema
	Optional bool
}

// Object builds a closed object schema. Fields are required unless Optional.
func Object(desc string, fields ...Field) *Schema {
	s := &Schema{Type: TypeObject, Description: desc, Properties: make(map[string]*Schema, len(fields))}
	for _, f := range fields {
		s.Properties[f.Name] = f.Schema
		s.Order = append(s.Order, f.Name)
		if !f.Optional {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

// Array builds an array schema. Bounds below zero are ignored.
func Array(desc string, items *Schema, minItems, maxItems int) *Schema {
	s := &Schema{Type: TypeArray, Description: desc, Items: items}
	if minItems >= 0 {
		s.MinItems = &minItems
	}
	if maxItems >= 0 {
		s.MaxItems = &maxItems
	}
	return s
}

// String builds a non-empty string schema.
func String(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc, NonEmpty: true}
}

// Number builds a bounded number schema.
func Number(desc string, min, max float64) *Schema {
	return &Schema{Type: TypeNumber, Description: desc, Minimum: &min, Maximum: &max}
}

// Decode validates raw against s and unmarshals it into out.
func (s *Schema) Decode(raw json.RawMessage, out any) error {
	if err := s.Validate(raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

// Validate checks raw strictly against s.
func (s *Schema) Validate(raw json.RawMessage) error {
	if s == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON value", ErrInvalidJSON)
	}
	return s.check("$", v)
}

func mismatch(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrSchemaMismatch, path, fmt.Sprintf(format, args...))
}

func (s *Schema) check(path string, v any) error {
	switch s.Type {
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return mismatch(path, "expected object")
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sub, ok := s.Properties[k]
			if !ok {
				return mismatch(path, "unexpected property %q", k)
			}
			if err := sub.check(path+"."+k, obj[k]); err != nil {
				return err
			}
		}
		for _, r := range s.Required {
			if _, ok := obj[r]; !ok {
				return mismatch(path, "missing property %q", r)
			}
		}
	case TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return mismatch(path, "expected array")
		}
		if s.MinItems != nil && len(arr) < *s.MinItems {
			return mismatch(path, "expected at least %d items, got %d", *s.MinItems, len(arr))
		}
		if s.MaxItems != nil && len(arr) > *s.MaxItems {
			return mismatch(path, "expected at most %d items, got %d", *s.MaxItems, len(arr))
		}
		if s.Items != nil {
			for i, el := range arr {
				if err := s.Items.check(fmt.Sprintf("%s[%d]", path, i), el); err != nil {
					return err
				}
			}
		}
	case TypeString:
		str, ok := v.(string)
		if !ok {
			return mismatch(path, "expected string")
		}
		if s.NonEmpty && strings.TrimSpace(str) == "" {
			return mismatch(path, "empty string")
		}
		if len(s.Enum) > 0 && !contains(s.Enum, str) {
			return mismatch(path, "%q is not one of %v", str, s.Enum)
		}
	case TypeNumber, TypeInteger:
		n, ok := v.(json.Number)
		if !ok {
			return mismatch(path, "expected number")
		}
		f, err := n.Float64()
		if err != nil {
			return mismatch(path, "bad number %q", n)
		}
		if s.Type == TypeInteger {
			if _, err := n.Int64(); err != nil {
				return mismatch(path, "expected integer, got %s", n)
			}
		}
		if s.Minimum != nil && f < *s.Minimum {
			return mismatch(path, "%v is below %v", f, *s.Minimum)
		}
		if s.Maximum != nil && f > *s.Maximum {
			return mismatch(path, "%v is above %v", f, *s.Maximum)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return mismatch(path, "expected boolean")
		}
	default:
		return mismatch(path, "unsupported schema type %q", s.Type)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
