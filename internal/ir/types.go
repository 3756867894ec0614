package ir

import (
	"fmt"
	"strings"
	"unicode"
)

// Kind tags a FactSpec as an observed fact, a derived fact, or a
// diagnostic event. The set is closed; every switch over Kind must handle
// all three.
type Kind string

const (
	// KindFact is a record decoded from the capture.
	KindFact Kind = "fact"
	// KindDerived is a record computed by a rule from other facts.
	KindDerived Kind = "derived"
	// KindEvent is a derived record carrying a severity and a message.
	KindEvent Kind = "event"
)

// Valid reports whether k is one of the three declared kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindFact, KindDerived, KindEvent:
		return true
	default:
		return false
	}
}

// Severity grades an Event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	default:
		return false
	}
}

// Rank orders severities from least (0) to most (2) severe.
// Unknown severities rank below info.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityWarning:
		return 1
	case SeverityError:
		return 2
	default:
		return -1
	}
}

// ParseSeverity accepts the canonical names case-insensitively, plus the
// short form "warn".
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return SeverityInfo, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "error":
		return SeverityError, nil
	default:
		return "", fmt.Errorf("unknown severity %q: must be info, warning, or error", s)
	}
}

// Module is one compiled schema source: a namespace and its fact specs in
// declaration order. Modules are compiled once at startup and never
// mutated afterwards.
type Module struct {
	Namespace string     `json:"namespace"`
	Facts     []FactSpec `json:"facts"`
}

// FactSpec declares one record type.
//
// Severity and Message are meaningful only for KindEvent. Filter is the
// decoder display filter and is meaningful only for KindFact.
type FactSpec struct {
	Name     string      `json:"name"`
	Kind     Kind        `json:"kind"`
	Filter   string      `json:"filter,omitempty"`
	Severity Severity    `json:"severity,omitempty"`
	Message  string      `json:"message,omitempty"`
	Fields   []FieldSpec `json:"fields"`
}

// FieldSpec declares one field of a FactSpec.
type FieldSpec struct {
	// Name is the identifier used by rules and message templates.
	Name string `json:"name"`

	// Source is the decoder field key (e.g. "dns.id") and the label used in
	// rendering. Defaults to Name when empty.
	Source string `json:"source"`

	// Type is a scalar, an array of scalars, or a fact reference.
	Type FieldType `json:"type"`

	// Default replaces an empty raw value before coercion.
	Default string `json:"default,omitempty"`

	// Converter names a built-in raw-value converter applied before coercion.
	Converter string `json:"converter,omitempty"`
}

// FieldType is the declared type of a field.
//
// Scalars are "string", "int", "float", and "bool". A "[]" prefix makes an
// array of the element type. Any other element name starting with an
// upper-case letter refers to another fact type.
type FieldType string

const (
	TypeString FieldType = "string"
	TypeInt    FieldType = "int"
	TypeFloat  FieldType = "float"
	TypeBool   FieldType = "bool"
)

const arrayPrefix = "[]"

// ArrayOf returns the array type with element t.
func ArrayOf(t FieldType) FieldType {
	return FieldType(arrayPrefix + string(t))
}

// IsArray reports whether t is an array type.
func (t FieldType) IsArray() bool {
	return strings.HasPrefix(string(t), arrayPrefix)
}

// Elem returns the element type of an array, or t itself for non-arrays.
func (t FieldType) Elem() FieldType {
	return FieldType(strings.TrimPrefix(string(t), arrayPrefix))
}

// IsScalar reports whether the element type of t is one of the four scalars.
func (t FieldType) IsScalar() bool {
	switch t.Elem() {
	case TypeString, TypeInt, TypeFloat, TypeBool:
		return true
	default:
		return false
	}
}

// IsRef reports whether the element type of t names a fact type.
// It does not check that the type exists.
func (t FieldType) IsRef() bool {
	if t.IsScalar() {
		return false
	}
	elem := string(t.Elem())
	if elem == "" || strings.HasPrefix(elem, arrayPrefix) {
		return false
	}
	for i, r := range elem {
		if i == 0 && !unicode.IsUpper(r) {
			return false
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// SourceKey returns the field's source key, falling back to its name.
func (f FieldSpec) SourceKey() string {
	if f.Source != "" {
		return f.Source
	}
	return f.Name
}
