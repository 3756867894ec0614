// Package coerce converts raw decoder text into typed field values.
//
// Decoders emit every field as text. Multiple occurrences of a field in one
// packet arrive joined by commas (tshark's default aggregator). Array
// fields split on that separator; numeric and boolean scalar fields keep
// only the first occurrence; string scalars keep the raw text intact.
package coerce

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/distance/internal/ir"
)

// Separator joins multiple occurrences of one field in a raw value.
const Separator = ","

// Converter rewrites a raw value before coercion. Source is the field's
// source key, so a single converter can special-case individual fields.
// It corresponds to the per-run override passed to a fact factory.
type Converter func(source, raw string) string

// Identity returns raw unchanged.
func Identity(_, raw string) string { return raw }

// ErrEmptyRef is returned when Parse is asked to build a fact reference
// from text. References are only ever set by rules.
var ErrEmptyRef = errors.New("fact references cannot be parsed from raw values")

// ConversionError reports a raw value that does not parse as its declared type.
type ConversionError struct {
	Type ir.FieldType
	Raw  string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %q to %s: %v", e.Raw, e.Type, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Parse converts raw to a value of type t.
//
// Leading and trailing whitespace is ignored. An empty raw value yields the
// zero value of t; callers apply field defaults before calling Parse.
func Parse(raw string, t ir.FieldType) (ir.Value, error) {
	if t.IsRef() {
		return nil, &ConversionError{Type: t, Raw: raw, Err: ErrEmptyRef}
	}
	if !t.IsScalar() {
		return nil, &ConversionError{Type: t, Raw: raw, Err: fmt.Errorf("unknown type")}
	}

	raw = strings.TrimSpace(raw)

	if t.IsArray() {
		if raw == "" {
			return ir.Array{}, nil
		}
		parts := strings.Split(raw, Separator)
		arr := make(ir.Array, 0, len(parts))
		for _, p := range parts {
			v, err := parseScalar(strings.TrimSpace(p), t.Elem())
			if err != nil {
				return nil, &ConversionError{Type: t, Raw: raw, Err: err}
			}
			arr = append(arr, v)
		}
		return arr, nil
	}

	if raw == "" {
		zero, _ := ir.Zero(t)
		return zero, nil
	}

	if t != ir.TypeString {
		if i := strings.Index(raw, Separator); i >= 0 {
			raw = strings.TrimSpace(raw[:i])
		}
	}

	v, err := parseScalar(raw, t)
	if err != nil {
		return nil, &ConversionError{Type: t, Raw: raw, Err: err}
	}
	return v, nil
}

func parseScalar(raw string, t ir.FieldType) (ir.Value, error) {
	switch t {
	case ir.TypeString:
		return ir.String(norm.NFC.String(raw)), nil

	case ir.TypeInt:
		if raw == "" {
			return ir.Int(0), nil
		}
		base := 10
		digits := raw
		if rest, ok := strings.CutPrefix(strings.ToLower(raw), "0x"); ok {
			base, digits = 16, rest
		}
		n, err := strconv.ParseInt(digits, base, 64)
		if err != nil {
			return nil, err
		}
		return ir.Int(n), nil

	case ir.TypeFloat:
		if raw == "" {
			return ir.Float(0), nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("non-finite float")
		}
		return ir.Float(f), nil

	case ir.TypeBool:
		return parseBool(raw)

	default:
		return nil, fmt.Errorf("unsupported scalar type %s", t)
	}
}

func parseBool(raw string) (ir.Value, error) {
	switch strings.ToLower(raw) {
	case "", "0", "false", "no", "not set":
		return ir.Bool(false), nil
	case "1", "true", "yes", "set":
		return ir.Bool(true), nil
	default:
		return nil, fmt.Errorf("not a boolean")
	}
}
