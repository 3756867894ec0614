package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/distance/internal/sink"
)

// marshalJSON encodes v as compact JSON TEXT for storage.
// HTML escaping is disabled so messages read back byte-for-byte.
func marshalJSON(what string, v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func marshalStrings(what string, s []string) (string, error) {
	if s == nil {
		s = []string{}
	}
	return marshalJSON(what, s)
}

func unmarshalStrings(what, data string) ([]string, error) {
	if data == "" || data == "[]" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return out, nil
}

func marshalFields(fields []sink.EventField) (string, error) {
	if fields == nil {
		fields = []sink.EventField{}
	}
	return marshalJSON("event fields", fields)
}

func unmarshalFields(data string) ([]sink.EventField, error) {
	if data == "" || data == "[]" {
		return []sink.EventField{}, nil
	}
	var fields []sink.EventField
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("unmarshal event fields: %w", err)
	}
	return fields, nil
}

func unmarshalSummary(data string) (*sink.Summary, error) {
	var s sink.Summary
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &s, nil
}
