package fact

import (
	"errors"
	"fmt"

	"github.com/roach88/distance/internal/coerce"
	"github.com/roach88/distance/internal/ir"
)

// ErrFieldCount is returned by FromFields when the row width does not
// match the type's field count.
var ErrFieldCount = errors.New("field count mismatch")

// FieldError reports a raw value that could not be converted.
type FieldError struct {
	Type  string
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %v", e.Type, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// FromFields builds a fact from raw decoder values in declaration order.
//
// For each field: conv (when non-nil) rewrites the raw value, then the
// field's named converter runs, then an empty result is replaced by the
// field default, then the text is coerced to the field type.
func (t *Type) FromFields(raw []string, conv coerce.Converter) (*Fact, error) {
	if len(raw) != len(t.fields) {
		return nil, fmt.Errorf("%s: %w: want %d, got %d", t.Name(), ErrFieldCount, len(t.fields), len(raw))
	}

	values := make([]ir.Value, len(raw))
	for i, f := range t.fields {
		s := raw[i]
		if conv != nil {
			s = conv(f.Source, s)
		}
		if f.convert != nil {
			var err error
			s, err = f.convert(s)
			if err != nil {
				return nil, &FieldError{Type: t.Name(), Field: f.Name, Err: err}
			}
		}
		if s == "" && f.Default != "" {
			s = f.Default
		}
		v, err := coerce.Parse(s, f.Type)
		if err != nil {
			return nil, &FieldError{Type: t.Name(), Field: f.Name, Err: err}
		}
		values[i] = v
	}

	return New(t, values...)
}
