package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/distance/internal/coerce"
	"github.com/roach88/distance/internal/fact"
	"github.com/roach88/distance/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Module errors (E101-E119)
	ErrNamespaceEmpty      = "E101" // namespace is required
	ErrSpecNoFields        = "E102" // spec declares no fields
	ErrUnknownFieldType    = "E103" // field type is not a scalar, array, or known fact
	ErrDuplicateField      = "E104" // duplicate field name within a spec
	ErrDuplicateFact       = "E105" // duplicate fact name across modules
	ErrInvalidKind         = "E106" // kind is not fact, derived, or event
	ErrEventAttributes     = "E107" // severity/message missing on event or present elsewhere
	ErrInvalidTemplate     = "E108" // message template does not parse or names no field
	ErrRefOnObserved       = "E109" // reference field on a decoder-fed spec
	ErrUnknownConverter    = "E110" // converter is not registered
	ErrFilterOnNonObserved = "E111" // filter on a derived or event spec
	ErrInvalidDefault      = "E112" // default does not parse as the field type
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidateModule validates modules as one schema.
// Returns all errors found (does not fail-fast).
func ValidateModule(mods ...*ir.Module) []ValidationError {
	var errs []ValidationError

	known := make(map[string]bool)
	for _, m := range mods {
		for _, spec := range m.Facts {
			known[spec.Name] = true
		}
	}

	seen := make(map[string]string)
	for _, m := range mods {
		if m.Namespace == "" {
			errs = append(errs, ValidationError{
				Field:   "namespace",
				Message: "namespace is required",
				Code:    ErrNamespaceEmpty,
			})
		}
		for _, spec := range m.Facts {
			if prev, dup := seen[spec.Name]; dup {
				errs = append(errs, ValidationError{
					Field:   spec.Name,
					Message: fmt.Sprintf("fact %q already declared in namespace %q", spec.Name, prev),
					Code:    ErrDuplicateFact,
				})
			}
			seen[spec.Name] = m.Namespace
			errs = append(errs, validateFactSpec(spec, known)...)
		}
	}

	return errs
}

func validateFactSpec(spec ir.FactSpec, known map[string]bool) []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Code: code})
	}

	switch spec.Kind {
	case ir.KindFact:
		if spec.Severity != "" || spec.Message != "" {
			add(spec.Name, ErrEventAttributes, "severity and message are only valid on events")
		}
	case ir.KindDerived:
		if spec.Severity != "" || spec.Message != "" {
			add(spec.Name, ErrEventAttributes, "severity and message are only valid on events")
		}
		if spec.Filter != "" {
			add(spec.Name, ErrFilterOnNonObserved, "filter is only valid on decoder-fed facts")
		}
	case ir.KindEvent:
		if !spec.Severity.Valid() {
			add(spec.Name, ErrEventAttributes, "event severity must be info, warning, or error, got %q", spec.Severity)
		}
		if spec.Message == "" {
			add(spec.Name, ErrEventAttributes, "event message is required")
		}
		if spec.Filter != "" {
			add(spec.Name, ErrFilterOnNonObserved, "filter is only valid on decoder-fed facts")
		}
	default:
		add(spec.Name, ErrInvalidKind, "kind must be fact, derived, or event, got %q", spec.Kind)
	}

	if len(spec.Fields) == 0 {
		add(spec.Name, ErrSpecNoFields, "at least one field is required")
	}

	names := make(map[string]bool)
	for _, f := range spec.Fields {
		path := spec.Name + "." + f.Name
		if names[f.Name] {
			add(path, ErrDuplicateField, "duplicate field name %q", f.Name)
		}
		names[f.Name] = true

		errs = append(errs, validateFieldType(spec, f, path, known)...)

		if f.Converter != "" {
			if _, ok := coerce.Lookup(f.Converter); !ok {
				add(path, ErrUnknownConverter, "unknown converter %q (known: %v)", f.Converter, coerce.Names())
			}
		}
	}

	if spec.Kind == ir.KindEvent && spec.Message != "" {
		tmpl, err := fact.ParseTemplate(spec.Message)
		if err != nil {
			add(spec.Name+".message", ErrInvalidTemplate, "%v", err)
		} else {
			for _, p := range tmpl.Placeholders() {
				head, _, _ := strings.Cut(p, ".")
				if !names[head] {
					add(spec.Name+".message", ErrInvalidTemplate, "placeholder {%s} names no field", p)
				}
			}
		}
	}

	return errs
}

func validateFieldType(spec ir.FactSpec, f ir.FieldSpec, path string, known map[string]bool) []ValidationError {
	var errs []ValidationError

	switch {
	case f.Type.IsScalar():
		if f.Default != "" {
			if _, err := coerce.Parse(f.Default, f.Type); err != nil {
				errs = append(errs, ValidationError{
					Field:   path,
					Message: fmt.Sprintf("default %q: %v", f.Default, err),
					Code:    ErrInvalidDefault,
				})
			}
		}
	case f.Type.IsRef() && known[string(f.Type.Elem())]:
		if spec.Kind == ir.KindFact {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("reference type %q cannot be decoded; use a derived or event spec", f.Type),
				Code:    ErrRefOnObserved,
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   path,
			Message: fmt.Sprintf("unknown field type %q", f.Type),
			Code:    ErrUnknownFieldType,
		})
	}

	return errs
}
