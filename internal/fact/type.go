package fact

import (
	"fmt"

	"github.com/roach88/distance/internal/coerce"
	"github.com/roach88/distance/internal/ir"
)

// Field is one compiled field of a Type.
type Field struct {
	Name      string
	Source    string
	Type      ir.FieldType
	Default   string
	Converter string

	convert coerce.Func
}

// Type is a compiled record-type descriptor.
type Type struct {
	namespace string
	spec      ir.FactSpec
	fields    []Field
	index     map[string]int
	template  *Template
}

// NewType builds a descriptor from a spec. The spec is expected to have
// passed compiler validation; NewType still rejects anything it cannot
// build.
func NewType(namespace string, spec ir.FactSpec) (*Type, error) {
	t := &Type{
		namespace: namespace,
		spec:      spec,
		fields:    make([]Field, len(spec.Fields)),
		index:     make(map[string]int, len(spec.Fields)),
	}

	for i, fs := range spec.Fields {
		if _, dup := t.index[fs.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate field %q", spec.Name, fs.Name)
		}
		t.index[fs.Name] = i

		f := Field{
			Name:      fs.Name,
			Source:    fs.SourceKey(),
			Type:      fs.Type,
			Default:   fs.Default,
			Converter: fs.Converter,
		}
		if fs.Converter != "" {
			fn, ok := coerce.Lookup(fs.Converter)
			if !ok {
				return nil, fmt.Errorf("%s.%s: unknown converter %q", spec.Name, fs.Name, fs.Converter)
			}
			f.convert = fn
		}
		t.fields[i] = f
	}

	switch spec.Kind {
	case ir.KindEvent:
		tmpl, err := ParseTemplate(spec.Message)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", spec.Name, err)
		}
		for _, p := range tmpl.Placeholders() {
			if !t.hasPath(p) {
				return nil, fmt.Errorf("%s: message placeholder {%s} names no field", spec.Name, p)
			}
		}
		t.template = tmpl
	case ir.KindFact, ir.KindDerived:
	default:
		return nil, fmt.Errorf("%s: invalid kind %q", spec.Name, spec.Kind)
	}

	return t, nil
}

// hasPath checks that the first segment of a dotted path is a field.
// Deeper segments are resolved at render time against the referenced fact.
func (t *Type) hasPath(path string) bool {
	head, _ := splitPath(path)
	_, ok := t.index[head]
	return ok
}

// Name returns the type name.
func (t *Type) Name() string { return t.spec.Name }

// Namespace returns the namespace of the module that declared the type.
func (t *Type) Namespace() string { return t.namespace }

// Kind returns the fact kind.
func (t *Type) Kind() ir.Kind { return t.spec.Kind }

// Filter returns the decoder filter, empty for derived and event types.
func (t *Type) Filter() string { return t.spec.Filter }

// Severity returns the event severity, empty for non-event types.
func (t *Type) Severity() ir.Severity { return t.spec.Severity }

// Template returns the message template, nil for non-event types.
func (t *Type) Template() *Template { return t.template }

// Spec returns the declaration the type was built from.
func (t *Type) Spec() ir.FactSpec { return t.spec }

// NumFields returns the number of declared fields.
func (t *Type) NumFields() int { return len(t.fields) }

// Field returns the i-th field.
func (t *Type) Field(i int) Field { return t.fields[i] }

// Fields returns a copy of the field list in declaration order.
func (t *Type) Fields() []Field {
	out := make([]Field, len(t.fields))
	copy(out, t.fields)
	return out
}

// FieldIndex returns the position of the named field.
func (t *Type) FieldIndex(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// SourceKeys returns the decoder field keys in declaration order.
func (t *Type) SourceKeys() []string {
	keys := make([]string, len(t.fields))
	for i, f := range t.fields {
		keys[i] = f.Source
	}
	return keys
}

// Parseable reports whether facts of this type can be built from raw
// decoder values, that is, whether no field is a fact reference.
func (t *Type) Parseable() bool {
	for _, f := range t.fields {
		if f.Type.IsRef() {
			return false
		}
	}
	return true
}
