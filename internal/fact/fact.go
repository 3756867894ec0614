package fact

import (
	"fmt"
	"strings"

	"github.com/roach88/distance/internal/ir"
)

// Fact is an immutable record instance.
//
// Identity is structural: Key is derived from the type name and every field
// value in declaration order, and Equal compares keys.
type Fact struct {
	typ    *Type
	values []ir.Value
	key    string
}

// New builds a fact of type t from values in declaration order.
//
// Each value must conform to its field type. Ints given for float fields
// are widened so that equal numbers always produce equal keys.
func New(t *Type, values ...ir.Value) (*Fact, error) {
	if t == nil {
		return nil, fmt.Errorf("fact.New: nil type")
	}
	if len(values) != len(t.fields) {
		return nil, fmt.Errorf("%s: want %d values, got %d", t.Name(), len(t.fields), len(values))
	}

	vals := make([]ir.Value, len(values))
	for i, v := range values {
		f := t.fields[i]
		if !ir.Conforms(v, f.Type) {
			return nil, fmt.Errorf("%s.%s: value %s does not conform to %s", t.Name(), f.Name, describe(v), f.Type)
		}
		vals[i] = ir.Normalize(widen(v, f.Type))
	}

	key, err := ir.FactKey(t.Name(), vals)
	if err != nil {
		return nil, err
	}
	return &Fact{typ: t, values: vals, key: key}, nil
}

// MustNew is like New but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustNew(t *Type, values ...ir.Value) *Fact {
	f, err := New(t, values...)
	if err != nil {
		panic(err)
	}
	return f
}

func widen(v ir.Value, t ir.FieldType) ir.Value {
	if t.Elem() != ir.TypeFloat {
		return v
	}
	if t.IsArray() {
		arr := v.(ir.Array)
		out := make(ir.Array, len(arr))
		for i, e := range arr {
			out[i] = widen(e, t.Elem())
		}
		return out
	}
	if n, ok := v.(ir.Int); ok {
		return ir.Float(n)
	}
	return v
}

func describe(v ir.Value) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%T(%s)", v, ir.Format(v))
}

// Type returns the fact's descriptor.
func (f *Fact) Type() *Type { return f.typ }

// TypeName returns the fact's type name.
func (f *Fact) TypeName() string { return f.typ.Name() }

// Key returns the structural identity key.
func (f *Fact) Key() string { return f.key }

// Kind returns the kind of the fact's type.
func (f *Fact) Kind() ir.Kind { return f.typ.Kind() }

// Equal reports structural equality.
func (f *Fact) Equal(other *Fact) bool {
	if f == nil || other == nil {
		return f == other
	}
	return f.key == other.key && f.typ.Name() == other.typ.Name()
}

// Value returns the i-th field value.
func (f *Fact) Value(i int) ir.Value { return f.values[i] }

// Values returns a copy of the field values in declaration order.
func (f *Fact) Values() []ir.Value {
	out := make([]ir.Value, len(f.values))
	copy(out, f.values)
	return out
}

// Get returns the value of the named field.
func (f *Fact) Get(name string) (ir.Value, bool) {
	i, ok := f.typ.index[name]
	if !ok {
		return nil, false
	}
	return f.values[i], true
}

// Lookup resolves a dotted field path, following fact references.
// "Query.IpDst" reads the IpDst field of the fact referenced by Query.
func (f *Fact) Lookup(path string) (ir.Value, bool) {
	head, rest := splitPath(path)
	v, ok := f.Get(head)
	if !ok {
		return nil, false
	}
	if rest == "" {
		return v, true
	}
	ref, ok := v.(ir.Ref)
	if !ok {
		return nil, false
	}
	target, ok := ref.Target.(*Fact)
	if !ok || target == nil {
		return nil, false
	}
	return target.Lookup(rest)
}

func splitPath(path string) (head, rest string) {
	head, rest, _ = strings.Cut(path, ".")
	return head, rest
}

// String renders the fact as "<Name>: src1=v1 src2=v2".
func (f *Fact) String() string {
	var b strings.Builder
	b.WriteString(f.typ.Name())
	b.WriteByte(':')
	for i, field := range f.typ.fields {
		b.WriteByte(' ')
		b.WriteString(field.Source)
		b.WriteByte('=')
		b.WriteString(ir.Format(f.values[i]))
	}
	return b.String()
}

// Message renders the event message. It is empty for non-event facts.
func (f *Fact) Message() string {
	switch f.typ.Kind() {
	case ir.KindEvent:
		return f.typ.template.Render(f)
	case ir.KindFact, ir.KindDerived:
	}
	return ""
}

// Severity returns the event severity. It is empty for non-event facts.
func (f *Fact) Severity() ir.Severity {
	return f.typ.Severity()
}
