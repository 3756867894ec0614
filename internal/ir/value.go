package ir

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Value is a sealed interface representing typed field values.
// Only String, Int, Float, Bool, Array, and Ref implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
}

// String is a text value.
type String string

func (String) irValue() {}

// Int is a 64-bit integer value.
type Int int64

func (Int) irValue() {}

// Float is a 64-bit floating point value.
type Float float64

func (Float) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered list of values of one element type.
type Array []Value

func (Array) irValue() {}

// Referent is a fact that can be embedded in another fact's field.
// fact.Fact implements it; ir does not import fact.
type Referent interface {
	TypeName() string
	Key() string
	String() string
}

// Ref embeds a reference to another fact. Two refs are equal when they
// point at facts with the same type and identity key.
type Ref struct {
	Target Referent
}

func (Ref) irValue() {}

// NewRef wraps r as a Value.
func NewRef(r Referent) Ref {
	return Ref{Target: r}
}

// Normalize returns v with every string in NFC form, the form FactKey
// hashes. Other values are returned unchanged.
func Normalize(v Value) Value {
	switch tv := v.(type) {
	case String:
		return String(nfc(tv))
	case Array:
		out := make(Array, len(tv))
		for i, e := range tv {
			out[i] = Normalize(e)
		}
		return out
	}
	return v
}

func nfc(s String) string {
	return norm.NFC.String(string(s))
}

// Equal reports structural equality. Strings compare in NFC form, so
// canonically equivalent text is equal.
//
// Int and Float compare numerically with each other. Arrays compare
// element-wise. Refs compare by type name and identity key.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && (av == bv || nfc(av) == nfc(bv))
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Float:
			return av == bv
		case Int:
			return float64(av) == float64(bv)
		}
		return false
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Ref:
		bv, ok := b.(Ref)
		if !ok || av.Target == nil || bv.Target == nil {
			return false
		}
		return av.Target.TypeName() == bv.Target.TypeName() && av.Target.Key() == bv.Target.Key()
	default:
		return false
	}
}

// Compare orders two values. It returns false when the values are not
// ordered with respect to each other (mismatched kinds, bools, arrays,
// refs, or NaN).
func Compare(a, b Value) (int, bool) {
	if as, ok := a.(String); ok {
		bs, ok := b.(String)
		if !ok {
			return 0, false
		}
		return strings.Compare(nfc(as), nfc(bs)), true
	}

	if ai, ok := a.(Int); ok {
		if bi, ok := b.(Int); ok {
			switch {
			case ai < bi:
				return -1, true
			case ai > bi:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	af, aok := numeric(a)
	bf, bok := numeric(b)
	if !aok || !bok || math.IsNaN(af) || math.IsNaN(bf) {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	default:
		return 0, true
	}
}

func numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n), true
	case Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// Format renders a value for fact rendering and message templates.
//
// Scalars use their natural text, arrays render as "[a,b]", and refs render
// the referenced fact.
func Format(v Value) string {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		return strconv.FormatBool(bool(val))
	case Array:
		var b strings.Builder
		b.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(Format(elem))
		}
		b.WriteByte(']')
		return b.String()
	case Ref:
		if val.Target == nil {
			return "<nil>"
		}
		return val.Target.String()
	case nil:
		return "<nil>"
	default:
		return "<invalid>"
	}
}

// Conforms reports whether v is a valid value for a field of type t.
// An Int conforms to a float field; the reverse does not hold.
func Conforms(v Value, t FieldType) bool {
	if t.IsArray() {
		arr, ok := v.(Array)
		if !ok {
			return false
		}
		elem := t.Elem()
		for _, e := range arr {
			if !Conforms(e, elem) {
				return false
			}
		}
		return true
	}

	switch t {
	case TypeString:
		_, ok := v.(String)
		return ok
	case TypeInt:
		_, ok := v.(Int)
		return ok
	case TypeFloat:
		switch v.(type) {
		case Float, Int:
			return true
		}
		return false
	case TypeBool:
		_, ok := v.(Bool)
		return ok
	}

	ref, ok := v.(Ref)
	return ok && ref.Target != nil && ref.Target.TypeName() == string(t)
}

// Zero returns the zero value for a scalar or array type. Ref types have
// no zero value and return false.
func Zero(t FieldType) (Value, bool) {
	if t.IsArray() {
		return Array{}, true
	}
	switch t {
	case TypeString:
		return String(""), true
	case TypeInt:
		return Int(0), true
	case TypeFloat:
		return Float(0), true
	case TypeBool:
		return Bool(false), true
	default:
		return nil, false
	}
}
