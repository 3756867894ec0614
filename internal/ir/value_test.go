package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReferent struct {
	typ, key, text string
}

func (s stubReferent) TypeName() string { return s.typ }
func (s stubReferent) Key() string      { return s.key }
func (s stubReferent) String() string   { return s.text }

func TestEqual(t *testing.T) {
	a := NewRef(stubReferent{"DnsPacket", "k1", "DnsPacket: dns.id=1"})
	b := NewRef(stubReferent{"DnsPacket", "k1", "different rendering"})
	c := NewRef(stubReferent{"DnsPacket", "k2", "DnsPacket: dns.id=2"})

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same string", String("a"), String("a"), true},
		{"different string", String("a"), String("b"), false},
		{"nfc vs nfd", String("caf\u00e9"), String("cafe\u0301"), true},
		{"nfd arrays", Array{String("\u00e9")}, Array{String("e\u0301")}, true},
		{"int float numeric", Int(3), Float(3), true},
		{"float int numeric", Float(3.5), Int(3), false},
		{"bool", Bool(true), Bool(true), true},
		{"string vs int", String("1"), Int(1), false},
		{"arrays", Array{Int(1), String("x")}, Array{Int(1), String("x")}, true},
		{"array length", Array{Int(1)}, Array{Int(1), Int(2)}, false},
		{"refs by key", a, b, true},
		{"refs differ", a, c, false},
		{"nil ref", Ref{}, Ref{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, String("caf\u00e9"), Normalize(String("cafe\u0301")))
	assert.Equal(t, Array{String("\u00e9"), Int(1)}, Normalize(Array{String("e\u0301"), Int(1)}))
	assert.Equal(t, Int(7), Normalize(Int(7)))

	c, ok := Compare(String("cafe\u0301"), String("caf\u00e9"))
	require.True(t, ok)
	assert.Equal(t, 0, c)
}

func TestCompare(t *testing.T) {
	c, ok := Compare(Int(1), Int(2))
	assert.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare(Float(5.5), Int(5))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare(String("b"), String("a"))
	assert.True(t, ok)
	assert.Equal(t, 1, c)

	_, ok = Compare(Bool(true), Bool(false))
	assert.False(t, ok, "bools are unordered")

	_, ok = Compare(String("1"), Int(1))
	assert.False(t, ok)

	_, ok = Compare(Float(math.NaN()), Float(1))
	assert.False(t, ok)
}

func TestFormat(t *testing.T) {
	ref := NewRef(stubReferent{"DnsPacket", "k", "DnsPacket: dns.id=7"})

	assert.Equal(t, "hello", Format(String("hello")))
	assert.Equal(t, "-42", Format(Int(-42)))
	assert.Equal(t, "0.25", Format(Float(0.25)))
	assert.Equal(t, "true", Format(Bool(true)))
	assert.Equal(t, "[a,b]", Format(Array{String("a"), String("b")}))
	assert.Equal(t, "[]", Format(Array{}))
	assert.Equal(t, "DnsPacket: dns.id=7", Format(ref))
}

func TestConforms(t *testing.T) {
	ref := NewRef(stubReferent{"DnsPacket", "k", ""})

	assert.True(t, Conforms(String("x"), TypeString))
	assert.True(t, Conforms(Int(1), TypeFloat), "int widens to float")
	assert.False(t, Conforms(Float(1), TypeInt))
	assert.True(t, Conforms(Array{Int(1), Int(2)}, ArrayOf(TypeInt)))
	assert.False(t, Conforms(Array{Int(1), String("2")}, ArrayOf(TypeInt)))
	assert.True(t, Conforms(ref, FieldType("DnsPacket")))
	assert.False(t, Conforms(ref, FieldType("IpPacket")))
	assert.True(t, Conforms(Array{ref}, FieldType("[]DnsPacket")))
}

func TestFieldType(t *testing.T) {
	assert.True(t, FieldType("[]string").IsArray())
	assert.Equal(t, TypeString, FieldType("[]string").Elem())
	assert.True(t, FieldType("[]string").IsScalar())
	assert.False(t, FieldType("[]string").IsRef())
	assert.True(t, FieldType("DnsPacket").IsRef())
	assert.True(t, FieldType("[]IpEndpoint").IsRef())
	assert.False(t, FieldType("uint16").IsRef())
	assert.False(t, FieldType("uint16").IsScalar())
	assert.False(t, FieldType("[][]int").IsRef())
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("Warn")
	assert.NoError(t, err)
	assert.Equal(t, SeverityWarning, s)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)

	assert.Greater(t, SeverityError.Rank(), SeverityWarning.Rank())
	assert.Greater(t, SeverityWarning.Rank(), SeverityInfo.Rank())
}
