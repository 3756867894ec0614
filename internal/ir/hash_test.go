package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactKey_Deterministic(t *testing.T) {
	values := []Value{Int(1), String("10.0.0.1"), Bool(false)}

	k1, err := FactKey("DnsPacket", values)
	require.NoError(t, err)
	k2, err := FactKey("DnsPacket", []Value{Int(1), String("10.0.0.1"), Bool(false)})
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64, "hex-encoded SHA-256")
}

func TestFactKey_TypeSeparated(t *testing.T) {
	values := []Value{String("10.0.0.1")}

	a := MustFactKey("DnsServer", values)
	b := MustFactKey("IpEndpoint", values)
	assert.NotEqual(t, a, b, "same values under different types must not collide")
}

func TestFactKey_FieldOrderMatters(t *testing.T) {
	a := MustFactKey("IpFlow", []Value{String("a"), String("b")})
	b := MustFactKey("IpFlow", []Value{String("b"), String("a")})
	assert.NotEqual(t, a, b)
}

func TestTupleHash(t *testing.T) {
	a := TupleHash("DnsNoResponse", []string{"k1", ""})
	b := TupleHash("DnsNoResponse", []string{"k1", ""})
	c := TupleHash("DnsServer", []string{"k1", ""})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
