package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainFact   = "distance/fact/v" + SchemaVersion
	DomainTuple  = "distance/tuple/v" + SchemaVersion
	DomainSchema = "distance/schema/v" + SchemaVersion
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FactKey computes the identity key of a fact: a hash over its type name
// and its field values in declaration order. Two facts are structurally
// equal exactly when their keys are equal.
func FactKey(typeName string, values []Value) (string, error) {
	canonical, err := MarshalCanonicalValues(values)
	if err != nil {
		return "", fmt.Errorf("FactKey %s: %w", typeName, err)
	}

	data := make([]byte, 0, len(typeName)+1+len(canonical))
	data = append(data, typeName...)
	data = append(data, 0x00)
	data = append(data, canonical...)
	return hashWithDomain(DomainFact, data), nil
}

// TupleHash identifies a rule activation: the rule name plus the fact keys
// at each pattern position. Positions that bind no fact (guards and
// negations) are passed as empty strings.
func TupleHash(rule string, keys []string) string {
	return hashWithDomain(DomainTuple, []byte(rule+"\x00"+strings.Join(keys, "\x00")))
}

// SchemaHash identifies a compiled schema from its serialized form.
func SchemaHash(serialized []byte) string {
	return hashWithDomain(DomainSchema, serialized)
}

// MustFactKey is like FactKey but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustFactKey(typeName string, values []Value) string {
	key, err := FactKey(typeName, values)
	if err != nil {
		panic(err)
	}
	return key
}
