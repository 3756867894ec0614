package coerce

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Func is a named raw-value converter referenced from a field declaration.
type Func func(raw string) (string, error)

var builtins = map[string]Func{
	"trim":  func(raw string) (string, error) { return strings.TrimSpace(raw), nil },
	"lower": func(raw string) (string, error) { return strings.ToLower(raw), nil },
	"upper": func(raw string) (string, error) { return strings.ToUpper(raw), nil },
	"first": first,
	"hex":   hexToDecimal,
}

// Lookup returns the built-in converter with the given name.
func Lookup(name string) (Func, bool) {
	fn, ok := builtins[name]
	return fn, ok
}

// Names lists the built-in converters in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// first keeps the first occurrence of an aggregated value.
func first(raw string) (string, error) {
	if i := strings.Index(raw, Separator); i >= 0 {
		return raw[:i], nil
	}
	return raw, nil
}

// hexToDecimal accepts hex with or without a 0x prefix and renders decimal.
func hexToDecimal(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return "", fmt.Errorf("hex: %w", err)
	}
	return strconv.FormatInt(n, 10), nil
}
