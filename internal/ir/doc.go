// Package ir provides the declaration types for distance schemas and the
// typed value model that fact fields carry.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps the
// schema model the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Value is a sealed interface; only the types in value.go implement it
//   - Fact identity is computed from the canonical encoding in canonical.go,
//     never from Go's fmt or encoding/json output
//   - Strings are NFC normalized at the canonical boundary
//   - Floats are allowed but NaN and infinities are rejected at encode time
//   - All JSON tags use snake_case
package ir
