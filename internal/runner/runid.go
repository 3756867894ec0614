package runner

import "github.com/google/uuid"

// RunIDGenerator mints run ids.
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator mints time-sortable UUIDv7 run ids, so archived runs
// list in start order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics if the system
// random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
