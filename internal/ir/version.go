package ir

// Version constants for the schema model and engine.
const (
	// SchemaVersion is the version of the fact identity encoding. Bumping it
	// changes every fact key and tuple hash.
	SchemaVersion = "1"

	// EngineVersion is the distance engine version recorded with each run.
	EngineVersion = "0.1.0"
)
