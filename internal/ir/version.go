package ir

// Version constants for the flat document schema and engine.
const (
	// SchemaVersion is the flat document schema version.
	SchemaVersion = "1"

	// EngineVersion is the doccore engine version.
	EngineVersion = "0.1.0"
)
