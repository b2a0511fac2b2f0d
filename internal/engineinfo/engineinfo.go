// Package engineinfo centralises static identifiers for the engine so
// logs, telemetry, and future embedders agree on naming.
package engineinfo

// Metadata captures static identifiers for the engine.
type Metadata struct {
	Name        string
	BinaryName  string
	Slug        string
	Description string
	GeneratorID string
}

// Info describes the current engine build.
var Info = Metadata{
	Name:        "Teleprompter Speech-Tracking Engine",
	BinaryName:  "teleprompter-engine",
	Slug:        "teleprompter-engine",
	Description: "Fuzzy-matches live speech-to-text hypotheses against a fixed script to drive a teleprompter cursor.",
	GeneratorID: "teleprompter-engine",
}

// SessionMetadata produces the standard metadata payload attached to
// session-scoped log lines and telemetry snapshots.
func SessionMetadata(backendKind, locale string) map[string]string {
	return map[string]string{
		"generator":    Info.GeneratorID,
		"backend_kind": backendKind,
		"locale":       locale,
	}
}
