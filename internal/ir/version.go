package ir

// Version constants for the query model schema and the compiler.
const (
	// ModelVersion is the query model schema version.
	ModelVersion = "1"

	// CompilerVersion is the qchain compiler version.
	CompilerVersion = "0.1.0"
)
