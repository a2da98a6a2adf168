package ir

const (
	// SchemaVersion is bumped whenever the wire form of events changes.
	SchemaVersion = "1"

	// IndexerVersion is the vidindex release.
	IndexerVersion = "0.1.0"
)
