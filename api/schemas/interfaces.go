package schemas

import "context"

// -- Sink Interface --

// DetectionSink persists detection records. Implementations include the CSV log,
// the PostgreSQL store and a fan-out over several sinks.
type DetectionSink interface {
	// Append stores one record. It returns only after the record is durable
	// or the write has failed.
	Append(ctx context.Context, rec DetectionRecord) error
}

// DetectionReader reads back detections recorded during a monitor run.
type DetectionReader interface {
	DetectionsByRun(ctx context.Context, runID string, limit int) ([]DetectionRecord, error)
}
