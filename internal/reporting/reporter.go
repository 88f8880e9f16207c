// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"

	"github.com/xkilldash9x/authsim/api/schemas"
)

// Reporter defines the interface for writing detection records to an output.
type Reporter interface {
	// Write processes a single detection.
	Write(rec schemas.DetectionRecord) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a new reporter based on the specified format and output path.
// An empty path or "stdout" writes to stdout, which is never closed.
func New(format, outputPath string, stdout io.Writer) (Reporter, error) {
	switch format {
	case "text", "json":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" {
		writer = &nopWriteCloser{stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	if format == "json" {
		return NewJSONReporter(writer), nil
	}
	return NewTextReporter(writer), nil
}

// Tally counts the detections seen by a reporter.
type Tally struct {
	Total   int `json:"total"`
	Flagged int `json:"flagged"`
}

func (t *Tally) add(rec schemas.DetectionRecord) {
	t.Total++
	if rec.IsImproper {
		t.Flagged++
	}
}
