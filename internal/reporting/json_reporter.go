// -- internal/reporting/json_reporter.go --
package reporting

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/authsim/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report is the document written by JSONReporter.
type Report struct {
	Tally
	Detections []schemas.DetectionRecord `json:"detections"`
}

// JSONReporter buffers detections and writes a single indented document on Close.
type JSONReporter struct {
	w      io.WriteCloser
	report Report
}

// NewJSONReporter takes ownership of w.
func NewJSONReporter(w io.WriteCloser) *JSONReporter {
	return &JSONReporter{w: w, report: Report{Detections: []schemas.DetectionRecord{}}}
}

func (r *JSONReporter) Write(rec schemas.DetectionRecord) error {
	r.report.add(rec)
	r.report.Detections = append(r.report.Detections, rec)
	return nil
}

func (r *JSONReporter) Close() error {
	data, err := json.MarshalIndent(r.report, "", "  ")
	if err != nil {
		r.w.Close()
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if _, err := r.w.Write(append(data, '\n')); err != nil {
		r.w.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return r.w.Close()
}
