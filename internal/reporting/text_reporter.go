// -- internal/reporting/text_reporter.go --
package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/xkilldash9x/authsim/api/schemas"
)

// TextReporter prints one aligned line per detection and a tally on Close.
type TextReporter struct {
	w     io.WriteCloser
	tally Tally
}

// NewTextReporter takes ownership of w.
func NewTextReporter(w io.WriteCloser) *TextReporter {
	return &TextReporter{w: w}
}

func (r *TextReporter) Write(rec schemas.DetectionRecord) error {
	r.tally.add(rec)
	_, err := fmt.Fprintf(r.w, "%s  %-10s  %-18s  %-6s  %.4f\n",
		rec.Timestamp.UTC().Format(time.RFC3339), rec.UserID, rec.Model, rec.Prediction, rec.Score)
	return err
}

func (r *TextReporter) Close() error {
	_, err := fmt.Fprintf(r.w, "%d detections, %d flagged\n", r.tally.Total, r.tally.Flagged)
	if cerr := r.w.Close(); err == nil {
		err = cerr
	}
	return err
}
