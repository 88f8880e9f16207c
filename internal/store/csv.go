package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/xkilldash9x/authsim/api/schemas"
	"github.com/xkilldash9x/authsim/internal/features"
	"go.uber.org/zap"
)

// Header is the first row of every detection log.
var Header = append([]string{"timestamp", "user_id", "model", "score", "is_improper"}, features.Names[:]...)

// CSVLog appends detections to a CSV file. The file is opened and closed on every
// write so external tools can rotate or truncate it between ticks.
type CSVLog struct {
	path string
	mu   sync.Mutex
	log  *zap.Logger
}

// NewCSVLog returns a log writing to path. If the file does not exist it is created
// with the header row; an existing file is left untouched.
func NewCSVLog(path string, logger *zap.Logger) (*CSVLog, error) {
	l := &CSVLog{path: path, log: logger.Named("csv")}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		return l, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("failed to stat detection log %s: %w", path, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
		}
	}
	if err := l.write(nil); err != nil {
		return nil, err
	}
	l.log.Info("Created detection log", zap.String("path", path))
	return l, nil
}

// Path is the file the log writes to.
func (l *CSVLog) Path() string {
	return l.path
}

// Append implements schemas.DetectionSink.
func (l *CSVLog) Append(ctx context.Context, rec schemas.DetectionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.write(Row(rec))
}

// write opens the file in append mode, restores the header if the file is empty and
// writes row when it is non-nil.
func (l *CSVLog) write(row []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open detection log %s: %w", l.path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to stat detection log %s: %w", l.path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			f.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if row != nil {
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("failed to write detection: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush detection log: %w", err)
	}
	return f.Close()
}

// Row renders a record in Header order.
func Row(rec schemas.DetectionRecord) []string {
	row := make([]string, 0, len(Header))
	row = append(row,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.UserID,
		rec.Model,
		formatFloat(rec.Score),
		formatBool(rec.IsImproper),
	)
	for _, v := range rec.Features.Slice() {
		row = append(row, formatFloat(v))
	}
	return row
}

// ParseRow is the inverse of Row. Prediction is recomputed from the score.
func ParseRow(row []string) (schemas.DetectionRecord, error) {
	if len(row) != len(Header) {
		return schemas.DetectionRecord{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(row))
	}
	ts, err := time.Parse(time.RFC3339Nano, row[0])
	if err != nil {
		return schemas.DetectionRecord{}, fmt.Errorf("bad timestamp: %w", err)
	}
	score, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return schemas.DetectionRecord{}, fmt.Errorf("bad score: %w", err)
	}

	values := make([]float64, features.Count)
	for i := range values {
		if values[i], err = strconv.ParseFloat(row[5+i], 64); err != nil {
			return schemas.DetectionRecord{}, fmt.Errorf("bad %s: %w", Header[5+i], err)
		}
	}
	vec, err := features.FromSlice(values)
	if err != nil {
		return schemas.DetectionRecord{}, err
	}

	_, prediction := schemas.Verdict(score)
	return schemas.DetectionRecord{
		Timestamp:  ts,
		UserID:     row[1],
		Model:      row[2],
		Score:      score,
		IsImproper: row[4] == "1",
		Prediction: prediction,
		Features:   vec,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ReadAll parses every detection in the log, skipping the header.
func (l *CSVLog) ReadAll(ctx context.Context) ([]schemas.DetectionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open detection log %s: %w", l.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read detection log %s: %w", l.path, err)
	}

	var records []schemas.DetectionRecord
	for i, row := range rows {
		if i == 0 && row[0] == Header[0] {
			continue
		}
		rec, err := ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
