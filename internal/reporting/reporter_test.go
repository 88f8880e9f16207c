// internal/reporting/reporter_test.go
package reporting_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/authsim/api/schemas"
	"github.com/xkilldash9x/authsim/internal/reporting"
)

func records() []schemas.DetectionRecord {
	ts := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return []schemas.DetectionRecord{
		{Timestamp: ts, UserID: "cloud_user", Model: "RandomForest", Score: 0.91, IsImproper: true, Prediction: schemas.PredictionRobot},
		{Timestamp: ts.Add(2 * time.Second), UserID: "cloud_user", Model: "RandomForest", Score: 0.12, Prediction: schemas.PredictionPerson},
	}
}

// TestNew_Stdout tests that stdout reporters write to the given writer and are not closed.
func TestNew_Stdout(t *testing.T) {
	for _, path := range []string{"", "stdout"} {
		var buf bytes.Buffer
		r, err := reporting.New("text", path, &buf)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.Equal(t, "0 detections, 0 flagged\n", buf.String())
	}
}

// TestNew_Failure_UnsupportedFormat tests handling of unknown formats; no file is created.
func TestNew_Failure_UnsupportedFormat(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "output.txt")
	r, err := reporting.New("sarif", tmpFile, nil)
	assert.Nil(t, r)
	assert.ErrorContains(t, err, "unsupported output format: sarif")
	assert.NoFileExists(t, tmpFile)
}

func TestNew_Failure_BadPath(t *testing.T) {
	_, err := reporting.New("json", filepath.Join(t.TempDir(), "missing", "out.json"), nil)
	assert.ErrorContains(t, err, "failed to create output file")
}

func TestTextReporter(t *testing.T) {
	var buf bytes.Buffer
	r, err := reporting.New("text", "", &buf)
	require.NoError(t, err)
	for _, rec := range records() {
		require.NoError(t, r.Write(rec))
	}
	require.NoError(t, r.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "2026-02-03T04:05:06Z  cloud_user"))
	assert.Contains(t, lines[0], "Robot")
	assert.Contains(t, lines[0], "0.9100")
	assert.Contains(t, lines[1], "Person")
	assert.Equal(t, "2 detections, 1 flagged", lines[2])
}

func TestJSONReporter_File(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "report.json")
	r, err := reporting.New("json", tmpFile, nil)
	require.NoError(t, err)
	for _, rec := range records() {
		require.NoError(t, r.Write(rec))
	}
	require.NoError(t, r.Close())

	data, err := os.ReadFile(tmpFile)
	require.NoError(t, err)

	var report reporting.Report
	require.NoError(t, jsoniter.Unmarshal(data, &report))
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Flagged)
	assert.Equal(t, records(), report.Detections)
}

func TestJSONReporter_Empty(t *testing.T) {
	var buf bytes.Buffer
	r, err := reporting.New("json", "stdout", &buf)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Contains(t, buf.String(), `"detections": []`)
}
