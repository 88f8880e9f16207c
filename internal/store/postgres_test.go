package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/authsim/api/schemas"
	"go.uber.org/zap"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(any) bool

func (f ArgumentMatcherFunc) Match(v any) bool {
	return f(v)
}

var anyUUID = ArgumentMatcherFunc(func(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
})

// insertArgs matches the 13 positional arguments of sqlInsertDetection.
func insertArgs() []any {
	args := make([]any, 13)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMockStore(t *testing.T) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := NewPostgres(context.Background(), mockPool, "run-1", zap.NewNop())
	require.NoError(t, err)
	return s, mockPool
}

func TestNewPostgres(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = NewPostgres(context.Background(), mockPool, "run-1", zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("keeps the run id", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		assert.Equal(t, "run-1", s.RunID())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	s, mockPool := newMockStore(t)
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateDetections)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, s.EnsureSchema(context.Background()))

	ddlErr := errors.New("permission denied")
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateDetections)).WillReturnError(ddlErr)
	assert.ErrorIs(t, s.EnsureSchema(context.Background()), ddlErr)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgres_Append(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert one row with UTC timestamp", func(t *testing.T) {
		s, mockPool := newMockStore(t)

		rec := sampleRecord(0.9)
		loc := time.FixedZone("CET", 3600)
		rec.Timestamp = time.Date(2026, 3, 4, 6, 0, 0, 0, loc)
		v := rec.Features

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertDetection)).
			WithArgs(anyUUID, "run-1", rec.Timestamp.UTC(), "cloud_user", "RandomForest", 0.9, true,
				v.AvgMouseSpeed, v.AvgTypingSpeed, v.TabSwitchRate, v.MouseClickRate,
				v.KeyboardErrorRate, v.ActiveWindowDuration).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.Append(ctx, rec))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate insert errors", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		insertErr := errors.New("connection reset")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertDetection)).
			WithArgs(insertArgs()...).
			WillReturnError(insertErr)

		err := s.Append(ctx, sampleRecord(0.1))
		assert.ErrorIs(t, err, insertErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should reject an unexpected row count", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertDetection)).
			WithArgs(insertArgs()...).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		err := s.Append(ctx, sampleRecord(0.1))
		assert.ErrorContains(t, err, "expected 1, got 0")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestDetectionsByRun(t *testing.T) {
	columns := []string{"observed_at", "user_id", "model", "score", "is_improper",
		"avg_mouse_speed", "avg_typing_speed", "tab_switch_rate", "mouse_click_rate",
		"keyboard_error_rate", "active_window_duration"}

	t.Run("should scan rows in order", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		first, second := sampleRecord(0.9), sampleRecord(0.2)
		second.Timestamp = second.Timestamp.Add(2 * time.Second)

		rows := pgxmock.NewRows(columns)
		for _, rec := range []schemas.DetectionRecord{first, second} {
			v := rec.Features
			rows.AddRow(rec.Timestamp, rec.UserID, rec.Model, rec.Score, rec.IsImproper,
				v.AvgMouseSpeed, v.AvgTypingSpeed, v.TabSwitchRate, v.MouseClickRate,
				v.KeyboardErrorRate, v.ActiveWindowDuration)
		}
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlDetectionsByRun)).
			WithArgs("run-7", 10).
			WillReturnRows(rows)

		got, err := s.DetectionsByRun(context.Background(), "run-7", 10)
		require.NoError(t, err)
		assert.Equal(t, []schemas.DetectionRecord{first, second}, got)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should propagate query errors", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		queryErr := errors.New("relation does not exist")
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlDetectionsByRun)).
			WithArgs("run-7", 10).
			WillReturnError(queryErr)

		_, err := s.DetectionsByRun(context.Background(), "run-7", 10)
		assert.ErrorIs(t, err, queryErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report iteration errors", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		iterErr := errors.New("stream closed")
		rows := pgxmock.NewRows(columns).
			AddRow(time.Now(), "u", "m", 0.1, false, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0).
			RowError(0, iterErr)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlDetectionsByRun)).
			WithArgs("run-7", 10).
			WillReturnRows(rows)

		_, err := s.DetectionsByRun(context.Background(), "run-7", 10)
		assert.ErrorIs(t, err, iterErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
