package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xkilldash9x/authsim/api/schemas"
	"go.uber.org/zap"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const sqlCreateDetections = `
        CREATE TABLE IF NOT EXISTS detections (
            id UUID PRIMARY KEY,
            run_id TEXT NOT NULL,
            observed_at TIMESTAMPTZ NOT NULL,
            user_id TEXT NOT NULL,
            model TEXT NOT NULL,
            score DOUBLE PRECISION NOT NULL,
            is_improper BOOLEAN NOT NULL,
            avg_mouse_speed DOUBLE PRECISION NOT NULL,
            avg_typing_speed DOUBLE PRECISION NOT NULL,
            tab_switch_rate DOUBLE PRECISION NOT NULL,
            mouse_click_rate DOUBLE PRECISION NOT NULL,
            keyboard_error_rate DOUBLE PRECISION NOT NULL,
            active_window_duration DOUBLE PRECISION NOT NULL
        );
        CREATE INDEX IF NOT EXISTS detections_run_idx ON detections (run_id, observed_at);
    `

const sqlInsertDetection = `
        INSERT INTO detections (id, run_id, observed_at, user_id, model, score, is_improper,
            avg_mouse_speed, avg_typing_speed, tab_switch_rate, mouse_click_rate,
            keyboard_error_rate, active_window_duration)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
    `

const sqlDetectionsByRun = `
        SELECT observed_at, user_id, model, score, is_improper,
            avg_mouse_speed, avg_typing_speed, tab_switch_rate, mouse_click_rate,
            keyboard_error_rate, active_window_duration
        FROM detections
        WHERE run_id = $1
        ORDER BY observed_at ASC
        LIMIT $2;
    `

// Postgres stores detections in the detections table, tagged with the run that
// produced them.
type Postgres struct {
	pool  DBPool
	runID string
	log   *zap.Logger
}

// Connect opens a pgx pool for url.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	return pool, nil
}

// NewPostgres creates a new store instance and verifies the connection.
func NewPostgres(ctx context.Context, pool DBPool, runID string, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{
		pool:  pool,
		runID: runID,
		log:   logger.Named("store").With(zap.String("run_id", runID)),
	}, nil
}

// RunID is the identifier attached to every row this store writes.
func (s *Postgres) RunID() string {
	return s.runID
}

// EnsureSchema creates the detections table if it is missing.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateDetections); err != nil {
		return fmt.Errorf("failed to create detections table: %w", err)
	}
	return nil
}

// Append implements schemas.DetectionSink.
func (s *Postgres) Append(ctx context.Context, rec schemas.DetectionRecord) error {
	v := rec.Features
	tag, err := s.pool.Exec(ctx, sqlInsertDetection,
		uuid.NewString(), s.runID, rec.Timestamp.UTC(), rec.UserID, rec.Model, rec.Score, rec.IsImproper,
		v.AvgMouseSpeed, v.AvgTypingSpeed, v.TabSwitchRate, v.MouseClickRate,
		v.KeyboardErrorRate, v.ActiveWindowDuration,
	)
	if err != nil {
		return fmt.Errorf("failed to insert detection: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("mismatch in inserted detection count: expected 1, got %d", tag.RowsAffected())
	}
	return nil
}

// DetectionsByRun returns up to limit detections of a run, oldest first.
func (s *Postgres) DetectionsByRun(ctx context.Context, runID string, limit int) ([]schemas.DetectionRecord, error) {
	rows, err := s.pool.Query(ctx, sqlDetectionsByRun, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var records []schemas.DetectionRecord
	for rows.Next() {
		var rec schemas.DetectionRecord
		v := &rec.Features
		err := rows.Scan(
			&rec.Timestamp, &rec.UserID, &rec.Model, &rec.Score, &rec.IsImproper,
			&v.AvgMouseSpeed, &v.AvgTypingSpeed, &v.TabSwitchRate, &v.MouseClickRate,
			&v.KeyboardErrorRate, &v.ActiveWindowDuration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection row: %w", err)
		}
		rec.Timestamp = rec.Timestamp.UTC()
		_, rec.Prediction = schemas.Verdict(rec.Score)
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}
