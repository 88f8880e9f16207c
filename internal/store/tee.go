package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/authsim/api/schemas"
)

// Tee writes every record to an authoritative primary sink and mirrors it to
// secondary sinks. Only a primary failure fails the append; a record that never
// reached the primary is not mirrored. Secondary failures are logged and dropped.
type Tee struct {
	primary   schemas.DetectionSink
	secondary []schemas.DetectionSink
	log       *zap.Logger
}

// NewTee creates a Tee over primary and the given mirrors.
func NewTee(primary schemas.DetectionSink, logger *zap.Logger, secondary ...schemas.DetectionSink) *Tee {
	return &Tee{
		primary:   primary,
		secondary: secondary,
		log:       logger.Named("tee"),
	}
}

// Append implements schemas.DetectionSink.
func (t *Tee) Append(ctx context.Context, rec schemas.DetectionRecord) error {
	if err := t.primary.Append(ctx, rec); err != nil {
		return err
	}
	for i, s := range t.secondary {
		if err := s.Append(ctx, rec); err != nil {
			t.log.Warn("Secondary detection sink failed, record kept in primary",
				zap.Int("sink", i),
				zap.Time("timestamp", rec.Timestamp),
				zap.Error(err),
			)
		}
	}
	return nil
}
