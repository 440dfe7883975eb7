// Package ranking applies rank adjustments after a match has been persisted.
package ranking

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/arena/internal/multiplayer"
)

// Adjuster updates a ranking from a persisted match.
type Adjuster interface {
	Adjust(ctx context.Context, record multiplayer.MatchRecord) error
}

// AdjusterFunc adapts a plain function to Adjuster.
type AdjusterFunc func(ctx context.Context, record multiplayer.MatchRecord) error

// Adjust calls f.
func (f AdjusterFunc) Adjust(ctx context.Context, record multiplayer.MatchRecord) error {
	return f(ctx, record)
}

// Recorder persists matches through an inner MatchRecorder and then runs
// every adjuster on the stored record. Adjuster failures are logged and do
// not fail the recording, so a retry never double-persists a match.
type Recorder struct {
	inner     multiplayer.MatchRecorder
	adjusters []Adjuster
	logger    *log.Logger
}

var _ multiplayer.MatchRecorder = (*Recorder)(nil)

// NewRecorder wraps inner with the given adjusters.
func NewRecorder(inner multiplayer.MatchRecorder, logger *log.Logger, adjusters ...Adjuster) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		inner:     inner,
		adjusters: adjusters,
		logger:    logger.WithPrefix("ranking"),
	}
}

// RecordMatch implements multiplayer.MatchRecorder.
func (r *Recorder) RecordMatch(ctx context.Context, result multiplayer.MatchResult) (multiplayer.MatchRecord, error) {
	record, err := r.inner.RecordMatch(ctx, result)
	if err != nil {
		return multiplayer.MatchRecord{}, fmt.Errorf("ranking: cannot record match: %w", err)
	}

	for _, adj := range r.adjusters {
		if err := adj.Adjust(ctx, record); err != nil {
			r.logger.Warn("rank adjustment failed",
				"match", record.MatchID,
				"error", err,
			)
		}
	}
	return record, nil
}
