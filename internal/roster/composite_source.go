package roster

import (
	"context"
	"time"

	"github.com/jupiterbjy/gotigris/internal/tigris"
	"go.uber.org/zap"
)

// CompositeSource implements Source with fallback strategy
// Primary: live portal fetch
// Fallback: last saved snapshot file
type CompositeSource struct {
	primary  Source
	fallback Source
	logger   *zap.Logger
}

// NewCompositeSource creates a new CompositeSource
func NewCompositeSource(primary, fallback Source, logger *zap.Logger) *CompositeSource {
	return &CompositeSource{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Events returns events from the primary source, falling back on error.
func (cs *CompositeSource) Events(ctx context.Context, from, to time.Time) ([]*tigris.Event, error) {
	events, err := cs.primary.Events(ctx, from, to)
	if err == nil {
		return events, nil
	}

	cs.logger.Warn("Primary event source failed, falling back to snapshot",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Error(err))

	return cs.fallback.Events(ctx, from, to)
}
