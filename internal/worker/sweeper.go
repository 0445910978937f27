package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"islatel/internal/crm"
)

// Sweeper periodically cancels leads whose check-in date has passed. The
// sweep itself is idempotent, so the interval only bounds how stale the
// reminder list can get.
type Sweeper struct {
	engine   *crm.Engine
	interval time.Duration
	logger   *zerolog.Logger
}

func NewSweeper(engine *crm.Engine, interval time.Duration, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	expired := s.engine.AutoExpire(ctx, time.Now())
	if len(expired) > 0 {
		s.logger.Info().Int("count", len(expired)).Msg("expiry sweep cancelled stale leads")
	}
}
