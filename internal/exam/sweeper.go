package exam

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper completes attempts whose deadline passed while nobody touched them.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	lggr     *zap.Logger
}

func NewSweeper(engine *Engine, interval time.Duration, lggr *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if lggr == nil {
		lggr = zap.NewNop()
	}
	return &Sweeper{engine: engine, interval: interval, lggr: lggr.Named("sweeper")}
}

// Run sweeps once immediately, then on every tick until ctx is done. It returns nil
// on cancellation; failed sweeps are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.engine.ExpireDue(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.lggr.Warn("sweep failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.lggr.Info("expired attempts completed", zap.Int("count", n))
	}
}
