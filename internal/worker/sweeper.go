package worker

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/subhub/internal/service/sweep"
	"go.uber.org/zap"
)

type Sweeper interface {
	Sweep(ctx context.Context, hoursBack int) (sweep.Stats, error)
}

// PeriodicSweep runs the reconciliation sweep on a fixed interval, once
// immediately at start.
type PeriodicSweep struct {
	Sweeper   Sweeper
	Interval  time.Duration
	HoursBack int
	Log       *zap.Logger
}

func (p *PeriodicSweep) Run(ctx context.Context) error {
	if p.Interval <= 0 {
		return errors.New("sweeper: interval must be positive")
	}
	if p.Log == nil {
		p.Log = zap.NewNop()
	}

	tick := time.NewTicker(p.Interval)
	defer tick.Stop()

	for {
		p.runOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

func (p *PeriodicSweep) runOnce(ctx context.Context) {
	st, err := p.Sweeper.Sweep(ctx, p.HoursBack)
	switch {
	case errors.Is(err, sweep.ErrSweepInProgress):
		p.Log.Info("previous sweep still running, skipping tick")
	case err != nil && ctx.Err() == nil:
		p.Log.Error("sweep failed", zap.Error(err), zap.Int("seen", st.Seen))
	}
}
