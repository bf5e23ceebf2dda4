package session

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Sweeper periodically runs the engine's expiration sweep so abandoned games
// are finished even when nobody looks at them again.
type Sweeper struct {
	engine    *Engine
	interval  time.Duration
	logger    *zap.Logger
	scheduler gocron.Scheduler
}

func NewSweeper(engine *Engine, interval time.Duration, logger *zap.Logger) (*Sweeper, error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Sweeper{engine: engine, interval: interval, logger: logger, scheduler: sched}, nil
}

func (s *Sweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			defer cancel()
			if _, err := s.engine.SweepExpired(ctx); err != nil {
				s.logger.Warn("sweep_failed", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	s.logger.Info("sweeper_started", zap.Duration("interval", s.interval))
	return nil
}

func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}
