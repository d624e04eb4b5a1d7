package metrics

import (
	"context"
	"time"

	"overscope/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler triggers the daily aggregation pass once per day at the
// configured wall-clock time, covering the previous calendar day.
type Scheduler struct {
	agg    *Aggregator
	hour   int
	minute int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(agg *Aggregator, cfg *config.Config) *Scheduler {
	return &Scheduler{
		agg:    agg,
		hour:   cfg.Aggregation.Hour,
		minute: cfg.Aggregation.Minute,
		done:   make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		defer close(s.done)
		for {
			next := nextRunTime(s.hour, s.minute)
			zap.L().Info("metrics aggregation scheduled", zap.Time("next_run", next))

			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
			}

			if err := s.agg.EnqueueAll(ctx, Yesterday()); err != nil {
				zap.L().Error("daily metrics aggregation failed", zap.Error(err))
			}
		}
	}()
}

func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextRunTime(hour, minute int) time.Time {
	now := time.Now().UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func registerScheduler(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.Start()
			return nil
		},
		OnStop: s.Stop,
	})
}
