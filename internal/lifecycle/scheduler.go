package lifecycle

import (
	"context"
	"log"
	"time"
)

// Ticker is the surface the scheduler drives on every tick; the engine
// fans the tick out to every auction actor's own queue so lifecycle
// evaluation is serialized with that auction's bid processing.
type Ticker interface {
	Tick(now time.Time)
}

// Scheduler re-evaluates every auction's time-based status on a fixed
// interval.
type Scheduler struct {
	ticker   Ticker
	interval time.Duration
	logger   *log.Logger
}

// NewScheduler creates a scheduler. Interval defaults to one second.
func NewScheduler(ticker Ticker, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{ticker: ticker, interval: interval, logger: logger}
}

// Run ticks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Printf("[lifecycle] scheduler started, interval %v", s.interval)

	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("[lifecycle] scheduler stopping")
			return ctx.Err()
		case now := <-tick.C:
			s.ticker.Tick(now.UTC())
		}
	}
}
