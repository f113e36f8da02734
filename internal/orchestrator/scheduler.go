package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/runledger"
)

type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// Scheduler triggers a scheduled run on every tick. A tick that arrives
// while a run is still executing is skipped.
type Scheduler struct {
	runner   Runner
	interval time.Duration

	mu     sync.Mutex
	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
	busy   sync.Mutex
}

func NewScheduler(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{runner: runner, interval: interval, done: make(chan struct{})}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil || s.interval <= 0 {
		return
	}

	s.ticker = time.NewTicker(s.interval)
	s.wg.Add(1)
	go s.loop(ctx)

	log.Info().Dur("interval", s.interval).Msg("Aggregation scheduler started")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs once unless a previous run is still in progress.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.busy.TryLock() {
		log.Warn().Msg("Previous aggregation still running, skipping tick")
		return false
	}
	defer s.busy.Unlock()

	res, err := s.runner.Run(ctx, Request{RunType: runledger.TypeScheduled})
	if err != nil {
		log.Error().Err(err).Str("run_id", res.RunID).Msg("Scheduled aggregation failed")
	}
	return true
}

// Stop halts the ticker and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.ticker.Stop()
	close(s.done)
	s.ticker = nil
	s.mu.Unlock()

	s.wg.Wait()
}
