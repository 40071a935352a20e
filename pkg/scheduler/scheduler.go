// Package scheduler fires fleet passes on a fixed interval with a
// single-flight guarantee: a tick that lands while a pass is still running
// is skipped and counted, never queued. On-demand passes share the same
// guarantee but do not require the tick loop to be running.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrPassInFlight is returned by TriggerNow while a pass is running.
	ErrPassInFlight = errors.New("a pass is already in flight")
)

// PassFunc runs one fleet pass. trigger records what initiated it;
// commands overrides the configured batch when non-empty.
type PassFunc func(ctx context.Context, trigger string, commands []string)

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running         bool  `json:"running"`
	PassInFlight    bool  `json:"pass_in_flight"`
	CompletedPasses int64 `json:"completed_passes"`
	SkippedTicks    int64 `json:"skipped_ticks"`
}

// Scheduler drives periodic passes and accepts on-demand triggers.
type Scheduler struct {
	baseCtx  context.Context
	interval time.Duration
	run      PassFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	// launchMu serializes wg.Add against Stop's wg.Wait.
	launchMu sync.Mutex
	wg       sync.WaitGroup

	inFlight atomic.Bool
	passes   atomic.Int64
	skipped  atomic.Int64
}

// New creates a Scheduler. ctx bounds every pass the scheduler launches,
// ticked and on-demand alike; it must outlive the scheduler.
func New(ctx context.Context, interval time.Duration, run PassFunc) *Scheduler {
	return &Scheduler{baseCtx: ctx, interval: interval, run: run}
}

// Start launches the tick loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	loopCtx, cancel := context.WithCancel(s.baseCtx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(loopCtx, s.done)

	slog.Info("Scheduler started", "component", "Scheduler", "interval", s.interval.String())
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopping", "component", "Scheduler")
			return
		case <-ticker.C:
			if err := s.launch("scheduled", nil); err != nil {
				s.skipped.Add(1)
				slog.Warn("Tick skipped, previous pass still running",
					"component", "Scheduler", "skipped_total", s.skipped.Load())
			}
		}
	}
}

// launch starts a pass unless one is already in flight.
func (s *Scheduler) launch(trigger string, commands []string) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrPassInFlight
	}

	s.launchMu.Lock()
	s.wg.Add(1)
	s.launchMu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.inFlight.Store(false)
		s.run(s.baseCtx, trigger, commands)
		s.passes.Add(1)
	}()
	return nil
}

// TriggerNow starts an on-demand pass with the configured command batch.
// It respects the single-flight guarantee and returns ErrPassInFlight
// without queuing. The tick loop does not need to be running.
func (s *Scheduler) TriggerNow() error {
	return s.launch("manual", nil)
}

// TriggerNowWith starts an on-demand pass with a caller-supplied batch.
func (s *Scheduler) TriggerNowWith(commands []string) error {
	return s.launch("manual", commands)
}

// Stop halts the tick loop and waits for any in-flight pass to finish.
// It is idempotent. An on-demand trigger racing Stop may still start a
// pass; that pass is bounded by the base context, not by Stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.launchMu.Lock()
	s.wg.Wait()
	s.launchMu.Unlock()

	slog.Info("Scheduler stopped", "component", "Scheduler",
		"completed_passes", s.passes.Load(), "skipped_ticks", s.skipped.Load())
}

// Status reports the scheduler's current state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	running := s.cancel != nil
	s.mu.Unlock()

	return Status{
		Running:         running,
		PassInFlight:    s.inFlight.Load(),
		CompletedPasses: s.passes.Load(),
		SkippedTicks:    s.skipped.Load(),
	}
}
