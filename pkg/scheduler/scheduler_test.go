package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickRunsPass(t *testing.T) {
	var runs atomic.Int64
	s := New(context.Background(), 20*time.Millisecond, func(ctx context.Context, trigger string, commands []string) {
		runs.Add(1)
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 passes, got %d", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSlowPassSkipsTicks(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int64
	s := New(context.Background(), 15*time.Millisecond, func(ctx context.Context, trigger string, commands []string) {
		runs.Add(1)
		<-release
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Let several ticks land while the first pass is stuck.
	deadline := time.After(2 * time.Second)
	for s.Status().SkippedTicks < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected skipped ticks, got %d", s.Status().SkippedTicks)
		case <-time.After(5 * time.Millisecond):
		}
	}

	if got := runs.Load(); got != 1 {
		t.Errorf("expected exactly 1 pass in flight, got %d runs", got)
	}

	close(release)
	s.Stop()

	status := s.Status()
	if status.Running {
		t.Error("scheduler should report stopped")
	}
	if status.CompletedPasses < 1 {
		t.Errorf("expected at least 1 completed pass, got %d", status.CompletedPasses)
	}
}

func TestTriggerNowConflicts(t *testing.T) {
	release := make(chan struct{})
	s := New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {
		<-release
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := s.TriggerNow(); err != nil {
		t.Fatalf("first trigger failed: %v", err)
	}
	if err := s.TriggerNow(); err != ErrPassInFlight {
		t.Errorf("expected ErrPassInFlight, got %v", err)
	}

	close(release)
	s.Stop()
}

func TestTriggerNowWithoutStart(t *testing.T) {
	ran := make(chan string, 1)
	s := New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {
		ran <- trigger
	})

	if err := s.TriggerNow(); err != nil {
		t.Fatalf("on-demand pass must not require the tick loop: %v", err)
	}

	select {
	case trigger := <-ran:
		if trigger != "manual" {
			t.Errorf("expected manual trigger, got %q", trigger)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pass never ran")
	}
	s.Stop()
}

func TestTriggerNowAfterStop(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {
		ran <- struct{}{}
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s.Stop()

	if err := s.TriggerNow(); err != nil {
		t.Fatalf("on-demand pass must work while the tick loop is stopped: %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("pass never ran after Stop")
	}
	s.Stop()
}

func TestStopWaitsForInFlightPass(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	s := New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.TriggerNow(); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	<-started

	s.Stop()
	if !finished.Load() {
		t.Error("Stop returned before the in-flight pass completed")
	}
}

func TestTriggerNowDuringStopCycles(t *testing.T) {
	s := New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				s.TriggerNow()
			}
		}
	}()

	for i := 0; i < 50; i++ {
		if err := s.Start(); err != nil {
			t.Fatalf("start cycle %d failed: %v", i, err)
		}
		s.Stop()
	}

	close(stop)
	wg.Wait()
	s.Stop()
}

func TestTriggerNowWithCustomBatch(t *testing.T) {
	got := make(chan []string, 1)
	s := New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {
		got <- commands
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	if err := s.TriggerNowWith([]string{"show ip route"}); err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	select {
	case commands := <-got:
		if len(commands) != 1 || commands[0] != "show ip route" {
			t.Errorf("unexpected batch %v", commands)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pass never ran")
	}
}

func TestStartTwice(t *testing.T) {
	s := New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {})
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer s.Stop()

	if err := s.Start(); err != ErrAlreadyStarted {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStopIdempotent(t *testing.T) {
	s := New(context.Background(), time.Hour, func(ctx context.Context, trigger string, commands []string) {})
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	s.Stop()
	s.Stop()
}
