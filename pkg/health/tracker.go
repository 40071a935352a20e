// Package health derives device operational status from pass outcomes.
// A device that keeps failing inside the sliding window is deactivated
// and drops out of scheduled passes until an operator brings it back.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"netmon/pkg/fleet"
	"netmon/pkg/models"
)

// StatusStore applies a status change to the device record.
type StatusStore interface {
	SetStatus(ctx context.Context, deviceID int64, status string) error
}

// Tracker keeps per-device failure history in memory. History resets on
// restart; status converges again after the next few passes.
type Tracker struct {
	store     StatusStore
	window    time.Duration
	threshold int

	mu       sync.Mutex
	failures map[int64][]time.Time
	applied  map[int64]string
}

func NewTracker(store StatusStore, window time.Duration, threshold int) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	return &Tracker{
		store:     store,
		window:    window,
		threshold: threshold,
		failures:  make(map[int64][]time.Time),
		applied:   make(map[int64]string),
	}
}

// ObservePass folds every outcome of the pass into the health model.
// A device that answered at all, even with command failures, counts as
// reachable; only connect, session and deadline failures count against it.
func (t *Tracker) ObservePass(ctx context.Context, record *fleet.PassRecord) {
	for _, outcome := range record.Outcomes {
		switch outcome.Status {
		case fleet.OutcomeOK, fleet.OutcomePartial:
			t.observeSuccess(ctx, outcome.DeviceID)
		default:
			t.observeFailure(ctx, outcome.DeviceID, record.EndedAt)
		}
	}
}

func (t *Tracker) observeSuccess(ctx context.Context, deviceID int64) {
	t.mu.Lock()
	delete(t.failures, deviceID)
	recovered := t.applied[deviceID] != "" && t.applied[deviceID] != models.DeviceActive
	t.applied[deviceID] = models.DeviceActive
	t.mu.Unlock()

	if !recovered {
		return
	}
	if err := t.store.SetStatus(ctx, deviceID, models.DeviceActive); err != nil {
		slog.Error("Status update failed", "component", "HealthTracker",
			"device_id", deviceID, "error", err)
		return
	}
	slog.Info("Device recovered", "component", "HealthTracker", "device_id", deviceID)
}

func (t *Tracker) observeFailure(ctx context.Context, deviceID int64, at time.Time) {
	t.mu.Lock()
	history := append(t.failures[deviceID], at)
	cutoff := at.Add(-t.window)
	pruned := history[:0]
	for _, ts := range history {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	t.failures[deviceID] = pruned

	status := models.DeviceWarning
	if len(pruned) >= t.threshold {
		status = models.DeviceInactive
	}
	changed := t.applied[deviceID] != status
	t.applied[deviceID] = status
	count := len(pruned)
	t.mu.Unlock()

	if !changed {
		return
	}
	if err := t.store.SetStatus(ctx, deviceID, status); err != nil {
		slog.Error("Status update failed", "component", "HealthTracker",
			"device_id", deviceID, "error", err)
		return
	}
	if status == models.DeviceInactive {
		slog.Warn("Device deactivated after repeated failures",
			"component", "HealthTracker", "device_id", deviceID,
			"failures", count, "window", t.window.String())
	} else {
		slog.Warn("Device degraded", "component", "HealthTracker",
			"device_id", deviceID, "failures", count)
	}
}

// FailureCount reports the device's failure count inside the window.
func (t *Tracker) FailureCount(deviceID int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.failures[deviceID])
}
