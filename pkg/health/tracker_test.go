package health

import (
	"context"
	"testing"
	"time"

	"netmon/pkg/fleet"
	"netmon/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStatusStore struct {
	statuses map[int64][]string
}

func newMemStatusStore() *memStatusStore {
	return &memStatusStore{statuses: map[int64][]string{}}
}

func (s *memStatusStore) SetStatus(ctx context.Context, deviceID int64, status string) error {
	s.statuses[deviceID] = append(s.statuses[deviceID], status)
	return nil
}

func (s *memStatusStore) last(deviceID int64) string {
	history := s.statuses[deviceID]
	if len(history) == 0 {
		return ""
	}
	return history[len(history)-1]
}

func failedPass(deviceID int64, at time.Time) *fleet.PassRecord {
	return &fleet.PassRecord{
		EndedAt: at,
		Outcomes: []fleet.Outcome{{
			DeviceID: deviceID,
			Status:   fleet.OutcomeConnectFailed,
		}},
	}
}

func okPass(deviceID int64, at time.Time) *fleet.PassRecord {
	return &fleet.PassRecord{
		EndedAt: at,
		Outcomes: []fleet.Outcome{{
			DeviceID: deviceID,
			Status:   fleet.OutcomeOK,
		}},
	}
}

func TestRepeatedFailuresDeactivate(t *testing.T) {
	store := newMemStatusStore()
	tracker := NewTracker(store, 10*time.Minute, 3)
	now := time.Now()

	tracker.ObservePass(context.Background(), failedPass(1, now))
	assert.Equal(t, models.DeviceWarning, store.last(1), "first failure degrades to warning")

	tracker.ObservePass(context.Background(), failedPass(1, now.Add(time.Minute)))
	assert.Equal(t, models.DeviceWarning, store.last(1))

	tracker.ObservePass(context.Background(), failedPass(1, now.Add(2*time.Minute)))
	assert.Equal(t, models.DeviceInactive, store.last(1), "threshold reached inside the window")
}

func TestOldFailuresAgeOut(t *testing.T) {
	store := newMemStatusStore()
	tracker := NewTracker(store, 5*time.Minute, 3)
	now := time.Now()

	tracker.ObservePass(context.Background(), failedPass(1, now))
	tracker.ObservePass(context.Background(), failedPass(1, now.Add(time.Minute)))
	// The third failure lands after the first two left the window.
	tracker.ObservePass(context.Background(), failedPass(1, now.Add(20*time.Minute)))

	assert.Equal(t, models.DeviceWarning, store.last(1), "stale failures must not count toward the threshold")
	assert.Equal(t, 1, tracker.FailureCount(1))
}

func TestRecoveryReactivates(t *testing.T) {
	store := newMemStatusStore()
	tracker := NewTracker(store, 10*time.Minute, 2)
	now := time.Now()

	tracker.ObservePass(context.Background(), failedPass(1, now))
	tracker.ObservePass(context.Background(), failedPass(1, now.Add(time.Minute)))
	require.Equal(t, models.DeviceInactive, store.last(1))

	tracker.ObservePass(context.Background(), okPass(1, now.Add(2*time.Minute)))
	assert.Equal(t, models.DeviceActive, store.last(1))
	assert.Equal(t, 0, tracker.FailureCount(1), "recovery clears the failure history")
}

func TestPartialOutcomeCountsAsReachable(t *testing.T) {
	store := newMemStatusStore()
	tracker := NewTracker(store, 10*time.Minute, 2)
	now := time.Now()

	tracker.ObservePass(context.Background(), failedPass(1, now))
	tracker.ObservePass(context.Background(), &fleet.PassRecord{
		EndedAt: now.Add(time.Minute),
		Outcomes: []fleet.Outcome{{
			DeviceID: 1,
			Status:   fleet.OutcomePartial,
		}},
	})

	assert.Equal(t, models.DeviceActive, store.last(1), "a device that answers is reachable even if commands fail")
}

func TestHealthyDeviceNeverWritten(t *testing.T) {
	store := newMemStatusStore()
	tracker := NewTracker(store, 10*time.Minute, 3)

	tracker.ObservePass(context.Background(), okPass(1, time.Now()))
	assert.Empty(t, store.statuses[1], "a device that was never degraded needs no status write")
}
