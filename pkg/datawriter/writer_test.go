package datawriter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"netmon/pkg/fleet"
	"netmon/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is a minimal in-memory Repository for the writer's needs.
type memRepo[T any] struct {
	mu     sync.Mutex
	nextID int64
	items  []*T
	setID  func(*T, int64)
}

func (r *memRepo[T]) List(ctx context.Context) ([]*T, error) { return r.items, nil }

func (r *memRepo[T]) Get(ctx context.Context, id int64) (*T, error) {
	return nil, fmt.Errorf("record not found")
}

func (r *memRepo[T]) GetByField(ctx context.Context, field string, value any) (*T, error) {
	return nil, fmt.Errorf("record not found")
}

func (r *memRepo[T]) Create(ctx context.Context, entity *T) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if r.setID != nil {
		r.setID(entity, r.nextID)
	}
	r.items = append(r.items, entity)
	return entity, nil
}

func (r *memRepo[T]) Update(ctx context.Context, id int64, entity *T) (*T, error) {
	return entity, nil
}

func (r *memRepo[T]) Delete(ctx context.Context, id int64) error { return nil }

func (r *memRepo[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

func sampleRecord() *fleet.PassRecord {
	now := time.Now()
	return &fleet.PassRecord{
		StartedAt: now.Add(-time.Second),
		EndedAt:   now,
		Trigger:   "scheduled",
		Summary:   "partial",
		Outcomes: []fleet.Outcome{
			{
				DeviceID: 1,
				Status:   fleet.OutcomeOK,
				Results: []models.CommandResult{
					{DeviceID: 1, Command: "show version", Success: true},
					{DeviceID: 1, Command: "show clock", Success: true},
				},
			},
			{
				DeviceID: 2,
				Status:   fleet.OutcomeConnectFailed,
				Error:    "no route to host",
			},
		},
	}
}

func TestWriterPersistsPassAndResults(t *testing.T) {
	passes := &memRepo[models.FleetPass]{setID: func(p *models.FleetPass, id int64) { p.ID = id }}
	results := &memRepo[models.CommandResult]{setID: func(r *models.CommandResult, id int64) { r.ID = id }}

	var observed []*fleet.PassRecord
	observer := ObserverFunc(func(ctx context.Context, record *fleet.PassRecord) {
		observed = append(observed, record)
	})

	records := make(chan *fleet.PassRecord, 1)
	writer := NewWriter(passes, results, records, observer)

	record := sampleRecord()
	records <- record

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	writer.Run(ctx) // drains the queued record, then stops

	require.Len(t, passes.items, 1)
	pass := passes.items[0]
	assert.Equal(t, "partial", pass.Summary)
	assert.Equal(t, "scheduled", pass.Trigger)
	assert.Equal(t, 2, pass.DeviceCount)
	assert.Equal(t, 1, pass.FailedCount)

	var outcomes []fleet.Outcome
	require.NoError(t, json.Unmarshal(pass.Outcomes, &outcomes))
	assert.Len(t, outcomes, 2)

	require.Len(t, results.items, 2, "only real command results are persisted")
	for _, result := range results.items {
		assert.Equal(t, pass.ID, result.PassID, "results link back to their pass")
	}

	require.Len(t, observed, 1)
	assert.Same(t, record, observed[0])
}

func TestRunWritesEveryRecordBeforeStopping(t *testing.T) {
	passes := &memRepo[models.FleetPass]{setID: func(p *models.FleetPass, id int64) { p.ID = id }}
	results := &memRepo[models.CommandResult]{setID: func(r *models.CommandResult, id int64) { r.ID = id }}

	records := make(chan *fleet.PassRecord, 8)
	writer := NewWriter(passes, results, records)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		writer.Run(ctx)
		close(done)
	}()

	records <- sampleRecord()
	require.Eventually(t, func() bool { return passes.count() == 1 },
		2*time.Second, 5*time.Millisecond, "running writer must consume records as they arrive")

	// A record that lands just before shutdown must still be written.
	records <- sampleRecord()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never stopped")
	}
	assert.Equal(t, 2, passes.count(), "no finalized record may be lost at shutdown")
}
