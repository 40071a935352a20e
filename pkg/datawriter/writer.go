// Package datawriter drains finished passes off the runner's channel and
// persists them, then hands the pass to alerting and health. Keeping the
// write path off the runner keeps slow storage from stretching a pass.
package datawriter

import (
	"context"
	"encoding/json"
	"log/slog"

	"netmon/pkg/database"
	"netmon/pkg/fleet"
	"netmon/pkg/models"
)

// PassObserver receives every persisted pass. The health tracker
// implements it directly; anything else can wrap with ObserverFunc.
type PassObserver interface {
	ObservePass(ctx context.Context, record *fleet.PassRecord)
}

// ObserverFunc adapts a function to PassObserver.
type ObserverFunc func(ctx context.Context, record *fleet.PassRecord)

func (f ObserverFunc) ObservePass(ctx context.Context, record *fleet.PassRecord) {
	f(ctx, record)
}

// Writer persists pass records and notifies observers.
type Writer struct {
	passes    database.Repository[models.FleetPass]
	results   database.Repository[models.CommandResult]
	records   <-chan *fleet.PassRecord
	observers []PassObserver
}

func NewWriter(passes database.Repository[models.FleetPass], results database.Repository[models.CommandResult], records <-chan *fleet.PassRecord, observers ...PassObserver) *Writer {
	return &Writer{
		passes:    passes,
		results:   results,
		records:   records,
		observers: observers,
	}
}

// Run consumes pass records until the context is cancelled. Records
// already queued when cancellation hits are still written out.
func (w *Writer) Run(ctx context.Context) {
	slog.Info("Data writer started", "component", "DataWriter")
	for {
		select {
		case record, ok := <-w.records:
			if !ok {
				slog.Info("Data writer channel closed", "component", "DataWriter")
				return
			}
			w.write(ctx, record)
		case <-ctx.Done():
			for {
				select {
				case record := <-w.records:
					w.write(context.Background(), record)
				default:
					slog.Info("Data writer stopped", "component", "DataWriter")
					return
				}
			}
		}
	}
}

// write persists the pass header, its per-command results, and then lets
// observers react. A storage failure is logged and skipped; the next pass
// must not be blocked by a bad row.
func (w *Writer) write(ctx context.Context, record *fleet.PassRecord) {
	outcomes, err := json.Marshal(record.Outcomes)
	if err != nil {
		slog.Error("Outcome encoding failed", "component", "DataWriter", "error", err)
		outcomes = []byte("[]")
	}

	pass := &models.FleetPass{
		StartedAt:   record.StartedAt,
		EndedAt:     record.EndedAt,
		Trigger:     record.Trigger,
		Summary:     record.Summary,
		DeviceCount: len(record.Outcomes),
		FailedCount: record.FailedCount(),
		Outcomes:    outcomes,
	}
	if _, err := w.passes.Create(ctx, pass); err != nil {
		slog.Error("Pass persist failed", "component", "DataWriter",
			"trigger", record.Trigger, "error", err)
		return
	}

	written := 0
	for _, outcome := range record.Outcomes {
		for _, result := range outcome.Results {
			result.PassID = pass.ID
			if _, err := w.results.Create(ctx, &result); err != nil {
				slog.Error("Result persist failed", "component", "DataWriter",
					"device_id", result.DeviceID, "error", err)
				continue
			}
			written++
		}
	}

	slog.Debug("Pass persisted", "component", "DataWriter",
		"pass_id", pass.ID, "results", written, "summary", record.Summary)

	for _, observer := range w.observers {
		observer.ObservePass(ctx, record)
	}
}
