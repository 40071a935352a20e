// Package fleet runs a command batch across many devices with bounded
// concurrency, containing every per-device failure inside that device's
// own outcome entry.
package fleet

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"netmon/pkg/executor"
	"netmon/pkg/models"
)

// OutcomeStatus classifies one device's result in a pass.
type OutcomeStatus string

const (
	OutcomeOK            OutcomeStatus = "ok"
	OutcomePartial       OutcomeStatus = "partial"
	OutcomeConnectFailed OutcomeStatus = "connect_failed"
	OutcomeSessionFailed OutcomeStatus = "session_failed"
	OutcomeTimedOut      OutcomeStatus = "timed_out"
)

// Outcome is the record of one device's participation in a pass.
// Every device attempted gets exactly one, whatever happened to it.
type Outcome struct {
	DeviceID int64                  `json:"device_id"`
	Target   string                 `json:"target"`
	Status   OutcomeStatus          `json:"status"`
	Error    string                 `json:"error,omitempty"`
	Results  []models.CommandResult `json:"results,omitempty"`
}

// PassRecord is the finalized record of one fleet pass.
type PassRecord struct {
	StartedAt time.Time
	EndedAt   time.Time
	Trigger   string
	Summary   string // success | partial | failure
	Outcomes  []Outcome
}

// FailedCount returns the number of devices that did not complete cleanly.
func (r *PassRecord) FailedCount() int {
	failed := 0
	for _, out := range r.Outcomes {
		if out.Status != OutcomeOK {
			failed++
		}
	}
	return failed
}

// Session is the per-device handle a pass worker drives.
type Session interface {
	executor.Session
	Close() error
}

// OpenFunc acquires a session for one device.
type OpenFunc func(ctx context.Context, device *models.Device) (Session, error)

// indexedOutcome pairs an outcome with its snapshot position.
type indexedOutcome struct {
	idx     int
	outcome Outcome
}

// Publisher delivers pass lifecycle events to live subscribers.
type Publisher interface {
	Publish(event models.Event)
}

// Runner executes fleet passes.
type Runner struct {
	open         OpenFunc
	exec         *executor.Executor
	concurrency  int
	passDeadline time.Duration
	publisher    Publisher
	records      chan<- *PassRecord
}

// NewRunner creates a Runner. concurrency caps simultaneously open
// sessions; passDeadline of 0 disables the pass-level deadline. records
// receives every finalized pass for persistence and may be nil.
func NewRunner(open OpenFunc, exec *executor.Executor, concurrency int, passDeadline time.Duration, publisher Publisher, records chan<- *PassRecord) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{
		open:         open,
		exec:         exec,
		concurrency:  concurrency,
		passDeadline: passDeadline,
		publisher:    publisher,
		records:      records,
	}
}

// RunPass executes the command batch against every device and returns the
// finalized record. Failures below the device level never escape: each
// device contributes exactly one outcome. Devices still unfinished when
// the pass deadline elapses are recorded as timed-out; their workers keep
// running and close their sessions once the per-command timeouts fire.
func (r *Runner) RunPass(ctx context.Context, devices []*models.Device, commands []string, trigger string) *PassRecord {
	record := &PassRecord{
		StartedAt: time.Now(),
		Trigger:   trigger,
	}

	slog.Info("Pass started", "component", "FleetRunner",
		"trigger", trigger, "devices", len(devices), "commands", len(commands))

	if r.publisher != nil {
		r.publisher.Publish(models.NewEvent(models.EventPassStarted, models.PassSummary{
			Trigger:     trigger,
			DeviceCount: len(devices),
		}))
	}

	// Immutable snapshot for the pass; workers receive index-stable tasks
	// and never mutate descriptors.
	snapshot := make([]*models.Device, len(devices))
	copy(snapshot, devices)

	taskQueue := make(chan int, len(snapshot))
	for idx := range snapshot {
		taskQueue <- idx
	}
	close(taskQueue)

	resultChan := make(chan indexedOutcome, len(snapshot))

	// stopCtx halts the pickup of new devices once the deadline passes.
	// It is deliberately not the context used for session I/O: slow
	// devices are marked, not killed.
	stopCtx, stopPickup := context.WithCancel(context.Background())
	defer stopPickup()

	workers := r.concurrency
	if workers > len(snapshot) {
		workers = len(snapshot)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range taskQueue {
				if stopCtx.Err() != nil {
					return
				}
				resultChan <- indexedOutcome{idx: idx, outcome: r.processDevice(ctx, snapshot[idx], commands)}
			}
		}()
	}

	var deadline <-chan time.Time
	if r.passDeadline > 0 {
		timer := time.NewTimer(r.passDeadline)
		defer timer.Stop()
		deadline = timer.C
	}

	// Keyed by snapshot index, not device ID, so every snapshot entry
	// accounts for exactly one outcome.
	collected := make([]Outcome, len(snapshot))
	seen := make([]bool, len(snapshot))
	finished := 0
collect:
	for finished < len(snapshot) {
		select {
		case res := <-resultChan:
			collected[res.idx] = res.outcome
			seen[res.idx] = true
			finished++
		case <-deadline:
			stopPickup()
			slog.Warn("Pass deadline elapsed, marking unfinished devices",
				"component", "FleetRunner",
				"finished", finished, "total", len(snapshot))
			break collect
		}
	}

	for idx, device := range snapshot {
		outcome := collected[idx]
		if !seen[idx] {
			outcome = Outcome{
				DeviceID: device.ID,
				Target:   device.IPAddress,
				Status:   OutcomeTimedOut,
				Error:    "pass deadline exceeded",
			}
		}
		record.Outcomes = append(record.Outcomes, outcome)
	}

	record.EndedAt = time.Now()
	record.Summary = summarize(record.Outcomes)

	slog.Info("Pass completed", "component", "FleetRunner",
		"summary", record.Summary,
		"devices", len(record.Outcomes),
		"failed", record.FailedCount(),
		"duration", record.EndedAt.Sub(record.StartedAt).String())

	if r.publisher != nil {
		r.publisher.Publish(models.NewEvent(models.EventPassCompleted, models.PassSummary{
			Trigger:     trigger,
			Summary:     record.Summary,
			DeviceCount: len(record.Outcomes),
			FailedCount: record.FailedCount(),
		}))
	}

	if r.records != nil {
		r.records <- record
	}

	// Abandoned workers drain into the buffered result channel and exit
	// on their own; nothing blocks on them.
	go func() {
		wg.Wait()
		for {
			select {
			case <-resultChan:
			default:
				return
			}
		}
	}()

	return record
}

// processDevice opens a session, runs the batch, and closes the session,
// always producing exactly one outcome.
func (r *Runner) processDevice(ctx context.Context, device *models.Device, commands []string) Outcome {
	outcome := Outcome{
		DeviceID: device.ID,
		Target:   device.IPAddress,
	}

	sess, err := r.open(ctx, device)
	if err != nil {
		outcome.Status = OutcomeConnectFailed
		outcome.Error = err.Error()
		slog.Warn("Device unreachable", "component", "FleetRunner",
			"device_id", device.ID, "target", device.IPAddress, "error", err)
		return outcome
	}
	defer func() {
		if err := sess.Close(); err != nil {
			slog.Warn("Session close failed", "component", "FleetRunner",
				"device_id", device.ID, "error", err)
		}
	}()

	outcome.Results = r.exec.ExecuteBatch(ctx, sess, commands)

	switch {
	case len(outcome.Results) < len(commands):
		outcome.Status = OutcomeSessionFailed
		if n := len(outcome.Results); n > 0 {
			outcome.Error = outcome.Results[n-1].Error
		}
	case allSuccessful(outcome.Results):
		outcome.Status = OutcomeOK
	default:
		outcome.Status = OutcomePartial
	}
	return outcome
}

func allSuccessful(results []models.CommandResult) bool {
	for _, result := range results {
		if !result.Success {
			return false
		}
	}
	return true
}

func summarize(outcomes []Outcome) string {
	if len(outcomes) == 0 {
		return "success"
	}
	ok := 0
	for _, outcome := range outcomes {
		if outcome.Status == OutcomeOK {
			ok++
		}
	}
	switch ok {
	case len(outcomes):
		return "success"
	case 0:
		return "failure"
	default:
		return "partial"
	}
}
