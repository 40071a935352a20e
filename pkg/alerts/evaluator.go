// Package alerts turns pass outcomes into persisted, deduplicated alerts.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"netmon/pkg/database"
	"netmon/pkg/fleet"
	"netmon/pkg/models"
)

// Publisher delivers alert lifecycle events to live subscribers.
type Publisher interface {
	Publish(event models.Event)
}

// Draft is an alert candidate produced by a rule before deduplication.
type Draft struct {
	Severity string
	Message  string
	DedupKey string
}

// Rule inspects one device outcome and proposes alerts.
type Rule func(outcome fleet.Outcome) []Draft

// Store is the persistence surface the evaluator needs.
// *database.AlertStore satisfies it.
type Store interface {
	Get(ctx context.Context, id int64) (*models.Alert, error)
	Create(ctx context.Context, alert *models.Alert) (*models.Alert, error)
	Update(ctx context.Context, id int64, alert *models.Alert) (*models.Alert, error)
	HasUnresolved(ctx context.Context, deviceID int64, dedupKey string) (bool, error)
}

var _ Store = (*database.AlertStore)(nil)

// Evaluator applies rules to every finished pass. An alert is raised only
// when the device has no unresolved alert with the same dedup key.
type Evaluator struct {
	alerts    Store
	publisher Publisher
	rules     []Rule
}

// NewEvaluator builds an Evaluator with the built-in reachability and
// session rules. alertOnCommandFailure additionally raises an alert when
// a device answers but rejects part of the batch.
func NewEvaluator(alerts Store, publisher Publisher, alertOnCommandFailure bool) *Evaluator {
	e := &Evaluator{
		alerts:    alerts,
		publisher: publisher,
	}
	e.rules = append(e.rules, reachabilityRule, sessionRule)
	if alertOnCommandFailure {
		e.rules = append(e.rules, commandFailureRule)
	}
	return e
}

// AddRule registers an extra rule.
func (e *Evaluator) AddRule(rule Rule) {
	e.rules = append(e.rules, rule)
}

// EvaluatePass runs every rule over every outcome of the pass.
func (e *Evaluator) EvaluatePass(ctx context.Context, record *fleet.PassRecord) {
	for _, outcome := range record.Outcomes {
		for _, rule := range e.rules {
			for _, draft := range rule(outcome) {
				e.raise(ctx, outcome.DeviceID, draft)
			}
		}
	}
}

func (e *Evaluator) raise(ctx context.Context, deviceID int64, draft Draft) {
	exists, err := e.alerts.HasUnresolved(ctx, deviceID, draft.DedupKey)
	if err != nil {
		slog.Error("Alert dedup lookup failed", "component", "AlertEvaluator",
			"device_id", deviceID, "dedup_key", draft.DedupKey, "error", err)
		return
	}
	if exists {
		return
	}

	alert := &models.Alert{
		DeviceID: deviceID,
		Severity: draft.Severity,
		Message:  draft.Message,
		DedupKey: draft.DedupKey,
	}
	if _, err := e.alerts.Create(ctx, alert); err != nil {
		slog.Error("Alert persist failed", "component", "AlertEvaluator",
			"device_id", deviceID, "error", err)
		return
	}

	slog.Warn("Alert raised", "component", "AlertEvaluator",
		"device_id", deviceID, "severity", draft.Severity, "message", draft.Message)
	if e.publisher != nil {
		e.publisher.Publish(models.NewEvent(models.EventAlertRaised, alert))
	}
}

// Resolve marks the alert resolved and announces it. Resolving an already
// resolved alert is a no-op.
func (e *Evaluator) Resolve(ctx context.Context, alertID int64) (*models.Alert, error) {
	alert, err := e.alerts.Get(ctx, alertID)
	if err != nil {
		return nil, fmt.Errorf("load alert %d: %w", alertID, err)
	}
	if alert.Resolved {
		return alert, nil
	}

	now := time.Now()
	alert.Resolved = true
	alert.ResolvedAt = &now
	if _, err := e.alerts.Update(ctx, alertID, alert); err != nil {
		return nil, fmt.Errorf("update alert %d: %w", alertID, err)
	}

	slog.Info("Alert resolved", "component", "AlertEvaluator", "alert_id", alertID)
	if e.publisher != nil {
		e.publisher.Publish(models.NewEvent(models.EventAlertResolved, alert))
	}
	return alert, nil
}

func reachabilityRule(outcome fleet.Outcome) []Draft {
	if outcome.Status != fleet.OutcomeConnectFailed {
		return nil
	}
	return []Draft{{
		Severity: models.SeverityHigh,
		Message:  fmt.Sprintf("device %s is unreachable: %s", outcome.Target, outcome.Error),
		DedupKey: "unreachable",
	}}
}

func sessionRule(outcome fleet.Outcome) []Draft {
	switch outcome.Status {
	case fleet.OutcomeSessionFailed:
		return []Draft{{
			Severity: models.SeverityMedium,
			Message:  fmt.Sprintf("session to %s failed mid-batch: %s", outcome.Target, outcome.Error),
			DedupKey: "session_failure",
		}}
	case fleet.OutcomeTimedOut:
		return []Draft{{
			Severity: models.SeverityMedium,
			Message:  fmt.Sprintf("device %s did not finish before the pass deadline", outcome.Target),
			DedupKey: "pass_timeout",
		}}
	}
	return nil
}

func commandFailureRule(outcome fleet.Outcome) []Draft {
	if outcome.Status != fleet.OutcomePartial {
		return nil
	}
	failed := 0
	for _, result := range outcome.Results {
		if !result.Success {
			failed++
		}
	}
	return []Draft{{
		Severity: models.SeverityLow,
		Message:  fmt.Sprintf("device %s rejected %d of %d commands", outcome.Target, failed, len(outcome.Results)),
		DedupKey: "command_failure",
	}}
}
