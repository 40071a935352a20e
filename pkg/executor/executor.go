// Package executor runs command batches against one open session.
// Commands run sequentially: remote command-line protocols are not safely
// concurrent over a single session.
package executor

import (
	"context"
	"errors"
	"log/slog"

	"netmon/pkg/models"
	"netmon/pkg/session"
)

// Session is the contract the executor needs from an open session.
// *session.Session satisfies it.
type Session interface {
	Run(ctx context.Context, command string) (models.CommandResult, error)
	ApplyConfig(ctx context.Context, commands []string) (models.CommandResult, error)
}

// Executor runs batches with per-command failure containment.
type Executor struct{}

func New() *Executor {
	return &Executor{}
}

// ExecuteBatch runs the commands in order against the session.
//
// A command that fails on the device (success=false result, nil error)
// does not stop the batch; a session-level failure (timeout, broken
// channel) records its result and terminates the batch for this device.
// Results preserve submission order.
func (e *Executor) ExecuteBatch(ctx context.Context, sess Session, commands []string) []models.CommandResult {
	results := make([]models.CommandResult, 0, len(commands))

	for _, command := range commands {
		result, err := sess.Run(ctx, command)
		if err != nil {
			if errors.Is(err, session.ErrInvalidState) {
				// No I/O happened; nothing to record for this command.
				slog.Debug("Batch stopped on unusable session",
					"component", "Executor", "command", command)
				break
			}
			// Timed-out or broken command: the result is real, the
			// session is not.
			results = append(results, result)
			slog.Debug("Batch terminated by session failure",
				"component", "Executor", "command", command, "error", err)
			break
		}
		results = append(results, result)
	}

	return results
}

// ExecuteConfig applies the batch as one atomic configuration transaction
// and always reports exactly one result.
func (e *Executor) ExecuteConfig(ctx context.Context, sess Session, commands []string) models.CommandResult {
	result, err := sess.ApplyConfig(ctx, commands)
	if err != nil && errors.Is(err, session.ErrInvalidState) {
		result = models.CommandResult{
			Command: "config transaction",
			Error:   err.Error(),
		}
	}
	return result
}
