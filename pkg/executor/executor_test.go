package executor

import (
	"context"
	"fmt"
	"testing"

	"netmon/pkg/models"
	"netmon/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSession returns a canned response per command and refuses
// everything after a session-level failure.
type scriptedSession struct {
	failed  bool
	outputs map[string]models.CommandResult
	errs    map[string]error
	calls   []string
}

func (s *scriptedSession) Run(ctx context.Context, command string) (models.CommandResult, error) {
	if s.failed {
		return models.CommandResult{}, session.ErrInvalidState
	}
	s.calls = append(s.calls, command)
	if err, ok := s.errs[command]; ok {
		s.failed = true
		return models.CommandResult{Command: command, Error: err.Error()}, fmt.Errorf("%w: %v", session.ErrSessionFailed, err)
	}
	if result, ok := s.outputs[command]; ok {
		return result, nil
	}
	return models.CommandResult{Command: command, Success: true}, nil
}

func (s *scriptedSession) ApplyConfig(ctx context.Context, commands []string) (models.CommandResult, error) {
	if s.failed {
		return models.CommandResult{}, session.ErrInvalidState
	}
	return models.CommandResult{Command: "config", Success: true}, nil
}

func TestExecuteBatchAllSucceed(t *testing.T) {
	sess := &scriptedSession{}
	results := New().ExecuteBatch(context.Background(), sess, []string{"show version", "show ip route", "show interfaces"})

	require.Len(t, results, 3)
	for i, command := range []string{"show version", "show ip route", "show interfaces"} {
		assert.Equal(t, command, results[i].Command, "results preserve submission order")
		assert.True(t, results[i].Success)
	}
}

func TestExecuteBatchCommandFailureContinues(t *testing.T) {
	sess := &scriptedSession{
		outputs: map[string]models.CommandResult{
			"show bogus": {Command: "show bogus", Error: "% Invalid input"},
		},
	}
	results := New().ExecuteBatch(context.Background(), sess, []string{"show version", "show bogus", "show clock"})

	require.Len(t, results, 3, "a command failure must not terminate the batch")
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.True(t, results[2].Success)
	assert.Equal(t, []string{"show version", "show bogus", "show clock"}, sess.calls)
}

func TestExecuteBatchSessionFailureStops(t *testing.T) {
	sess := &scriptedSession{
		errs: map[string]error{"show tech-support": fmt.Errorf("command timed out")},
	}
	results := New().ExecuteBatch(context.Background(), sess, []string{"show version", "show tech-support", "show clock"})

	require.Len(t, results, 2, "the failing command's result is kept, later commands are not attempted")
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Contains(t, results[1].Error, "timed out")
	assert.NotContains(t, sess.calls, "show clock")
}

func TestExecuteBatchInvalidSessionRecordsNothing(t *testing.T) {
	sess := &scriptedSession{failed: true}
	results := New().ExecuteBatch(context.Background(), sess, []string{"show version"})

	assert.Empty(t, results, "no I/O happened, so there is nothing to record")
}

func TestExecuteBatchEmpty(t *testing.T) {
	sess := &scriptedSession{}
	results := New().ExecuteBatch(context.Background(), sess, nil)
	assert.Empty(t, results)
}

func TestExecuteConfigInvalidSession(t *testing.T) {
	sess := &scriptedSession{failed: true}
	result := New().ExecuteConfig(context.Background(), sess, []string{"hostname edge-1"})
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
