// Package session owns the per-device remote session lifecycle. A Session
// wraps one transport connection behind an explicit state machine; it is
// exclusively owned by one fleet worker for the duration of a device pass
// and never shared.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"netmon/pkg/models"
	"netmon/pkg/transport"
)

var (
	// ErrInvalidState is returned by Run on a handle that is not Connected.
	// No I/O is attempted and no result is produced.
	ErrInvalidState = errors.New("session not in connected state")

	// ErrSessionFailed marks the session unusable for further commands.
	ErrSessionFailed = errors.New("session failed")
)

// ConnectError reports that a device could not be reached or authenticated.
type ConnectError struct {
	Target string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Target, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// CredentialResolver resolves a device's credential reference into a usable
// credential, decrypting at the last possible moment.
type CredentialResolver interface {
	Resolve(ctx context.Context, device *models.Device) (transport.Credentials, error)
}

// Dialer opens sessions to devices, selecting a transport by the device's
// transport field.
type Dialer struct {
	transports     map[string]transport.Transport
	resolver       CredentialResolver
	connectTimeout time.Duration
	commandTimeout time.Duration
}

// NewDialer creates a Dialer with the built-in ssh and winrm transports.
func NewDialer(resolver CredentialResolver, connectTimeout, commandTimeout time.Duration) *Dialer {
	return &Dialer{
		transports: map[string]transport.Transport{
			"ssh":   transport.NewSSHTransport(),
			"winrm": transport.NewWinRMTransport(),
		},
		resolver:       resolver,
		connectTimeout: connectTimeout,
		commandTimeout: commandTimeout,
	}
}

// Register adds or replaces a transport implementation.
func (d *Dialer) Register(name string, t transport.Transport) {
	d.transports[name] = t
}

// Open connects to the device and returns a Connected session.
// Unreachable or unauthenticated devices yield a ConnectError within the
// connect timeout; Open never hangs.
func (d *Dialer) Open(ctx context.Context, device *models.Device) (*Session, error) {
	name := device.Transport
	if name == "" {
		name = "ssh"
	}
	tr, ok := d.transports[name]
	if !ok {
		return nil, &ConnectError{Target: device.IPAddress, Err: fmt.Errorf("unknown transport %q", name)}
	}

	creds, err := d.resolver.Resolve(ctx, device)
	if err != nil {
		return nil, &ConnectError{Target: device.IPAddress, Err: fmt.Errorf("resolve credentials: %w", err)}
	}

	conn, err := tr.Dial(ctx, device.IPAddress, device.Port, creds, d.connectTimeout)
	if err != nil {
		return nil, &ConnectError{Target: device.IPAddress, Err: err}
	}

	return &Session{
		device:     device,
		conn:       conn,
		state:      Connected,
		cmdTimeout: d.commandTimeout,
	}, nil
}

// Session is a live command-execution channel to one device.
type Session struct {
	mu         sync.Mutex
	state      State
	conn       transport.Conn
	device     *models.Device
	cmdTimeout time.Duration
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// Run executes one command with the per-command timeout. The Executing
// state never outlives this call: on return the session is Connected,
// Failed, or unchanged (invalid-state refusal).
//
// A device-reported failure produces a success=false result and a nil
// error; the session stays Connected. A timeout or transport failure
// produces a success=false result and an error wrapping ErrSessionFailed:
// the session must not be reused for the rest of the batch.
func (s *Session) Run(ctx context.Context, command string) (models.CommandResult, error) {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return models.CommandResult{}, fmt.Errorf("%w (state=%s)", ErrInvalidState, s.state)
	}
	s.state = Executing
	conn := s.conn
	s.mu.Unlock()

	result := models.CommandResult{
		DeviceID:   s.device.ID,
		Command:    command,
		CapturedAt: time.Now(),
	}

	type execOut struct {
		res transport.ExecResult
		err error
	}
	done := make(chan execOut, 1)
	go func() {
		res, err := conn.Exec(command)
		done <- execOut{res, err}
	}()

	timer := time.NewTimer(s.cmdTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			s.setState(Failed)
			result.Error = out.err.Error()
			return result, fmt.Errorf("%w: %v", ErrSessionFailed, out.err)
		}
		result.Output = out.res.Stdout
		if out.res.ExitCode != 0 {
			result.Error = fmt.Sprintf("command exited %d: %s", out.res.ExitCode, strings.TrimSpace(out.res.Stderr))
		} else {
			result.Success = true
		}
		s.setState(Connected)
		return result, nil

	case <-timer.C:
		// The command is still in flight on the wire; the channel cannot
		// be reused safely.
		s.setState(Failed)
		result.Error = fmt.Sprintf("command timed out after %s", s.cmdTimeout)
		return result, fmt.Errorf("%w: command timed out after %s", ErrSessionFailed, s.cmdTimeout)

	case <-ctx.Done():
		s.setState(Failed)
		result.Error = fmt.Sprintf("cancelled: %v", ctx.Err())
		return result, fmt.Errorf("%w: %v", ErrSessionFailed, ctx.Err())
	}
}

// ApplyConfig applies the batch as one configuration transaction. Partial
// application is reported as a single failed result summarizing the
// attempted change, never silently partial.
func (s *Session) ApplyConfig(ctx context.Context, commands []string) (models.CommandResult, error) {
	s.mu.Lock()
	if s.state != Connected {
		s.mu.Unlock()
		return models.CommandResult{}, fmt.Errorf("%w (state=%s)", ErrInvalidState, s.state)
	}
	s.state = Executing
	conn := s.conn
	s.mu.Unlock()

	summary := strings.Join(commands, "; ")
	result := models.CommandResult{
		DeviceID:   s.device.ID,
		Command:    summary,
		CapturedAt: time.Now(),
	}

	type execOut struct {
		res transport.ExecResult
		err error
	}
	done := make(chan execOut, 1)
	go func() {
		res, err := conn.ApplyConfig(commands)
		done <- execOut{res, err}
	}()

	// The transaction gets the per-command budget for each command in it.
	timeout := s.cmdTimeout * time.Duration(len(commands))
	if timeout < s.cmdTimeout {
		timeout = s.cmdTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			s.setState(Failed)
			result.Error = fmt.Sprintf("config transaction failed: %v", out.err)
			return result, fmt.Errorf("%w: %v", ErrSessionFailed, out.err)
		}
		result.Output = out.res.Stdout
		if out.res.ExitCode != 0 {
			result.Error = fmt.Sprintf("config transaction exited %d: %s", out.res.ExitCode, strings.TrimSpace(out.res.Stderr))
		} else {
			result.Success = true
		}
		s.setState(Connected)
		return result, nil

	case <-timer.C:
		s.setState(Failed)
		result.Error = fmt.Sprintf("config transaction timed out after %s", timeout)
		return result, fmt.Errorf("%w: config transaction timed out", ErrSessionFailed)

	case <-ctx.Done():
		s.setState(Failed)
		result.Error = fmt.Sprintf("cancelled: %v", ctx.Err())
		return result, fmt.Errorf("%w: %v", ErrSessionFailed, ctx.Err())
	}
}

// Close releases the underlying transport. It is idempotent and safe in
// every state, including Failed; the session always ends Disconnected.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == Disconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = Disconnecting
	conn := s.conn
	s.conn = nil
	s.state = Disconnected
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
