package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/masterzen/winrm"
)

// WinRMTransport dials Windows-managed elements over WinRM.
type WinRMTransport struct{}

func NewWinRMTransport() *WinRMTransport {
	return &WinRMTransport{}
}

// Dial creates a WinRM client and verifies it with a probe command.
// WinRM is connectionless per command, so the probe is what surfaces
// unreachable or unauthenticated targets within the timeout.
func (t *WinRMTransport) Dial(ctx context.Context, target string, port int, creds Credentials, timeout time.Duration) (Conn, error) {
	endpoint := winrm.NewEndpoint(target, port, false, true, nil, nil, nil, timeout)

	var client *winrm.Client
	var err error
	if creds.Domain != "" {
		params := winrm.DefaultParameters
		params.TransportDecorator = func() winrm.Transporter { return &winrm.ClientNTLM{} }
		client, err = winrm.NewClientWithParameters(
			endpoint,
			fmt.Sprintf("%s\\%s", creds.Domain, creds.Username),
			creds.Password,
			params,
		)
	} else {
		client, err = winrm.NewClient(endpoint, creds.Username, creds.Password)
	}
	if err != nil {
		return nil, fmt.Errorf("create winrm client: %w", err)
	}

	if _, _, _, err := client.RunWithString("hostname", ""); err != nil {
		return nil, fmt.Errorf("winrm probe %s:%d: %w", target, port, err)
	}
	return &winrmConn{client: client}, nil
}

type winrmConn struct {
	client *winrm.Client
	closed bool
}

func (c *winrmConn) Exec(command string) (ExecResult, error) {
	if c.closed {
		return ExecResult{ExitCode: -1}, fmt.Errorf("winrm connection closed")
	}
	stdout, stderr, exitCode, err := c.client.RunWithString(command, "")
	if err != nil {
		return ExecResult{ExitCode: -1}, fmt.Errorf("winrm run %q: %w", command, err)
	}
	return ExecResult{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}, nil
}

// ApplyConfig chains the batch into one shell invocation.
func (c *winrmConn) ApplyConfig(commands []string) (ExecResult, error) {
	return c.Exec(strings.Join(commands, " ; "))
}

// Close marks the connection unusable. WinRM holds no persistent socket
// between commands, so there is nothing to tear down.
func (c *winrmConn) Close() error {
	c.closed = true
	return nil
}
