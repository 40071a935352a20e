// Package transport provides the remote command-session capability consumed
// by the session layer. A Transport dials one device and returns a Conn that
// can execute commands; the wire protocol (SSH, WinRM) is an implementation
// detail behind these interfaces.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Credentials is the decrypted, protocol-specific credential payload.
// It exists only in memory between session open and close.
type Credentials struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Domain       string `json:"domain,omitempty"`        // WinRM NTLM domain
	PrivateKey   string `json:"private_key,omitempty"`   // SSH PEM-encoded key
	EnableSecret string `json:"enable_secret,omitempty"` // Privileged-mode secret
}

// ParseCredentials decodes a decrypted credential payload.
func ParseCredentials(payload string) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal([]byte(payload), &creds); err != nil {
		return Credentials{}, fmt.Errorf("invalid credential payload: %w", err)
	}
	if creds.Username == "" {
		return Credentials{}, fmt.Errorf("credential payload missing username")
	}
	return creds, nil
}

// ExecResult is the raw outcome of one remote command invocation.
// A non-zero ExitCode with a nil error means the device ran the command
// and reported failure; an error means the channel itself broke.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Conn is one authenticated command-execution channel to a device.
// Implementations are not safe for concurrent use; the owning session
// serializes access.
type Conn interface {
	// Exec runs a single command and returns its output.
	Exec(command string) (ExecResult, error)

	// ApplyConfig applies a command batch as one transaction. The whole
	// batch is reported as a unit: any transport-level failure fails the
	// entire transaction.
	ApplyConfig(commands []string) (ExecResult, error)

	Close() error
}

// Transport dials devices over one wire protocol.
type Transport interface {
	Dial(ctx context.Context, target string, port int, creds Credentials, timeout time.Duration) (Conn, error)
}
