// Package errors provides domain-specific error types for skyctl.
//
// These types carry structured context (operation, address, status code,
// deployment step) that lets the CLI name the failing step and the party
// responsible, and pick a process exit code from it.
package errors

import (
	"errors"
	"fmt"
	"net"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNotConnected    = errors.New("not connected")
	ErrTimeout         = errors.New("operation timed out")
	ErrAuthFailed      = errors.New("authentication failed")
	ErrHostKeyMismatch = errors.New("host key mismatch")
	ErrInvalidArgument = errors.New("argument contains control characters")
	ErrNoAddress       = errors.New("no target address configured")
	ErrBadAddress      = errors.New("target address is not a valid IP")
	ErrNoTitleID       = errors.New("no title id")
	ErrBadTitleID      = errors.New("title id must be 16 hex digits")
)

// ── Structured error types ───────────────────────────────────────────

// NetworkError represents a failure in a network operation: connection
// refused, reset, or timed out at the socket layer.
type NetworkError struct {
	Op        string // operation: "dial", "read", "write"
	Addr      string // network address involved
	Err       error  // underlying error
	Retryable bool   // whether the caller should retry
}

func (e *NetworkError) Error() string {
	s := fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
	if e.Retryable {
		s += " (retryable)"
	}
	return s
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a server line that is not "<3-digit code> text",
// or a reply payload that could not be decoded.
type ProtocolError struct {
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %q", e.Reason, e.Line)
}

// StatusError is an FTP reply whose code fell outside the range the
// command accepts.
type StatusError struct {
	Command string // verb that was answered, e.g. "STOR"
	Code    int
	Text    string
}

func (e *StatusError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("unexpected status %d %s", e.Code, e.Text)
	}
	return fmt.Sprintf("%s: unexpected status %d %s", e.Command, e.Code, e.Text)
}

// RemoteOpError identifies which remote file operation failed.
type RemoteOpError struct {
	Op   string // "login", "mkdir", "probe", "list", "delete", "transfer"
	Path string
	Err  error
}

func (e *RemoteOpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RemoteOpError) Unwrap() error { return e.Err }

// PathError is an install path the resolver does not understand.
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("install path %q: %s", e.Path, e.Message)
}

// RemediationError reports that fetching or generating a missing
// runtime, manifest descriptor, or dependency failed.
type RemediationError struct {
	Component string // "runtime", "npdm", "dependency <name>"
	Err       error
}

func (e *RemediationError) Error() string {
	return fmt.Sprintf("remediate %s: %v", e.Component, e.Err)
}

func (e *RemediationError) Unwrap() error { return e.Err }

// StepError attaches the deployment step that aborted the run.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// SSHError represents an SSH-specific failure with host context.
type SSHError struct {
	Op   string // "handshake", "auth", "hostkey"
	Host string
	Port int
	Err  error
}

func (e *SSHError) Error() string {
	return fmt.Sprintf("ssh %s %s:%d: %v", e.Op, e.Host, e.Port, e.Err)
}

func (e *SSHError) Unwrap() error { return e.Err }

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Constructors ─────────────────────────────────────────────────────

// Wrap creates a NetworkError, automatically detecting retryability
// from the underlying error.
func Wrap(op, addr string, err error) *NetworkError {
	return &NetworkError{
		Op:        op,
		Addr:      addr,
		Err:       err,
		Retryable: classifyRetryable(err),
	}
}

// WrapSSH creates an SSHError.
func WrapSSH(op, host string, port int, err error) *SSHError {
	return &SSHError{Op: op, Host: host, Port: port, Err: err}
}

// Remote creates a RemoteOpError.
func Remote(op, path string, err error) *RemoteOpError {
	return &RemoteOpError{Op: op, Path: path, Err: err}
}

// Step creates a StepError, or returns nil for a nil err.
func Step(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Retryable
	}
	return classifyRetryable(err)
}

// StatusCode returns the FTP reply code carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// StepOf returns the deployment step attached to err, or "".
func StepOf(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}

// classifyRetryable inspects standard library error types.
func classifyRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Temporary() //nolint:staticcheck // Temporary is deprecated but still useful
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.Temporary() //nolint:staticcheck
	}
	return false
}

// ── Re-exports for convenience ───────────────────────────────────────
//
// These allow callers to use skyctl/internal/errors as a drop-in
// replacement for the standard library in common operations.

// As is [errors.As].
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Is is [errors.Is].
func Is(err, target error) bool { return errors.Is(err, target) }

// New is [errors.New].
func New(text string) error { return errors.New(text) }

// Unwrap is [errors.Unwrap].
func Unwrap(err error) error { return errors.Unwrap(err) }

// Join is [errors.Join].
func Join(errs ...error) error { return errors.Join(errs...) }
