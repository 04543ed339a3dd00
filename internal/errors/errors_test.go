package errors

import (
	"fmt"
	"io"
	"io/fs"
	"net"
	"testing"
)

func TestNetworkError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  NetworkError
		want string
	}{
		{
			name: "retryable",
			err:  NetworkError{Op: "dial", Addr: "192.168.1.20:5000", Err: io.EOF, Retryable: true},
			want: "dial 192.168.1.20:5000: EOF (retryable)",
		},
		{
			name: "non-retryable",
			err:  NetworkError{Op: "read", Addr: "192.168.1.20:5000", Err: fmt.Errorf("reset")},
			want: "read 192.168.1.20:5000: reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNetworkError_Unwrap(t *testing.T) {
	err := &NetworkError{Op: "dial", Addr: "x", Err: io.EOF}
	if !Is(err, io.EOF) {
		t.Error("should unwrap to io.EOF")
	}
}

func TestStatusError_Format(t *testing.T) {
	tests := []struct {
		err  StatusError
		want string
	}{
		{StatusError{Command: "STOR", Code: 550, Text: "Permission denied"}, "STOR: unexpected status 550 Permission denied"},
		{StatusError{Code: 421, Text: "bye"}, "unexpected status 421 bye"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestRemoteOpError_Unwrap(t *testing.T) {
	inner := &StatusError{Command: "MKD", Code: 550}
	err := Remote("mkdir", "/atmosphere", inner)
	if got := StatusCode(err); got != 550 {
		t.Errorf("StatusCode = %d, want 550", got)
	}
	if want := "mkdir /atmosphere: MKD: unexpected status 550 "; err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestStep(t *testing.T) {
	if Step("upload", nil) != nil {
		t.Error("Step(nil) should be nil")
	}
	err := Step("ensure-runtime", &RemediationError{Component: "runtime", Err: io.EOF})
	if got := StepOf(err); got != "ensure-runtime" {
		t.Errorf("StepOf = %q", got)
	}
	if !Is(err, io.EOF) {
		t.Error("should unwrap through step and remediation")
	}
	if StepOf(io.EOF) != "" {
		t.Error("plain error should have no step")
	}
}

func TestSSHError_Format(t *testing.T) {
	err := WrapSSH("handshake", "bastion.example.com", 22, fmt.Errorf("connection refused"))
	want := "ssh handshake bastion.example.com:22: connection refused"
	if got := err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConfigError_Format(t *testing.T) {
	tests := []struct {
		name string
		err  ConfigError
		want string
	}{
		{
			name: "with value and hint",
			err: ConfigError{
				Field:   "ftp-port",
				Value:   99999,
				Message: "out of range 1-65535",
				Hint:    "the console's FTP server listens on 5000",
			},
			want: "config: --ftp-port=99999: out of range 1-65535\n  hint: the console's FTP server listens on 5000",
		},
		{
			name: "missing value no hint",
			err: ConfigError{
				Field:   "ip",
				Message: "required",
			},
			want: "config: --ip: required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got:\n%s\nwant:\n%s", got, tt.want)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := Wrap("dial", "10.0.0.1:5000", inner)

	if err.Op != "dial" || err.Addr != "10.0.0.1:5000" {
		t.Errorf("wrong fields: Op=%q Addr=%q", err.Op, err.Addr)
	}
	if !Is(err, inner) {
		t.Error("should unwrap to inner error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: true}, true},
		{"non-retryable network", &NetworkError{Op: "dial", Addr: "x", Err: io.EOF, Retryable: false}, false},
		{"plain error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyRetryable_NetOpError(t *testing.T) {
	opErr := &net.OpError{
		Op:  "dial",
		Net: "tcp",
		Err: &net.DNSError{IsTemporary: true},
	}
	if !classifyRetryable(opErr) {
		t.Error("temporary OpError should be retryable")
	}
}

// ── Classify / ExitCode ──────────────────────────────────────────────

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
		code int
	}{
		{"nil", nil, CategoryUnknown, 0},
		{"plain", fmt.Errorf("boom"), CategoryUnknown, 1},
		{"network", Step("connect", Wrap("dial", "x", io.EOF)), CategoryNetwork, 2},
		{"net.OpError", &net.OpError{Op: "read", Err: io.EOF}, CategoryNetwork, 2},
		{"ssh", WrapSSH("auth", "h", 22, io.EOF), CategoryNetwork, 2},
		{"status", Step("upload", Remote("transfer", "/x", &StatusError{Code: 550})), CategoryTarget, 3},
		{"protocol", &ProtocolError{Line: "hello", Reason: "bad code"}, CategoryTarget, 3},
		{"config", &ConfigError{Field: "ip", Message: "required"}, CategoryLocalConfig, 4},
		{"no address", fmt.Errorf("resolve: %w", ErrNoAddress), CategoryLocalConfig, 4},
		{"missing file", &fs.PathError{Op: "open", Path: "x.nro", Err: fs.ErrNotExist}, CategoryLocalConfig, 4},
		{"install path", &PathError{Path: "foo:/bar", Message: "unknown prefix"}, CategoryUserInput, 5},
		{"bad title", ErrBadTitleID, CategoryUserInput, 5},
		{"fs error outranks a deeper sentinel", &fs.PathError{Op: "open", Path: "x", Err: ErrBadTitleID}, CategoryLocalConfig, 4},
		{"path error outranks a sibling status", fmt.Errorf("%w; %w", &StatusError{Code: 550}, &PathError{Path: "x", Message: "bad"}), CategoryUserInput, 5},
		{"remediation wraps network", Step("ensure-runtime", &RemediationError{Component: "runtime", Err: Wrap("dial", "x", io.EOF)}), CategoryRemediation, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
			if got := ExitCode(tt.err); got != tt.code {
				t.Errorf("ExitCode() = %d, want %d", got, tt.code)
			}
		})
	}
}

func TestSentinels(t *testing.T) {
	sentinels := []error{
		ErrNotConnected, ErrTimeout, ErrAuthFailed, ErrHostKeyMismatch,
		ErrInvalidArgument, ErrNoAddress, ErrBadAddress, ErrNoTitleID, ErrBadTitleID,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && Is(a, b) {
				t.Errorf("sentinel %d and %d should not match", i, j)
			}
		}
	}
}
