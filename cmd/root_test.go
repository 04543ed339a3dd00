package cmd

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	skyerr "skyctl/internal/errors"
	"skyctl/internal/ftp/ftptest"
	"skyctl/internal/layout"
)

const tid = "01006A800016E000"

// isolate points the address store at a temporary home and clears the
// environment overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, k := range []string{"SWITCH_IP", "SKYCTL_TITLE_ID", "SKYCTL_MANIFEST", "SKYCTL_TUNNEL", "SKYCTL_VERBOSE", "SKYCTL_FTP_PORT"} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var stdout, stderr bytes.Buffer
	err := execute(ctx, args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

// TestExecute_Version verifies --version prints a version string.
func TestExecute_Version(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "--version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("version output %q", out)
	}
}

// TestExecute_Help verifies --help (and no args) returns without error.
func TestExecute_Help(t *testing.T) {
	isolate(t)
	for _, args := range [][]string{{"--help"}, {}} {
		name := "no-args"
		if len(args) > 0 {
			name = args[0]
		}
		t.Run(name, func(t *testing.T) {
			out, _, err := run(t, args...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out, "install") {
				t.Errorf("help should list subcommands:\n%s", out)
			}
		})
	}
}

// TestExecute_IPStore verifies set-ip persists an address show-ip reads.
func TestExecute_IPStore(t *testing.T) {
	isolate(t)
	if _, _, err := run(t, "set-ip", " 192.168.1.20"); err != nil {
		t.Fatal(err)
	}
	out, _, err := run(t, "show-ip")
	if err != nil {
		t.Fatal(err)
	}
	if out != "192.168.1.20\n" {
		t.Errorf("show-ip = %q", out)
	}
}

// TestExecute_Errors verifies failures are printed with their category
// and map to the expected exit code.
func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"no address", []string{"list"}, 4, "ERROR: local-config:"},
		{"bad port", []string{"--ftp-port", "0", "show-ip"}, 4, "--ftp-port=0"},
		{"bad title id", []string{"-i", "10.0.0.1", "-t", "xyz", "restart"}, 4, "title-id"},
		{"bad address", []string{"set-ip", "not-an-ip"}, 5, "ERROR: user-input:"},
		{"too many args", []string{"set-ip", "a", "b"}, 1, "ERROR:"},
		{"unknown command", []string{"frobnicate"}, 1, "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			_, stderr, err := run(t, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := skyerr.ExitCode(err); got != tt.code {
				t.Errorf("ExitCode = %d, want %d (%v)", got, tt.code, err)
			}
			if !strings.Contains(stderr, tt.want) {
				t.Errorf("stderr %q does not contain %q", stderr, tt.want)
			}
		})
	}
}

// TestExecute_List lists the plugin directory of an in-process console.
func TestExecute_List(t *testing.T) {
	isolate(t)
	srv := ftptest.NewServer()
	defer srv.Close()
	srv.PutFile(layout.PluginPath(tid, "libplugin.nro"), []byte("nro"))

	host, port, err := net.SplitHostPort(srv.Addr)
	if err != nil {
		t.Fatal(err)
	}
	out, _, err := run(t, "-i", host, "--ftp-port", port, "-t", tid, "--stats", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "libplugin.nro") {
		t.Errorf("listing:\n%s", out)
	}
}

// TestExecute_Stats verifies --stats prints the snapshot even when the
// operation fails.
func TestExecute_Stats(t *testing.T) {
	isolate(t)
	srv := ftptest.NewServer()
	addr := srv.Addr
	srv.Close()

	host, port, _ := net.SplitHostPort(addr)
	_, stderr, err := run(t, "-i", host, "--ftp-port", port, "-t", tid, "--stats", "--conn-timeout", "1s", "rm", "x.nro")
	if got := skyerr.ExitCode(err); got != 2 {
		t.Fatalf("ExitCode = %d (%v)", got, err)
	}
	if !strings.Contains(stderr, `"errors_total": 1`) {
		t.Errorf("stats missing from stderr:\n%s", stderr)
	}
	if !strings.Contains(stderr, "[step connect] network:") {
		t.Errorf("error line missing step:\n%s", stderr)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{
			skyerr.Step("upload", skyerr.Remote("transfer", "/x.nro", &skyerr.StatusError{Command: "STOR", Code: 552, Text: "full"})),
			"[step upload] target: transfer /x.nro: STOR: unexpected status 552 full",
		},
		{skyerr.ErrNoTitleID, "local-config: no title id"},
		{io.ErrUnexpectedEOF, "unexpected EOF"},
	}
	for _, tt := range tests {
		if got := describe(tt.err); got != tt.want {
			t.Errorf("describe() = %q, want %q", got, tt.want)
		}
	}
}

func TestReporter_NoColorOnBuffers(t *testing.T) {
	var buf bytes.Buffer
	r := newReporter(&buf, false)
	r.Success("Connected!")
	r.Warning("old runtime")
	want := "Connected!\nWARNING: old runtime\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
