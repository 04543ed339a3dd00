// Package config defines the runtime configuration for skyctl: where
// the console is, what to deploy to it, and how to reach it.
package config

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	skyerr "skyctl/internal/errors"
	"skyctl/internal/npdm"
	"skyctl/tunnel"
	"skyctl/util"
)

// Config holds every tuneable for a single skyctl invocation.
type Config struct {
	// ── Target ───────────────────────────────────────────────────────
	IP          string
	FTPPort     int
	LogPort     int
	RestartPort int
	Timeout     time.Duration // FTP I/O deadline
	ConnTimeout time.Duration

	// ── Project ──────────────────────────────────────────────────────
	TitleID      string
	ManifestPath string
	InstallPath  string // sd:/... or rom:/...
	FileName     string
	Artifact     string
	BuildCommand string
	RuntimeURL   string
	Restart      bool // run: send the restart signal after installing

	// ── Transfer ─────────────────────────────────────────────────────
	PostWriteDelay time.Duration
	LenientStor    bool
	Workers        int
	FetchTimeout   time.Duration
	FetchRetries   int

	// ── SSH tunnel ───────────────────────────────────────────────────
	TunnelSpec     string // raw user@host[:port]
	SSHKeyPath     string
	SSHPassword    bool // true → prompt interactively
	UseSSHAgent    bool
	StrictHostKey  bool
	KnownHostsPath string

	// ── Output ───────────────────────────────────────────────────────
	Verbose    int
	Timestamps bool
	Stats      bool
	NoColor    bool
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		FTPPort:      DefaultFTPPort,
		LogPort:      DefaultLogPort,
		RestartPort:  DefaultRestartPort,
		Timeout:      DefaultTimeout,
		ConnTimeout:  DefaultConnTimeout,
		RuntimeURL:   DefaultRuntimeURL,
		Workers:      DefaultWorkers,
		FetchTimeout: DefaultFetchTimeout,
		FetchRetries: DefaultFetchRetries,
	}
}

// ── Flags ────────────────────────────────────────────────────────────

// BindFlags declares the flags shared by every subcommand on fs.  The
// current field values become the flag defaults, so environment
// overrides should be applied to cfg first.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	// target
	fs.StringVarP(&cfg.IP, "ip", "i", cfg.IP, "Console IP address (default: $SWITCH_IP, then ~/.switch/ip_addr.txt)")
	fs.IntVar(&cfg.FTPPort, "ftp-port", cfg.FTPPort, "Console FTP port")
	fs.IntVar(&cfg.LogPort, "log-port", cfg.LogPort, "Runtime log port")
	fs.IntVar(&cfg.RestartPort, "restart-port", cfg.RestartPort, "Runtime restart port")
	fs.DurationVarP(&cfg.Timeout, "timeout", "w", cfg.Timeout, "FTP I/O timeout")
	fs.DurationVar(&cfg.ConnTimeout, "conn-timeout", cfg.ConnTimeout, "Connection timeout")

	// project
	fs.StringVarP(&cfg.TitleID, "title-id", "t", cfg.TitleID, "Title id of the game (16 hex digits)")
	fs.StringVarP(&cfg.ManifestPath, "manifest", "m", cfg.ManifestPath, "Project file (default: nearest skyline.yaml)")

	// tunnel
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Reach the console through SSH gateway [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// output
	// CountVarP zeroes its target; keep a level taken from the environment.
	level := cfg.Verbose
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	cfg.Verbose = level
	fs.BoolVar(&cfg.Timestamps, "timestamps", cfg.Timestamps, "Prefix log lines with the time")
	fs.BoolVar(&cfg.Stats, "stats", cfg.Stats, "Print run statistics as JSON when done")
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable coloured output")
}

// BindInstallFlags declares the flags of commands that deploy a plugin.
func BindInstallFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.InstallPath, "path", "p", cfg.InstallPath, `Install location, "sd:/..." or "rom:/..."`)
	fs.StringVar(&cfg.FileName, "file-name", cfg.FileName, "Name of the uploaded file")
	fs.StringVarP(&cfg.Artifact, "artifact", "a", cfg.Artifact, "Built plugin to upload (glob allowed)")
	fs.StringVar(&cfg.BuildCommand, "build-cmd", cfg.BuildCommand, "Shell command that builds the plugin")
	fs.StringVar(&cfg.RuntimeURL, "runtime-url", cfg.RuntimeURL, "Runtime distribution archive (URL or local path)")
	fs.DurationVar(&cfg.PostWriteDelay, "post-write-delay", cfg.PostWriteDelay, "Pause after each upload before reading its status")
	fs.BoolVar(&cfg.LenientStor, "lenient-stor", cfg.LenientStor, "Tolerate a missing upload completion status")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Parallel dependency downloads")
}

// ── Addresses ────────────────────────────────────────────────────────

// FTPAddr returns the console's FTP address.
func (c *Config) FTPAddr(ip string) string { return util.FormatAddr(ip, c.FTPPort) }

// LogAddr returns the runtime's log address.
func (c *Config) LogAddr(ip string) string { return util.FormatAddr(ip, c.LogPort) }

// RestartAddr returns the runtime's restart address.
func (c *Config) RestartAddr(ip string) string { return util.FormatAddr(ip, c.RestartPort) }

// ResolveIP returns the console address: the flag or $SWITCH_IP
// already merged into c.IP, otherwise the persisted one.
func (c *Config) ResolveIP(store *IPStore) (string, error) {
	if c.IP != "" {
		return NormalizeIP(c.IP)
	}
	if store == nil {
		return "", skyerr.ErrNoAddress
	}
	return store.Load()
}

// ── Tunnel ───────────────────────────────────────────────────────────

// TunnelConfig parses TunnelSpec into an SSH configuration, or returns
// nil when no tunnel is configured.
func (c *Config) TunnelConfig() (*tunnel.SSHConfig, error) {
	if c.TunnelSpec == "" {
		return nil, nil
	}
	sc, err := tunnel.ParseGateway(c.TunnelSpec, os.Getenv("USER"))
	if err != nil {
		return nil, &skyerr.ConfigError{Field: "tunnel", Value: c.TunnelSpec, Message: err.Error(),
			Hint: "expected [user@]host[:port]"}
	}
	sc.KeyPath = c.SSHKeyPath
	sc.PromptPass = c.SSHPassword
	sc.UseAgent = c.UseSSHAgent
	sc.StrictHostKey = c.StrictHostKey
	sc.KnownHosts = c.KnownHostsPath
	sc.ConnTimeout = c.ConnTimeout
	return sc, nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks field ranges and formats.  Missing values that have
// other sources (address, title id) are not errors here.
func (c *Config) Validate() error {
	for _, p := range []struct {
		field string
		port  int
	}{
		{"ftp-port", c.FTPPort},
		{"log-port", c.LogPort},
		{"restart-port", c.RestartPort},
	} {
		if p.port < 1 || p.port > 65535 {
			return &skyerr.ConfigError{Field: p.field, Value: p.port, Message: "out of range 1-65535"}
		}
	}

	if c.Timeout <= 0 {
		return &skyerr.ConfigError{Field: "timeout", Value: c.Timeout, Message: "must be positive"}
	}
	if c.ConnTimeout <= 0 {
		return &skyerr.ConfigError{Field: "conn-timeout", Value: c.ConnTimeout, Message: "must be positive"}
	}
	if c.PostWriteDelay < 0 {
		return &skyerr.ConfigError{Field: "post-write-delay", Value: c.PostWriteDelay, Message: "must not be negative"}
	}
	if c.Workers < 1 {
		return &skyerr.ConfigError{Field: "workers", Value: c.Workers, Message: "must be at least 1"}
	}

	if c.TitleID != "" {
		if _, err := npdm.ParseTitleID(c.TitleID); err != nil {
			return &skyerr.ConfigError{Field: "title-id", Value: c.TitleID, Message: "must be 16 hex digits",
				Hint: "e.g. 01006A800016E000"}
		}
	}
	if c.IP != "" {
		if _, err := NormalizeIP(c.IP); err != nil {
			return &skyerr.ConfigError{Field: "ip", Value: c.IP, Message: "not a valid IP address"}
		}
	}

	if c.TunnelSpec == "" && (c.SSHPassword || c.UseSSHAgent) {
		return &skyerr.ConfigError{Field: "tunnel", Message: "SSH options given without a gateway",
			Hint: "add --tunnel user@host"}
	}
	if c.TunnelSpec != "" && c.LenientStor {
		return &skyerr.ConfigError{Field: "lenient-stor", Message: "not supported through an SSH gateway",
			Hint: "SSH channels carry no read deadline; drop --lenient-stor or connect directly"}
	}
	if _, err := c.TunnelConfig(); err != nil {
		return err
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("ip=%s ftp=%d log=%d restart=%d title=%s tunnel=%s",
		c.IP, c.FTPPort, c.LogPort, c.RestartPort, c.TitleID, c.TunnelSpec)
}
