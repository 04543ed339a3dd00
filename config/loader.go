package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/)
//   2. Environment variables  (this file)
//   3. Persisted console address  (store.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// SWITCH_IP is shared with other console tooling; everything else uses
// the SKYCTL_ prefix.  Boolean values accept "1", "true", "yes"
// (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// flags are bound so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("SWITCH_IP")); v != "" {
		cfg.IP = v
	}
	if v := os.Getenv("SKYCTL_TITLE_ID"); v != "" {
		cfg.TitleID = v
	}
	if v := envInt("SKYCTL_TIMEOUT"); v > 0 {
		cfg.Timeout = secondsDuration(v)
	}
	if v := envInt("SKYCTL_FTP_PORT"); v > 0 {
		cfg.FTPPort = v
	}
	if v := os.Getenv("SKYCTL_MANIFEST"); v != "" {
		cfg.ManifestPath = v
	}
	if v := os.Getenv("SKYCTL_RUNTIME_URL"); v != "" {
		cfg.RuntimeURL = v
	}
	if envBool("SKYCTL_LENIENT_STOR") {
		cfg.LenientStor = true
	}

	// SSH tunnel
	if v := os.Getenv("SKYCTL_TUNNEL"); v != "" {
		cfg.TunnelSpec = v
	}
	if v := os.Getenv("SKYCTL_SSH_KEY"); v != "" {
		cfg.SSHKeyPath = v
	}

	// Output
	if v := envInt("SKYCTL_VERBOSE"); v > 0 {
		cfg.Verbose = v
	}
	if os.Getenv("NO_COLOR") != "" {
		cfg.NoColor = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
