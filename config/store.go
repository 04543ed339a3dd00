package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	skyerr "skyctl/internal/errors"
)

// IPStore persists the console address between invocations.
type IPStore struct {
	Path string
}

// DefaultIPStore returns the store at ~/.switch/ip_addr.txt.
func DefaultIPStore() (*IPStore, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("locate home directory: %w", err)
	}
	return &IPStore{Path: filepath.Join(home, IPStoreDir, IPStoreFile)}, nil
}

// Load returns the stored address.  A missing file is ErrNoAddress.
func (s *IPStore) Load() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: pass --ip, set SWITCH_IP, or run set-ip", skyerr.ErrNoAddress)
	}
	if err != nil {
		return "", err
	}
	return NormalizeIP(string(data))
}

// Save validates ip and writes it, creating the directory as needed.
// It returns the normalised address.
func (s *IPStore) Save(ip string) (string, error) {
	ip, err := NormalizeIP(ip)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(s.Path, []byte(ip), 0o644); err != nil {
		return "", err
	}
	return ip, nil
}

// NormalizeIP trims s, removes any spaces inside it, and checks that
// the result is an IP address.
func NormalizeIP(s string) (string, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return "", skyerr.ErrNoAddress
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return "", fmt.Errorf("%q: %w", s, skyerr.ErrBadAddress)
	}
	return ip.String(), nil
}
