// Package tunnel defines the Tunnel interface and provides an SSH
// implementation backed by golang.org/x/crypto/ssh.  It lets skyctl
// reach a console that sits on a LAN behind an SSH gateway.
package tunnel

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Tunnel abstracts an encrypted channel through which TCP connections
// can be forwarded.
type Tunnel interface {
	// Connect establishes the tunnel to the gateway.
	Connect(ctx context.Context) error

	// Dial opens a connection to address through the tunnel.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close tears down the tunnel and frees resources.
	Close() error

	// IsAlive reports whether the underlying connection is still up.
	IsAlive() bool
}

// ParseGateway parses a "[user@]host[:port]" gateway spec into an
// SSHConfig.  The user defaults to $USER and the port to 22.
func ParseGateway(spec, defaultUser string) (*SSHConfig, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty gateway")
	}

	cfg := &SSHConfig{User: defaultUser, Port: 22}
	if at := strings.LastIndex(spec, "@"); at >= 0 {
		cfg.User = spec[:at]
		spec = spec[at+1:]
	}

	host := spec
	if h, p, err := net.SplitHostPort(spec); err == nil {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("gateway port %q out of range", p)
		}
		host, cfg.Port = h, port
	}
	if host == "" {
		return nil, fmt.Errorf("gateway %q has no host", spec)
	}
	if cfg.User == "" {
		return nil, fmt.Errorf("gateway %q has no user", spec)
	}
	cfg.Host = host
	return cfg, nil
}
