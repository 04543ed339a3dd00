// Package transport provides abstractions for network connection
// establishment.  The FTP control channel, every passive data channel,
// the log relay and the restart signal all dial through a Dialer, so a
// console on a remote LAN can be reached through an SSH jump host
// without the protocol code knowing.
package transport

import (
	"context"
	"net"
)

// Dialer opens outbound network connections.  Implementations are a
// plain TCP dialer and an SSH-tunnelled dialer that routes traffic
// through a gateway.
type Dialer interface {
	// Dial establishes a connection to the given network address.
	Dial(ctx context.Context, network, address string) (net.Conn, error)

	// Close releases any long-lived resources held by the dialer
	// (e.g. an SSH session).  Stateless dialers return nil.
	Close() error
}
