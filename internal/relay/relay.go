// Package relay talks to the runtime once it is loaded on the console:
// it follows the runtime's log stream and sends the restart signal.
package relay

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	skyerr "skyctl/internal/errors"
	"skyctl/internal/metrics"
	"skyctl/internal/retry"
	"skyctl/internal/transport"
	"skyctl/util"
)

const (
	// ReconnectDelay is the pause between attempts to reach the log port.
	ReconnectDelay = 10 * time.Millisecond
	// MaxReconnectDelay caps the pause while the console is unreachable.
	MaxReconnectDelay = time.Second
	// RestartTimeout bounds the connect of the restart signal.
	RestartTimeout = time.Second
)

// Listener follows the runtime's log port and copies everything it
// sends to Out.  The console closes the socket whenever the game
// restarts, so Listener reconnects until its context is cancelled.
type Listener struct {
	Dialer  transport.Dialer
	Addr    string
	Out     io.Writer
	Logger  *util.Logger
	Metrics *metrics.Collector

	// Backoff overrides the reconnect schedule.  Attempts are unlimited
	// regardless of its MaxAttempts.
	Backoff *retry.Backoff
}

// Run blocks until ctx is cancelled.  Connection errors are retried,
// except that a failing SSH gateway ends the relay.
func (l *Listener) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		conn, err := l.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("log relay: %w", err)
		}
		l.Logger.Verbose("log relay connected to %s", l.Addr)

		n, err := util.CopyStream(ctx, l.Out, conn)
		conn.Close()
		l.Metrics.RelayBytes(n)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			l.Logger.Debug("log relay: %v", err)
		}
		l.Logger.Verbose("log relay disconnected after %d bytes, reconnecting", n)
		l.Metrics.RelayReconnect()
	}
	return nil
}

func (l *Listener) connect(ctx context.Context) (conn net.Conn, err error) {
	b := *retry.DefaultBackoff()
	b.InitialDelay, b.MaxDelay, b.Jitter = ReconnectDelay, MaxReconnectDelay, false
	if l.Backoff != nil {
		b = *l.Backoff
	}
	b.MaxAttempts = 0

	err = b.Do(ctx, func(attempt int) error {
		c, err := l.Dialer.Dial(ctx, "tcp", l.Addr)
		if err != nil {
			// A gateway that refuses us will not change its mind.
			var sshErr *skyerr.SSHError
			if skyerr.As(err, &sshErr) {
				return retry.Permanent(err)
			}
			if attempt == 1 {
				l.Logger.Verbose("waiting for log port %s", l.Addr)
			}
			l.Logger.Debug("log relay attempt %d: %v", attempt, err)
			return err
		}
		conn = c
		return nil
	})
	return conn, err
}

// SendRestart asks the runtime to relaunch the title: it connects to
// addr and writes tid as eight big-endian bytes.
func SendRestart(ctx context.Context, d transport.Dialer, addr string, tid uint64) error {
	ctx, cancel := context.WithTimeout(ctx, RestartTimeout)
	defer cancel()

	conn, err := d.Dial(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	defer conn.Close()

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], tid)
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline) //nolint:errcheck
	}
	if _, err := conn.Write(msg[:]); err != nil {
		return fmt.Errorf("restart: %w", skyerr.Wrap("write", addr, err))
	}
	return nil
}
