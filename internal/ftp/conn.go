// Package ftp implements the subset of FTP that the console's homebrew
// FTP server speaks: anonymous login, passive-mode data channels, and
// the MKD, CWD, LIST, DELE, TYPE and STOR commands.
//
// A Conn is not safe for concurrent use.  One deployment run owns one
// Conn; every listing or upload opens a fresh passive data channel.
package ftp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	skyerr "skyctl/internal/errors"
	"skyctl/internal/metrics"
	"skyctl/internal/transport"
	"skyctl/util"
)

const (
	// DefaultTimeout is the read/write deadline for control and data I/O.
	DefaultTimeout = 5 * time.Second

	// DefaultDrainTimeout bounds how long ClearPending waits for stale lines.
	DefaultDrainTimeout = 20 * time.Millisecond
)

// Options tune a Conn.  The zero value is usable.
type Options struct {
	// Timeout is the default deadline applied to each control-channel
	// read and write and to data-channel I/O.  Zero means DefaultTimeout.
	Timeout time.Duration

	// DrainTimeout is the short read deadline ClearPending uses.
	DrainTimeout time.Duration

	// PostWriteDelay is slept after an upload's data channel is closed
	// and before the completion status is read.
	PostWriteDelay time.Duration

	// LenientCompletion tolerates a missing completion status after
	// STOR: a timeout waiting for it is logged instead of failing.
	LenientCompletion bool

	Logger  *util.Logger
	Metrics *metrics.Collector
}

func (o *Options) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.DrainTimeout <= 0 {
		o.DrainTimeout = DefaultDrainTimeout
	}
	if o.Logger == nil {
		o.Logger = util.NewLogger(0)
	}
}

// Conn is an established control session.
type Conn struct {
	nc     net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	dialer transport.Dialer
	addr   string
	opts   Options
	cwd    string

	log   *util.Logger
	stats *metrics.Collector
	stop  func() bool
}

// Dial opens the control channel to addr through d and reads the
// greeting, which must be 220.  Cancelling ctx after Dial returns
// closes the connection, aborting any blocked read.
func Dial(ctx context.Context, d transport.Dialer, addr string, opts Options) (*Conn, error) {
	opts.setDefaults()

	nc, err := d.Dial(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	c := &Conn{
		nc:     nc,
		r:      bufio.NewReader(nc),
		w:      bufio.NewWriter(nc),
		dialer: d,
		addr:   addr,
		opts:   opts,
		log:    opts.Logger,
		stats:  opts.Metrics,
	}
	c.stop = context.AfterFunc(ctx, func() { nc.Close() })

	resp, err := c.ReadResponse()
	if err != nil {
		c.Close()
		return nil, err
	}
	if resp.Code != 220 {
		c.Close()
		return nil, &skyerr.StatusError{Command: "greeting", Code: resp.Code, Text: resp.Text}
	}
	return c, nil
}

// Close tears down the control channel.
func (c *Conn) Close() error {
	if c.stop != nil {
		c.stop()
	}
	return c.nc.Close()
}

// Addr returns the control channel's remote address as dialed.
func (c *Conn) Addr() string { return c.addr }

// Cwd returns the working directory set by the last successful CWD,
// or "" if none has been issued on this connection.
func (c *Conn) Cwd() string { return c.cwd }

// Login sends USER then PASS.  Each must succeed; the first rejection
// is returned without retrying.
func (c *Conn) Login(user, pass string) error {
	for _, cmd := range []struct{ verb, arg string }{{"USER", user}, {"PASS", pass}} {
		if _, err := c.exec(cmd.verb, cmd.arg); err != nil {
			return skyerr.Remote("login", "", err)
		}
	}
	c.log.Verbose("logged in as %s", user)
	return nil
}

// Send writes cmd followed by a single '\n'.
func (c *Conn) Send(cmd Command) error {
	c.log.Debug("[FTP] > %s", cmd.redacted())

	c.nc.SetWriteDeadline(time.Now().Add(c.opts.Timeout)) //nolint:errcheck
	if _, err := c.w.WriteString(cmd.String() + "\n"); err != nil {
		return c.ioErr("write", err)
	}
	if err := c.w.Flush(); err != nil {
		return c.ioErr("write", err)
	}
	c.stats.CommandSent()
	return nil
}

// ReadResponse reads and parses exactly one status line.
func (c *Conn) ReadResponse() (Response, error) {
	c.nc.SetReadDeadline(time.Now().Add(c.opts.Timeout)) //nolint:errcheck

	line, err := c.r.ReadString('\n')
	if err != nil {
		return Response{}, c.ioErr("read", err)
	}
	c.log.Debug("<FTP> < %s", trimEOL(line))
	return ParseResponse(line)
}

// ExpectSuccess reads one response and fails with *errors.StatusError
// unless its code is 2xx or 150.
func (c *Conn) ExpectSuccess() error {
	_, err := c.expect("")
	return err
}

// ClearPending discards anything the server sent that nobody read,
// such as a trailing "226" after a listing.  It waits at most
// DrainTimeout for more bytes and then restores the default deadline.
func (c *Conn) ClearPending() error {
	drained := c.r.Buffered()
	c.r.Discard(drained) //nolint:errcheck

	// Tunnelled connections may not support deadlines; without one a
	// drain read would block, so only the buffered bytes are dropped.
	if err := c.nc.SetReadDeadline(time.Now().Add(c.opts.DrainTimeout)); err != nil {
		return nil
	}
	defer c.nc.SetReadDeadline(time.Now().Add(c.opts.Timeout)) //nolint:errcheck

	buf := util.GetBuf()
	defer util.PutBuf(buf)

	for {
		n, err := c.r.Read(*buf)
		drained += n
		if err == nil {
			continue
		}
		if drained > 0 {
			c.log.Debug("<FTP> drained %d stale bytes", drained)
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil
		}
		return c.ioErr("read", err)
	}
}

// Do sends cmd and returns the single response that follows.
func (c *Conn) Do(cmd Command) (Response, error) {
	if err := c.Send(cmd); err != nil {
		return Response{}, err
	}
	return c.ReadResponse()
}

// exec builds, sends and checks one command.
func (c *Conn) exec(verb string, args ...string) (Response, error) {
	cmd, err := NewCommand(verb, args...)
	if err != nil {
		return Response{}, err
	}
	if err := c.Send(cmd); err != nil {
		return Response{}, err
	}
	return c.expect(verb)
}

// expect reads one response and classifies it.
func (c *Conn) expect(verb string) (Response, error) {
	resp, err := c.ReadResponse()
	if err != nil {
		return resp, err
	}
	if !resp.Success() {
		return resp, &skyerr.StatusError{Command: verb, Code: resp.Code, Text: resp.Text}
	}
	return resp, nil
}

// ioErr wraps a socket error as a NetworkError, tagging deadline
// expiry with errors.ErrTimeout.
func (c *Conn) ioErr(op string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		err = errors.Join(skyerr.ErrTimeout, err)
	}
	return skyerr.Wrap(op, c.addr, err)
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
