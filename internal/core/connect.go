package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"skyctl/internal/capability"
	"skyctl/internal/deploy"
	skyerr "skyctl/internal/errors"
	"skyctl/internal/ftp"
	"skyctl/internal/session"
	"skyctl/internal/transport"
	"skyctl/util"
)

// ConnectMode logs in to the console's FTP server and runs a
// capability on the resulting session.  list, rm and cp use it.
type ConnectMode struct {
	Dialer     transport.Dialer
	Address    string
	FTP        ftp.Options
	Capability capability.Capability
	Logger     *util.Logger

	// Stdout defaults to os.Stdout when nil.  Override in tests for
	// deterministic output.
	Stdout io.Writer
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run connects, logs in anonymously, and hands the session to the
// capability.  The control connection is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	m.Logger.Verbose("connecting to %s", m.Address)

	opts := m.FTP
	if opts.Logger == nil {
		opts.Logger = m.Logger
	}
	conn, err := ftp.Dial(ctx, m.Dialer, m.Address, opts)
	if err != nil {
		return skyerr.Step("connect", fmt.Errorf("connect to %s: %w", m.Address, err))
	}
	defer conn.Close()

	if err := conn.Login(deploy.AnonymousUser, deploy.AnonymousUser); err != nil {
		return skyerr.Step("connect", err)
	}
	m.Logger.Verbose("connected to %s", m.Address)

	sess := session.New(conn, m.stdout(), m.Logger)
	return m.Capability.Handle(ctx, sess)
}
