package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"skyctl/internal/metrics"
	"skyctl/internal/npdm"
	"skyctl/internal/relay"
	"skyctl/internal/transport"
	"skyctl/util"
)

// ListenMode prints the runtime's log stream until cancelled,
// reconnecting whenever the console drops it.
type ListenMode struct {
	Dialer   transport.Dialer
	Address  string
	Logger   *util.Logger
	Metrics  *metrics.Collector
	Reporter Reporter

	// Stdout defaults to os.Stdout when nil.
	Stdout io.Writer
}

func (m *ListenMode) Run(ctx context.Context) error {
	out := m.Stdout
	if out == nil {
		out = os.Stdout
	}
	m.Reporter.Status(fmt.Sprintf("Listening for logs on %s...", m.Address))

	l := &relay.Listener{
		Dialer:  m.Dialer,
		Addr:    m.Address,
		Out:     out,
		Logger:  m.Logger,
		Metrics: m.Metrics,
	}
	return l.Run(ctx)
}

// RestartMode asks the runtime to relaunch the title.
type RestartMode struct {
	Dialer   transport.Dialer
	Address  string
	TitleID  string
	Reporter Reporter
}

func (m *RestartMode) Run(ctx context.Context) error {
	tid, err := npdm.ParseTitleID(m.TitleID)
	if err != nil {
		return err
	}
	if err := relay.SendRestart(ctx, m.Dialer, m.Address, tid); err != nil {
		return err
	}
	m.Reporter.Success(fmt.Sprintf("Restart requested for %s", npdm.FormatTitleID(tid)))
	return nil
}

// RunMode installs the plugin, then follows the log stream.  With
// Restart set, the restart signal is sent once the relay has had
// Delay to start; the two are not otherwise ordered.
type RunMode struct {
	Install Mode
	Listen  Mode
	Restart Mode
	Delay   time.Duration
	Logger  *util.Logger
}

func (m *RunMode) Run(ctx context.Context) error {
	if err := m.Install.Run(ctx); err != nil {
		return err
	}

	if m.Restart != nil {
		go func() {
			t := time.NewTimer(m.Delay)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			if err := m.Restart.Run(ctx); err != nil {
				m.Logger.Warn("restart: %v", err)
			}
		}()
	}

	return m.Listen.Run(ctx)
}
