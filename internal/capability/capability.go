// Package capability defines the one-shot file commands run over an
// established console session: listing a directory, removing a file,
// and copying a local file over.  Each Capability operates on a
// Session rather than a raw connection, which keeps capabilities
// testable and decoupled from transport details.
//
// Remote paths are resolved before a capability is constructed, so a
// bad path never costs a connection.
package capability

import (
	"context"
	"fmt"
	"os"

	"skyctl/internal/session"
)

// Capability performs a single action against a session.
type Capability interface {
	// Handle runs the capability.  It blocks until the action is
	// complete or the context is cancelled.
	Handle(ctx context.Context, sess *session.Session) error
}

// List prints the raw listing of Dir.
type List struct {
	Dir string
}

func (l *List) Handle(ctx context.Context, sess *session.Session) error {
	listing, err := sess.Conn.List(ctx, l.Dir)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(sess.Stdout, listing)
	return err
}

// Remove deletes Path.
type Remove struct {
	Path string
}

func (r *Remove) Handle(_ context.Context, sess *session.Session) error {
	sess.Logger.Verbose("removing %s", r.Path)
	return sess.Conn.Delete(r.Path)
}

// Copy uploads the local file Src to Dest.
type Copy struct {
	Src  string
	Dest string
}

func (c *Copy) Handle(ctx context.Context, sess *session.Session) error {
	data, err := os.ReadFile(c.Src)
	if err != nil {
		return err
	}
	sess.Logger.Info("Transferring file to %s...", c.Dest)
	return sess.Conn.Put(ctx, c.Dest, data)
}
