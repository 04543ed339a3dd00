// Package session represents one authenticated control connection to
// the console, bound to the output the user sees.
//
// Sessions decouple capabilities from how the connection was made: a
// capability doesn't need to know whether it runs over a direct socket
// or an SSH tunnel, or whether its output goes to os.Stdout or a test
// buffer.
package session

import (
	"io"

	"skyctl/internal/ftp"
	"skyctl/util"
)

// Session encapsulates the runtime context for a single connection.
type Session struct {
	Conn   *ftp.Conn
	Stdout io.Writer
	Logger *util.Logger
}

// New creates a Session bound to the given connection and output.
func New(conn *ftp.Conn, stdout io.Writer, logger *util.Logger) *Session {
	return &Session{
		Conn:   conn,
		Stdout: stdout,
		Logger: logger,
	}
}
