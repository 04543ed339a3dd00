package util

import (
	"context"
	"errors"
	"io"
	"net"
)

// DefaultBufSize is the standard buffer size for network I/O (32 KiB).
const DefaultBufSize = 32 * 1024

// CopyStream copies everything src yields into w until src reaches EOF,
// the connection is closed, or ctx is cancelled.  It returns the number
// of bytes copied; shutdown-related errors are reported as nil.
func CopyStream(ctx context.Context, w io.Writer, src net.Conn) (int64, error) {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			src.Close() // unblock the pending read
		case <-done:
		}
	}()

	buf := GetBuf()
	defer PutBuf(buf)

	n, err := io.CopyBuffer(w, src, *buf)
	if isHarmless(err) {
		return n, nil
	}
	return n, err
}

// ReadAll drains r into memory using a pooled copy buffer.
func ReadAll(r io.Reader) ([]byte, error) {
	buf := GetBuf()
	defer PutBuf(buf)

	var out []byte
	for {
		n, err := r.Read(*buf)
		out = append(out, (*buf)[:n]...)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

// isHarmless returns true for errors that are expected during shutdown.
func isHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
