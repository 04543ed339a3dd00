package ftp

import (
	"context"
	"errors"
	"io"
	"net"
	"path"
	"strings"
	"time"

	skyerr "skyctl/internal/errors"
	"skyctl/util"
)

// probeSize is how many listing bytes Exists reads.  A listing of one
// byte or less is treated as empty.
const probeSize = 2

// Mkdir issues MKD.  Servers reply 550 when the directory already
// exists, so provisioning callers usually ignore the error.
func (c *Conn) Mkdir(path string) error {
	if _, err := c.exec("MKD", path); err != nil {
		return skyerr.Remote("mkdir", path, err)
	}
	return nil
}

// ChangeDir issues CWD and records the resulting working directory.
// A relative dir is taken from the current one, or from the root
// before any CWD.
func (c *Conn) ChangeDir(dir string) error {
	if _, err := c.exec("CWD", dir); err != nil {
		return skyerr.Remote("cwd", dir, err)
	}
	if !strings.HasPrefix(dir, "/") {
		base := c.cwd
		if base == "" {
			base = "/"
		}
		dir = path.Join(base, dir)
	}
	c.cwd = path.Clean(dir)
	return nil
}

// Delete issues DELE and returns the server's verdict.
func (c *Conn) Delete(path string) error {
	if _, err := c.exec("DELE", path); err != nil {
		return skyerr.Remote("delete", path, err)
	}
	return nil
}

// Exists reports whether LIST path yields a non-empty listing.  A
// rejected LIST means the path does not exist.
func (c *Conn) Exists(ctx context.Context, path string) (bool, error) {
	c.stats.Probe()

	_, dc, err := c.OpenPassive(ctx)
	if err != nil {
		return false, skyerr.Remote("probe", path, err)
	}
	defer dc.Close()

	cmd, err := NewCommand("LIST", path)
	if err != nil {
		return false, skyerr.Remote("probe", path, err)
	}
	if err := c.Send(cmd); err != nil {
		return false, skyerr.Remote("probe", path, err)
	}

	resp, err := c.expect("LIST")
	if err != nil {
		var se *skyerr.StatusError
		if errors.As(err, &se) {
			c.log.Debug("probe %s: %s", path, resp)
			return false, nil
		}
		return false, skyerr.Remote("probe", path, err)
	}
	if !resp.Final() {
		if _, err := c.ReadResponse(); err != nil {
			return false, skyerr.Remote("probe", path, err)
		}
	}

	dc.SetReadDeadline(time.Now().Add(c.opts.Timeout)) //nolint:errcheck
	buf := make([]byte, probeSize)
	// One read: a server may hold the data socket open after a short
	// listing.
	n, err := dc.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, skyerr.Remote("probe", path, c.ioErr("read", err))
	}
	return n > 1, nil
}

// List returns the raw LIST output for dir, or for the current
// directory when dir is empty.  A non-empty dir is entered with CWD
// first, which changes Cwd.
func (c *Conn) List(ctx context.Context, dir string) (string, error) {
	_, dc, err := c.OpenPassive(ctx)
	if err != nil {
		return "", skyerr.Remote("list", dir, err)
	}
	defer dc.Close()

	if dir != "" {
		if err := c.ChangeDir(dir); err != nil {
			return "", skyerr.Remote("list", dir, err)
		}
	}

	resp, err := c.exec("LIST")
	if err != nil {
		return "", skyerr.Remote("list", dir, err)
	}

	dc.SetReadDeadline(time.Now().Add(c.opts.Timeout)) //nolint:errcheck
	data, err := util.ReadAll(dc)
	if err != nil {
		return "", skyerr.Remote("list", dir, c.ioErr("read", err))
	}
	c.stats.BytesListed(int64(len(data)))

	if !resp.Final() {
		if _, err := c.expect("LIST"); err != nil {
			return "", skyerr.Remote("list", dir, err)
		}
	}
	return string(data), nil
}

// Put uploads data to path: a best-effort DELE, TYPE I, a passive data
// channel, STOR, the payload, and finally the completion status.
func (c *Conn) Put(ctx context.Context, path string, data []byte) error {
	if err := c.put(ctx, path, data); err != nil {
		return skyerr.Remote("transfer", path, err)
	}
	c.stats.FileUploaded(int64(len(data)))
	return nil
}

func (c *Conn) put(ctx context.Context, path string, data []byte) error {
	stor, err := NewCommand("STOR", path)
	if err != nil {
		return err
	}

	if err := c.ClearPending(); err != nil {
		return err
	}

	// Pre-clean; the reply is read but not checked.
	if resp, err := c.Do(MustCommand("DELE", path)); err != nil {
		var pe *skyerr.ProtocolError
		if !errors.As(err, &pe) {
			return err
		}
	} else {
		c.log.Debug("pre-clean %s: %s", path, resp)
	}

	if _, err := c.exec("TYPE", "I"); err != nil {
		return err
	}

	_, dc, err := c.OpenPassive(ctx)
	if err != nil {
		return err
	}
	defer dc.Close()

	if err := c.Send(stor); err != nil {
		return err
	}
	resp, err := c.expect("STOR")
	if err != nil {
		return err
	}

	if err := c.writeData(dc, data); err != nil {
		return err
	}
	if err := dc.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return c.ioErr("write", err)
	}

	if c.opts.PostWriteDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.PostWriteDelay):
		}
	}

	if resp.Final() {
		return nil
	}

	done, err := c.ReadResponse()
	if err != nil {
		if c.opts.LenientCompletion && errors.Is(err, skyerr.ErrTimeout) {
			c.log.Warn("no completion status for %s; assuming the upload finished", path)
			return nil
		}
		return err
	}
	if done.Code < 200 || done.Code > 299 {
		return &skyerr.StatusError{Command: "STOR", Code: done.Code, Text: done.Text}
	}
	return nil
}

// writeData streams data in buffer-sized chunks, refreshing the write
// deadline per chunk so large uploads are bounded by throughput, not
// total size.
func (c *Conn) writeData(dc net.Conn, data []byte) error {
	for len(data) > 0 {
		chunk := data
		if len(chunk) > util.DefaultBufSize {
			chunk = chunk[:util.DefaultBufSize]
		}
		dc.SetWriteDeadline(time.Now().Add(c.opts.Timeout)) //nolint:errcheck
		n, err := dc.Write(chunk)
		if err != nil {
			return c.ioErr("write", err)
		}
		data = data[n:]
	}
	return nil
}
