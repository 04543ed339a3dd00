// Package fetch downloads the components the console is missing: the
// runtime distribution archive and plugin dependencies.
package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"skyctl/util"
)

const (
	// DefaultMaxBytes caps a single download.
	DefaultMaxBytes = 64 << 20

	// RuntimeEntry is the runtime module's path inside the distribution
	// archive.
	RuntimeEntry = "exefs/subsdk9"
)

// Fetcher retrieves the bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// HTTPFetcher fetches over HTTP(S) with retries on transient failures.
// Sources without an http or https scheme are read from the local
// filesystem, so an archive can be supplied offline.
type HTTPFetcher struct {
	client   *retryablehttp.Client
	log      *util.Logger
	MaxBytes int64
}

// Options tune an HTTPFetcher.
type Options struct {
	Timeout  time.Duration
	RetryMax int
	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// NewHTTPFetcher returns a fetcher logging through log.
func NewHTTPFetcher(log *util.Logger, opts Options) *HTTPFetcher {
	c := retryablehttp.NewClient()
	c.Logger = leveled{log}
	if opts.RetryMax > 0 {
		c.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		c.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		c.RetryWaitMax = opts.RetryWaitMax
	}
	if opts.Timeout > 0 {
		c.HTTPClient.Timeout = opts.Timeout
	}
	return &HTTPFetcher{client: c, log: log, MaxBytes: DefaultMaxBytes}
}

// Fetch downloads src, or reads it from disk when it is a local path
// or file:// URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return f.readLocal(src, u)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}

	f.log.Verbose("downloading %s", src)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", src, resp.Status)
	}

	data, err := util.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, fmt.Errorf("fetch %s: larger than %d bytes", src, f.MaxBytes)
	}
	f.log.Debug("downloaded %d bytes from %s", len(data), src)
	return data, nil
}

func (f *HTTPFetcher) readLocal(src string, u *url.URL) ([]byte, error) {
	p := src
	if u != nil && u.Scheme == "file" {
		p = u.Path
	} else if u != nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return nil, fmt.Errorf("fetch %s: unsupported scheme %q", src, u.Scheme)
	}
	f.log.Verbose("reading %s", p)
	return os.ReadFile(p)
}

// ExtractRuntime returns entry from the runtime distribution archive.
// An empty entry means RuntimeEntry.
func ExtractRuntime(archive []byte, entry string) ([]byte, error) {
	if entry == "" {
		entry = RuntimeEntry
	}
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("runtime archive: %w", err)
	}
	for _, zf := range zr.File {
		if strings.TrimPrefix(zf.Name, "./") != entry {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("runtime archive %s: %w", entry, err)
		}
		defer rc.Close()
		return util.ReadAll(rc)
	}
	return nil, fmt.Errorf("runtime archive has no %s", entry)
}

// leveled adapts util.Logger to retryablehttp.LeveledLogger.
type leveled struct{ log *util.Logger }

func (l leveled) Error(msg string, kv ...interface{}) { l.log.Warn("http: %s%s", msg, kvString(kv)) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.log.Verbose("http: %s%s", msg, kvString(kv)) }
func (l leveled) Info(msg string, kv ...interface{})  { l.log.Debug("http: %s%s", msg, kvString(kv)) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.log.Debug("http: %s%s", msg, kvString(kv)) }

func kvString(kv []interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&b, " %v=%v", kv[i], kv[i+1])
	}
	return b.String()
}
