// Package metrics provides lightweight, lock-free counters for tracking
// the work done by one skyctl invocation: FTP commands, uploads,
// existence probes, remediations and log-relay reconnects.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one run.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	commandsSent    atomic.Int64
	bytesUploaded   atomic.Int64
	bytesListed     atomic.Int64
	filesUploaded   atomic.Int64
	probes          atomic.Int64
	remediations    atomic.Int64
	relayReconnects atomic.Int64
	relayBytes      atomic.Int64
	errorsTotal     atomic.Int64

	mu           sync.RWMutex
	runID        string
	startTime    time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector for the run identified by runID,
// with the start time set to now.
func New(runID string) *Collector {
	return &Collector{runID: runID, startTime: time.Now()}
}

// RunID returns the identifier the collector was created with.
func (c *Collector) RunID() string {
	if c == nil {
		return ""
	}
	return c.runID
}

// ── Control channel ──────────────────────────────────────────────────

// CommandSent records one command written to the control channel.
func (c *Collector) CommandSent() {
	if c == nil {
		return
	}
	c.commandsSent.Add(1)
}

// CommandsSent returns the number of control commands written.
func (c *Collector) CommandsSent() int64 {
	if c == nil {
		return 0
	}
	return c.commandsSent.Load()
}

// ── Data channel ─────────────────────────────────────────────────────

// FileUploaded records a completed STOR of n bytes.
func (c *Collector) FileUploaded(n int64) {
	if c == nil {
		return
	}
	c.filesUploaded.Add(1)
	c.bytesUploaded.Add(n)
}

// BytesListed records n bytes of listing text read from a data channel.
func (c *Collector) BytesListed(n int64) {
	if c == nil {
		return
	}
	c.bytesListed.Add(n)
}

// FilesUploaded returns the number of completed uploads.
func (c *Collector) FilesUploaded() int64 {
	if c == nil {
		return 0
	}
	return c.filesUploaded.Load()
}

// TotalBytesUploaded returns the sum of all uploaded payload sizes.
func (c *Collector) TotalBytesUploaded() int64 {
	if c == nil {
		return 0
	}
	return c.bytesUploaded.Load()
}

// TotalBytesListed returns total listing bytes read.
func (c *Collector) TotalBytesListed() int64 {
	if c == nil {
		return 0
	}
	return c.bytesListed.Load()
}

// ── Provisioning ─────────────────────────────────────────────────────

// Probe records one existence probe.
func (c *Collector) Probe() {
	if c == nil {
		return
	}
	c.probes.Add(1)
}

// Probes returns the number of existence probes issued.
func (c *Collector) Probes() int64 {
	if c == nil {
		return 0
	}
	return c.probes.Load()
}

// Remediation records that a missing component was installed.
func (c *Collector) Remediation() {
	if c == nil {
		return
	}
	c.remediations.Add(1)
}

// Remediations returns the number of components installed on demand.
func (c *Collector) Remediations() int64 {
	if c == nil {
		return 0
	}
	return c.remediations.Load()
}

// ── Log relay ────────────────────────────────────────────────────────

// RelayReconnect records a log relay reconnection.
func (c *Collector) RelayReconnect() {
	if c == nil {
		return
	}
	c.relayReconnects.Add(1)
}

// RelayBytes records n bytes forwarded from the console's log stream.
func (c *Collector) RelayBytes(n int64) {
	if c == nil {
		return
	}
	c.relayBytes.Add(n)
}

// RelayReconnects returns the total relay reconnection count.
func (c *Collector) RelayReconnects() int64 {
	if c == nil {
		return 0
	}
	return c.relayReconnects.Load()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	RunID            string `json:"run_id,omitempty"`
	Elapsed          string `json:"elapsed"`
	CommandsSent     int64  `json:"commands_sent"`
	FilesUploaded    int64  `json:"files_uploaded"`
	BytesUploaded    int64  `json:"bytes_uploaded"`
	BytesListed      int64  `json:"bytes_listed"`
	Probes           int64  `json:"probes"`
	Remediations     int64  `json:"remediations"`
	RelayReconnects  int64  `json:"relay_reconnects"`
	RelayBytes       int64  `json:"relay_bytes"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		RunID:           c.runID,
		Elapsed:         time.Since(c.startTime).Truncate(time.Millisecond).String(),
		CommandsSent:    c.commandsSent.Load(),
		FilesUploaded:   c.filesUploaded.Load(),
		BytesUploaded:   c.bytesUploaded.Load(),
		BytesListed:     c.bytesListed.Load(),
		Probes:          c.probes.Load(),
		Remediations:    c.remediations.Load(),
		RelayReconnects: c.relayReconnects.Load(),
		RelayBytes:      c.relayBytes.Load(),
		ErrorsTotal:     c.errorsTotal.Load(),
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
