// Package core is the orchestration layer.  It composes the transport,
// the FTP client, the deployment orchestrator, the log relay and the
// file capabilities into complete operations, and provides a builder
// that selects the right mode for a subcommand.
//
// Architecture layers (bottom → top):
//
//	transport  →  ftp  →  capability / deploy / relay  →  core  →  cmd (CLI)
package core

import "context"

// Mode is one complete operation of skyctl (install, run, listen, ...).
// Each mode owns its full lifecycle from connection establishment to
// teardown, except for the dialer, which the caller closes.
type Mode interface {
	Run(ctx context.Context) error
}

// Op names an operation.
type Op string

const (
	OpInstall Op = "install"
	OpRun     Op = "run"
	OpListen  Op = "listen"
	OpList    Op = "list"
	OpRemove  Op = "rm"
	OpCopy    Op = "cp"
	OpRestart Op = "restart"
	OpSetIP   Op = "set-ip"
	OpShowIP  Op = "show-ip"
)

// Reporter renders user-facing status lines.
type Reporter interface {
	Status(msg string)
	Success(msg string)
	Warning(msg string)
}
