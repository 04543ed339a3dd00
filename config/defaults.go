package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultFTPPort is where the console's homebrew FTP server listens.
	DefaultFTPPort = 5000

	// DefaultLogPort is the runtime's log stream.
	DefaultLogPort = 6969

	// DefaultRestartPort accepts the restart signal.
	DefaultRestartPort = 45423

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultTimeout is the FTP control and data I/O deadline.
	DefaultTimeout = 5 * time.Second

	// DefaultConnTimeout bounds TCP and SSH connection establishment.
	DefaultConnTimeout = 10 * time.Second

	// DefaultFetchTimeout bounds a single download.
	DefaultFetchTimeout = 2 * time.Minute

	// DefaultFetchRetries is how many times a failed download is retried.
	DefaultFetchRetries = 3

	// DefaultWorkers bounds parallel dependency downloads.
	DefaultWorkers = 4

	// DefaultRestartDelay gives the log relay a head start before the
	// restart signal is sent.
	DefaultRestartDelay = 50 * time.Millisecond

	// DefaultRuntimeURL is the runtime distribution archive.
	DefaultRuntimeURL = "https://github.com/skyline-dev/skyline/releases/download/beta/skyline.zip"

	// IPStoreDir and IPStoreFile locate the persisted console address
	// under the user's home directory.
	IPStoreDir  = ".switch"
	IPStoreFile = "ip_addr.txt"
)
