package errors

import (
	"errors"
	"io/fs"
	"net"
)

// Category names the party responsible for a failure.
type Category int

const (
	CategoryUnknown     Category = iota
	CategoryNetwork              // socket-level: refused, reset, timeout
	CategoryTarget               // the console answered, but not as required
	CategoryLocalConfig          // missing address, title id, files on disk
	CategoryUserInput            // bad flag values or install paths
	CategoryRemediation          // downloading or generating a component
)

func (c Category) String() string {
	switch c {
	case CategoryNetwork:
		return "network"
	case CategoryTarget:
		return "target"
	case CategoryLocalConfig:
		return "local-config"
	case CategoryUserInput:
		return "user-input"
	case CategoryRemediation:
		return "remediation"
	default:
		return "unknown"
	}
}

// Classify returns the Category of err.  A RemediationError anywhere in
// the chain wins; otherwise the first check below that matches any link
// of the chain decides, regardless of how deep that link is.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	var re *RemediationError
	if errors.As(err, &re) {
		return CategoryRemediation
	}

	var (
		pathErr  *PathError
		cfgErr   *ConfigError
		protoErr *ProtocolError
		statErr  *StatusError
		sshErr   *SSHError
		netErr   *NetworkError
		opErr    *net.OpError
		fsErr    *fs.PathError
	)
	switch {
	case errors.As(err, &pathErr):
		return CategoryUserInput
	case errors.As(err, &cfgErr),
		errors.As(err, &fsErr),
		errors.Is(err, ErrNoAddress),
		errors.Is(err, ErrNoTitleID):
		return CategoryLocalConfig
	case errors.Is(err, ErrBadAddress),
		errors.Is(err, ErrBadTitleID),
		errors.Is(err, ErrInvalidArgument):
		return CategoryUserInput
	case errors.As(err, &protoErr), errors.As(err, &statErr):
		return CategoryTarget
	case errors.As(err, &sshErr),
		errors.As(err, &netErr),
		errors.As(err, &opErr),
		errors.Is(err, ErrTimeout),
		errors.Is(err, ErrNotConnected):
		return CategoryNetwork
	}
	return CategoryUnknown
}

// ExitCode maps err onto the process exit status: 0 for nil, 1 for
// uncategorised failures, and a distinct code per Category.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch Classify(err) {
	case CategoryNetwork:
		return 2
	case CategoryTarget:
		return 3
	case CategoryLocalConfig:
		return 4
	case CategoryUserInput:
		return 5
	case CategoryRemediation:
		return 6
	default:
		return 1
	}
}
