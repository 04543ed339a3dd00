package ftp

import (
	"fmt"
	"strings"

	skyerr "skyctl/internal/errors"
)

// Command is one validated control-channel line, without its terminator.
// The zero value is not usable; build commands with NewCommand.
type Command struct {
	verb string
	args []string
}

// NewCommand builds a command from a verb and its arguments.  Arguments
// containing CR, LF or NUL are rejected so a hostile or malformed path
// can never inject a second command into the stream.
func NewCommand(verb string, args ...string) (Command, error) {
	if verb == "" {
		return Command{}, fmt.Errorf("empty verb: %w", skyerr.ErrInvalidArgument)
	}
	for _, r := range verb {
		if r < 'A' || r > 'Z' {
			return Command{}, fmt.Errorf("verb %q: %w", verb, skyerr.ErrInvalidArgument)
		}
	}
	for _, a := range args {
		if strings.ContainsAny(a, "\r\n\x00") {
			return Command{}, fmt.Errorf("%s %q: %w", verb, a, skyerr.ErrInvalidArgument)
		}
	}
	return Command{verb: verb, args: args}, nil
}

// MustCommand is NewCommand for constant arguments; it panics on error.
func MustCommand(verb string, args ...string) Command {
	c, err := NewCommand(verb, args...)
	if err != nil {
		panic(err)
	}
	return c
}

// Verb returns the command word, e.g. "STOR".
func (c Command) Verb() string { return c.verb }

// String renders the command as it goes on the wire.
func (c Command) String() string {
	if len(c.args) == 0 {
		return c.verb
	}
	return c.verb + " " + strings.Join(c.args, " ")
}

// redacted is String with the PASS argument hidden, for logs.
func (c Command) redacted() string {
	if c.verb == "PASS" {
		return "PASS ****"
	}
	return c.String()
}
