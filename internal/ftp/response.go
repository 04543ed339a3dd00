package ftp

import (
	"strconv"
	"strings"

	skyerr "skyctl/internal/errors"
)

// Response is one status line from the control channel.
type Response struct {
	Code int
	Text string
}

// ParseResponse splits a status line into its 3-digit code and text.
// The separator after the code may be a space, a '-' (continuation) or
// absent.  A prefix that is not three digits in 100-599 is a
// *errors.ProtocolError.
func ParseResponse(line string) (Response, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) < 3 {
		return Response{}, &skyerr.ProtocolError{Line: line, Reason: "short status line"}
	}

	code := 0
	for i := 0; i < 3; i++ {
		ch := line[i]
		if ch < '0' || ch > '9' {
			return Response{}, &skyerr.ProtocolError{Line: line, Reason: "non-numeric status code"}
		}
		code = code*10 + int(ch-'0')
	}
	if code < 100 || code > 599 {
		return Response{}, &skyerr.ProtocolError{Line: line, Reason: "status code out of range"}
	}

	rest := line[3:]
	if rest != "" {
		if rest[0] != ' ' && rest[0] != '-' {
			return Response{}, &skyerr.ProtocolError{Line: line, Reason: "malformed status separator"}
		}
		rest = rest[1:]
	}
	return Response{Code: code, Text: rest}, nil
}

// Success reports whether the code lets the caller proceed: any 2xx,
// or 150 (data connection about to open).
func (r Response) Success() bool {
	return IsSuccess(r.Code)
}

// Final reports whether no further status line follows for this
// command.  Only 150 announces a trailing completion reply.
func (r Response) Final() bool {
	return r.Code != 150
}

// IsSuccess is the status classification used for every command.
func IsSuccess(code int) bool {
	return (code >= 200 && code <= 299) || code == 150
}

func (r Response) String() string {
	if r.Text == "" {
		return strconv.Itoa(r.Code)
	}
	return strconv.Itoa(r.Code) + " " + r.Text
}
