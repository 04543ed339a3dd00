package ftp

import (
	"context"
	"net"
	"strconv"
	"strings"

	skyerr "skyctl/internal/errors"
)

// PassiveAddress is the data-channel endpoint advertised by a 227 reply.
type PassiveAddress struct {
	Host [4]byte
	Port uint16
}

// String returns "a.b.c.d:port".
func (p PassiveAddress) String() string {
	ip := net.IPv4(p.Host[0], p.Host[1], p.Host[2], p.Host[3])
	return net.JoinHostPort(ip.String(), strconv.Itoa(int(p.Port)))
}

// ParsePassiveAddress decodes the payload of a 227 reply, with or
// without the surrounding text and parentheses.  The payload is split
// on commas and every non-digit is stripped from each token; the first
// four tokens are the host and the next two the port's high and low
// bytes.  Fewer than six tokens, an empty token, or a token above 255
// is a *errors.ProtocolError.
func ParsePassiveAddress(text string) (PassiveAddress, error) {
	raw := strings.Split(text, ",")
	if len(raw) < 6 {
		return PassiveAddress{}, &skyerr.ProtocolError{Line: text, Reason: "PASV reply has fewer than 6 fields"}
	}

	var octets [6]byte
	for i := 0; i < 6; i++ {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, raw[i])
		if digits == "" {
			return PassiveAddress{}, &skyerr.ProtocolError{Line: text, Reason: "empty PASV field"}
		}
		v, err := strconv.Atoi(digits)
		if err != nil || v > 255 {
			return PassiveAddress{}, &skyerr.ProtocolError{Line: text, Reason: "PASV field out of range"}
		}
		octets[i] = byte(v)
	}

	var addr PassiveAddress
	copy(addr.Host[:], octets[:4])
	addr.Port = uint16(octets[4])<<8 | uint16(octets[5])
	return addr, nil
}

// OpenPassive clears stale status lines, sends PASV, and dials the
// advertised endpoint through the Conn's dialer.  Replies other than
// 227 are skipped while they are 2xx; anything else ends the
// negotiation with a *errors.StatusError.  The caller closes the
// returned connection.
func (c *Conn) OpenPassive(ctx context.Context) (PassiveAddress, net.Conn, error) {
	if err := c.ClearPending(); err != nil {
		return PassiveAddress{}, nil, err
	}
	if err := c.Send(MustCommand("PASV")); err != nil {
		return PassiveAddress{}, nil, err
	}

	var resp Response
	for {
		var err error
		resp, err = c.ReadResponse()
		if err != nil {
			return PassiveAddress{}, nil, err
		}
		if resp.Code == 227 {
			break
		}
		if resp.Code < 200 || resp.Code > 299 {
			return PassiveAddress{}, nil, &skyerr.StatusError{Command: "PASV", Code: resp.Code, Text: resp.Text}
		}
		c.log.Debug("PASV: skipping %s", resp)
	}

	addr, err := ParsePassiveAddress(resp.Text)
	if err != nil {
		return PassiveAddress{}, nil, err
	}

	c.log.Debug("opening data channel to %s", addr)
	dc, err := c.dialer.Dial(ctx, "tcp", addr.String())
	if err != nil {
		return addr, nil, err
	}
	return addr, dc, nil
}
