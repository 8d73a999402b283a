// Package control speaks the proxy's line-based control protocol.
package control

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/user/nipe/internal/fault"
	"github.com/user/nipe/internal/logger"
)

const (
	authenticateLine = "AUTHENTICATE \"\"\r\n"
	newnymLine       = "SIGNAL NEWNYM\r\n"

	defaultTimeout = 5 * time.Second
)

// Client sends signals to the control port on 127.0.0.1.
type Client struct {
	Addr    string
	Timeout time.Duration
}

// NewClient returns a client for the control port.
func NewClient(port int) *Client {
	return &Client{
		Addr:    net.JoinHostPort("127.0.0.1", strconv.Itoa(port)),
		Timeout: defaultTimeout,
	}
}

// Rotate asks for a new identity. It opens a fresh connection, writes an
// authentication request with an empty credential followed by the NEWNYM
// signal, and returns once both writes complete. Replies are not read, so
// a control port that requires a password accepts the connection and
// silently ignores the signal.
func (c *Client) Rotate(ctx context.Context) error {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return fault.New(fault.KindNotConnected, "control port "+c.Addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return fault.IO(c.Addr, err)
	}
	for _, line := range []string{authenticateLine, newnymLine} {
		if _, err := conn.Write([]byte(line)); err != nil {
			return fault.IO(c.Addr, fmt.Errorf("failed to send control command: %w", err))
		}
	}

	logger.Info("Identity rotation signal sent to %s", c.Addr)
	return nil
}
