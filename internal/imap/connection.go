package imap

import (
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/client"
)

// connectTimeout bounds the IMAP dial so a dead server cannot hang a poll
// slot; the caller turns a timeout into an account-level error status.
const connectTimeout = 10 * time.Second

// Connect dials the IMAP server.
// useTLS: true for production servers, false for tests (plain TCP).
func Connect(addr string, useTLS bool) (*client.Client, error) {
	dialer := &net.Dialer{
		Timeout: connectTimeout,
	}

	if useTLS {
		c, err := client.DialWithDialerTLS(dialer, addr, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial with TLS: %w", err)
		}
		return c, nil
	}

	c, err := client.DialWithDialer(dialer, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	return c, nil
}

// Login authenticates with the IMAP server.
func Login(c *client.Client, username, password string) error {
	if err := c.Login(username, password); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	return nil
}
