package dispatch

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
)

const smtpTimeout = 30 * time.Second

// Sender delivers a fully built message to one set of recipients.
type Sender interface {
	Send(ctx context.Context, account *models.MailAccount, to []string, raw []byte) error
}

// SMTPSender submits mail through the account's configured SMTP server
// using PLAIN auth. UseTLS selects implicit TLS (port 465 style);
// otherwise the connection stays plaintext, which is only meant for
// local relays and test servers.
type SMTPSender struct{}

func NewSMTPSender() *SMTPSender {
	return &SMTPSender{}
}

func (s *SMTPSender) Send(ctx context.Context, account *models.MailAccount, to []string, raw []byte) error {
	addr := account.SMTPAddr()

	dialer := &net.Dialer{Timeout: smtpTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server %s: %w", addr, err)
	}

	if account.SMTPTLS {
		tlsConn := tls.Client(conn, &tls.Config{ServerName: account.SMTPHost})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("TLS handshake with %s failed: %w", addr, err)
		}
		conn = tlsConn
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if account.SMTPUsername != "" {
		auth := sasl.NewPlainClient("", account.SMTPUsername, account.SMTPPassword)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed for %s: %w", account.SMTPUsername, err)
		}
	}

	if err := c.SendMail(account.FromAddress, envelopeAddresses(to), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}
	return c.Quit()
}

// envelopeAddresses reduces header-form recipients ("Name <addr>") to the
// bare addr-specs RCPT TO accepts.
func envelopeAddresses(to []string) []string {
	out := make([]string, 0, len(to))
	for _, addr := range to {
		_, spec := splitAddress(addr)
		if spec != "" {
			out = append(out, spec)
		}
	}
	return out
}
