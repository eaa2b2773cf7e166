package testutil

import (
	"net"
	"strconv"
	"testing"

	"github.com/google/uuid"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
)

// NewTestAccount builds a MailAccount pointing at the given test servers.
// Either address may be empty when a test exercises only one direction.
func NewTestAccount(t *testing.T, imapAddr, smtpAddr string) *models.MailAccount {
	t.Helper()

	account := &models.MailAccount{
		ID:          uuid.NewString(),
		DisplayName: "Support",
		FromAddress: "support@example.com",
	}

	if imapAddr != "" {
		host, port := splitHostPort(t, imapAddr)
		account.IMAPHost = host
		account.IMAPPort = port
		account.IMAPUsername = "username"
		account.IMAPPassword = "password"
	}

	if smtpAddr != "" {
		host, port := splitHostPort(t, smtpAddr)
		account.SMTPHost = host
		account.SMTPPort = port
		account.SMTPUsername = "test-user"
		account.SMTPPassword = "test-pass"
	}

	return account
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()

	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("Failed to split address %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Invalid port in address %q: %v", addr, err)
	}
	return host, port
}
