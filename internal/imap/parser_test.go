package imap

import (
	"errors"
	"strings"
	"testing"
	"time"

	goimap "github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
)

func TestParseMessageRequiresEnvelope(t *testing.T) {
	_, err := ParseMessage(nil, "acc-1")
	assert.Error(t, err)

	_, err = ParseMessage(&goimap.Message{}, "acc-1")
	assert.Error(t, err)

	_, err = ParseMessage(&goimap.Message{Envelope: &goimap.Envelope{}}, "acc-1")
	assert.Error(t, err, "missing Message-ID means no idempotency key")
}

func TestParseMessageEnvelope(t *testing.T) {
	date := time.Date(2026, 5, 2, 10, 30, 0, 0, time.UTC)
	imapMsg := &goimap.Message{
		Envelope: &goimap.Envelope{
			MessageId: "<msg-1@x.com>",
			Subject:   "Re: Grades",
			Date:      date,
			InReplyTo: "<msg-0@x.com>",
			From: []*goimap.Address{
				{PersonalName: "Alice", MailboxName: "alice", HostName: "x.com"},
			},
			To: []*goimap.Address{
				{MailboxName: "support", HostName: "example.com"},
			},
			Cc: []*goimap.Address{
				{MailboxName: "bob", HostName: "x.com"},
			},
		},
	}

	msg, err := ParseMessage(imapMsg, "acc-1")
	require.NoError(t, err)

	assert.Equal(t, "acc-1", msg.AccountID)
	assert.Equal(t, "<msg-1@x.com>", msg.MessageID)
	assert.Equal(t, "Re: Grades", msg.Subject)
	assert.Equal(t, "<msg-0@x.com>", msg.InReplyTo)
	assert.Equal(t, "Alice <alice@x.com>", msg.FromAddress)
	assert.Equal(t, []string{"support@example.com"}, msg.ToAddresses)
	assert.Equal(t, []string{"bob@x.com"}, msg.CCAddresses)
	assert.Equal(t, date, msg.ReceivedAt)
	assert.False(t, msg.IsRead)
}

func TestParseBodyPlainText(t *testing.T) {
	raw := "From: alice@x.com\r\n" +
		"To: support@example.com\r\n" +
		"Subject: Hello\r\n" +
		"References: <a@x.com> <b@x.com>\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Line one.\nLine two.\r\n"

	msg := &models.Message{}
	require.NoError(t, parseBody(strings.NewReader(raw), msg))

	assert.Contains(t, msg.BodyText, "Line one.")
	// Plain text is converted to minimal HTML.
	assert.Contains(t, msg.UnsafeBodyHTML, "<br>")
	assert.Equal(t, []string{"<a@x.com>", "<b@x.com>"}, msg.References)
}

func TestParseBodyMultipartWithAttachment(t *testing.T) {
	raw := "From: alice@x.com\r\n" +
		"To: support@example.com\r\n" +
		"Subject: Report\r\n" +
		"In-Reply-To: <parent@x.com>\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"BOUNDARY\"\r\n" +
		"\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: multipart/alternative; boundary=\"ALT\"\r\n" +
		"\r\n" +
		"--ALT\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Plain body.\r\n" +
		"--ALT\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>HTML body.</p>\r\n" +
		"--ALT--\r\n" +
		"--BOUNDARY\r\n" +
		"Content-Type: application/pdf\r\n" +
		"Content-Disposition: attachment; filename=\"report.pdf\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"JVBERi0xLjQ=\r\n" +
		"--BOUNDARY--\r\n"

	msg := &models.Message{}
	require.NoError(t, parseBody(strings.NewReader(raw), msg))

	assert.Contains(t, msg.BodyText, "Plain body.")
	assert.Contains(t, msg.UnsafeBodyHTML, "<p>HTML body.</p>")
	assert.Equal(t, "<parent@x.com>", msg.InReplyTo)

	// Attachment metadata only, never the content.
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "report.pdf", msg.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
	assert.Greater(t, msg.Attachments[0].SizeBytes, int64(0))
}

// failingLiteral simulates a body literal whose read fails mid-transfer.
type failingLiteral struct{}

func (failingLiteral) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
func (failingLiteral) Len() int                 { return 1 }

func TestParseMessageMalformedBody(t *testing.T) {
	imapMsg := &goimap.Message{
		Envelope: &goimap.Envelope{MessageId: "<broken@x.com>"},
		Body: map[*goimap.BodySectionName]goimap.Literal{
			{}: failingLiteral{},
		},
	}

	_, err := ParseMessage(imapMsg, "acc-1")
	require.Error(t, err, "a message with an unparseable body must be rejected, not ingested empty")
	assert.Contains(t, err.Error(), "failed to parse email body")
}

func TestFormatAddress(t *testing.T) {
	assert.Equal(t, "", formatAddress(nil))
	assert.Equal(t, "", formatAddress(&goimap.Address{}))
	assert.Equal(t, "alice@x.com", formatAddress(&goimap.Address{MailboxName: "alice", HostName: "x.com"}))
	assert.Equal(t, "Alice <alice@x.com>", formatAddress(&goimap.Address{
		PersonalName: "Alice", MailboxName: "alice", HostName: "x.com",
	}))
}

func TestFetchWindow(t *testing.T) {
	tests := []struct {
		name         string
		total, limit uint32
		wantFrom     uint32
		wantTo       uint32
	}{
		{"fewer than limit", 10, 50, 1, 10},
		{"exactly limit", 50, 50, 1, 50},
		{"more than limit", 120, 50, 71, 120},
		{"single message", 1, 50, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := fetchWindow(tt.total, tt.limit)
			assert.Equal(t, tt.wantFrom, from)
			assert.Equal(t, tt.wantTo, to)
		})
	}
}
