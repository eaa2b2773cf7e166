package imap

import (
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
)

// ParseMessage converts a fetched IMAP message into a Message model.
// The envelope must carry a Message-ID: without it there is no idempotency
// key and the message cannot be ingested.
//
// Ingested messages always start unread regardless of server flags; read
// state is owned by this system, not by the source mailbox.
func ParseMessage(imapMsg *imap.Message, accountID string) (*models.Message, error) {
	if imapMsg == nil {
		return nil, fmt.Errorf("imap message is nil")
	}

	envelope := imapMsg.Envelope
	if envelope == nil || envelope.MessageId == "" {
		return nil, fmt.Errorf("message has no Message-ID header")
	}

	msg := &models.Message{
		AccountID: accountID,
		MessageID: envelope.MessageId,
		Subject:   envelope.Subject,
		InReplyTo: envelope.InReplyTo,
		IsRead:    false,
	}

	if len(envelope.From) > 0 {
		msg.FromAddress = formatAddress(envelope.From[0])
	}
	msg.ToAddresses = formatAddressList(envelope.To)
	msg.CCAddresses = formatAddressList(envelope.Cc)
	msg.BCCAddresses = formatAddressList(envelope.Bcc)

	if !envelope.Date.IsZero() {
		msg.ReceivedAt = envelope.Date
	}

	if bodyReader := imapMsg.GetBody(bodySection()); bodyReader != nil {
		if err := parseBody(bodyReader, msg); err != nil {
			// A malformed body fails the whole message; the syncer skips
			// it and the cycle continues.
			return nil, err
		}
	}

	return msg, nil
}

// parseBody parses the email body using enmime.
func parseBody(bodyReader io.Reader, msg *models.Message) error {
	envelope, err := enmime.ReadEnvelope(bodyReader)
	if err != nil {
		return fmt.Errorf("failed to parse email body: %w", err)
	}

	htmlBody := envelope.HTML
	if htmlBody == "" {
		// If no HTML, convert text to HTML
		htmlBody = strings.ReplaceAll(envelope.Text, "\n", "<br>")
	}
	msg.UnsafeBodyHTML = htmlBody
	msg.BodyText = envelope.Text

	if refs := envelope.GetHeader("References"); refs != "" {
		msg.References = strings.Fields(refs)
	}
	if msg.InReplyTo == "" {
		msg.InReplyTo = envelope.GetHeader("In-Reply-To")
	}

	// Attachment metadata only: the binary stays on the mail server.
	for _, part := range envelope.Attachments {
		msg.Attachments = append(msg.Attachments, models.Attachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			SizeBytes:   int64(len(part.Content)),
		})
	}

	return nil
}

// formatAddress formats an IMAP address to a string.
func formatAddress(address *imap.Address) string {
	if address == nil {
		return ""
	}

	if address.MailboxName == "" && address.HostName == "" {
		return ""
	}

	if address.PersonalName != "" {
		return fmt.Sprintf("%s <%s@%s>", address.PersonalName, address.MailboxName, address.HostName)
	}

	return fmt.Sprintf("%s@%s", address.MailboxName, address.HostName)
}

// formatAddressList formats a list of IMAP addresses.
func formatAddressList(addresses []*imap.Address) []string {
	result := make([]string, 0, len(addresses))
	for _, address := range addresses {
		formatted := formatAddress(address)
		if formatted != "" {
			result = append(result, formatted)
		}
	}
	return result
}
