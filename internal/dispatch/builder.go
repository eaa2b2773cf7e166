package dispatch

import (
	"bytes"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
)

// outboundMail is everything needed to build one RFC 5322 message.
type outboundMail struct {
	account     *models.MailAccount
	to          []string
	cc          []string
	subject     string
	textBody    string
	htmlBody    string
	attachments []models.ReplyAttachment
	inReplyTo   string
	references  []string
	messageID   string
}

// newMessageID generates a Message-ID under the account's domain. The sent
// shadow record reuses it, so outbound mail dedupes like inbound mail.
func newMessageID(account *models.MailAccount) string {
	domain := "localhost"
	if parsed, err := mail.ParseAddress(account.FromAddress); err == nil {
		if at := strings.LastIndex(parsed.Address, "@"); at >= 0 {
			domain = parsed.Address[at+1:]
		}
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// buildMIME renders the outbound message. The account signature is appended
// to the transmitted body here and only here: persisted rows keep the
// literal authored text.
func buildMIME(m outboundMail) ([]byte, error) {
	// Attachment binaries live in external object storage; the wire message
	// carries their URLs in a trailer instead of attached bytes.
	text := m.textBody + attachmentTrailer(m.attachments)

	builder := enmime.Builder().
		From(m.account.DisplayName, m.account.FromAddress).
		Subject(m.subject).
		Date(time.Now()).
		Header("Message-Id", m.messageID).
		Text([]byte(withTextSignature(text, m.account.Signature)))

	for _, addr := range m.to {
		name, spec := splitAddress(addr)
		builder = builder.To(name, spec)
	}
	for _, addr := range m.cc {
		name, spec := splitAddress(addr)
		builder = builder.CC(name, spec)
	}

	if m.htmlBody != "" {
		builder = builder.HTML([]byte(withHTMLSignature(m.htmlBody, m.account.Signature)))
	}

	// Threading headers let mail clients render the exchange as one thread.
	if m.inReplyTo != "" {
		builder = builder.Header("In-Reply-To", m.inReplyTo)
	}
	if len(m.references) > 0 {
		builder = builder.Header("References", strings.Join(m.references, " "))
	}

	part, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// withTextSignature appends the account signature, separated by the usual
// "-- " marker.
func withTextSignature(body, signature string) string {
	if signature == "" {
		return body
	}
	return body + "\r\n\r\n-- \r\n" + signature
}

func withHTMLSignature(body, signature string) string {
	if signature == "" {
		return body
	}
	return body + "<br><br>-- <br>" + strings.ReplaceAll(signature, "\n", "<br>")
}

// attachmentTrailer renders outbound attachment URLs as a plain-text list.
func attachmentTrailer(attachments []models.ReplyAttachment) string {
	if len(attachments) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\r\n\r\nAttachments:\r\n")
	for _, att := range attachments {
		if att.Filename != "" {
			fmt.Fprintf(&sb, "- %s: %s\r\n", att.Filename, att.URL)
		} else {
			fmt.Fprintf(&sb, "- %s\r\n", att.URL)
		}
	}
	return sb.String()
}

// splitAddress splits "Name <addr>" header values for the builder; bare
// addresses pass through with an empty name.
func splitAddress(value string) (string, string) {
	if parsed, err := mail.ParseAddress(strings.TrimSpace(value)); err == nil {
		return parsed.Name, parsed.Address
	}
	return "", strings.TrimSpace(value)
}
