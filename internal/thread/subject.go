// Package thread assembles chronological conversation views from stored
// messages and their replies. Threads are derived on read and never
// persisted; the message store stays the system of record.
package thread

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
)

// replyPrefixPattern matches one or more leading reply/forward tokens
// ("Re:", "RE:", "Fwd:", "Fw:", optionally stacked).
var replyPrefixPattern = regexp.MustCompile(`^(?i:(re|fwd|fw)\s*:\s*)+`)

// StripReplyPrefixes removes leading reply/forward tokens but keeps the
// subject's original casing, for display.
func StripReplyPrefixes(subject string) string {
	return strings.TrimSpace(replyPrefixPattern.ReplaceAllString(strings.TrimSpace(subject), ""))
}

// NormalizeSubject derives the thread key for a subject: reply/forward
// tokens stripped, case folded. Every threading decision in the system goes
// through this one function.
func NormalizeSubject(subject string) string {
	return strings.ToLower(StripReplyPrefixes(subject))
}

// IsOwnAddress reports whether a From header names the account's own
// address, which classifies a message as outgoing. Comparison is on the
// addr-spec part only, case-insensitively, so display names and case
// variants don't break direction inference.
func IsOwnAddress(fromHeader string, account *models.MailAccount) bool {
	if account == nil {
		return false
	}
	return addrSpec(fromHeader) == addrSpec(account.FromAddress)
}

// addrSpec extracts the bare address from a header value like
// "Jane Doe <jane@example.com>". Unparseable values fall back to the
// trimmed raw string.
func addrSpec(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if parsed, err := mail.ParseAddress(value); err == nil {
		return strings.ToLower(parsed.Address)
	}
	return strings.ToLower(value)
}
