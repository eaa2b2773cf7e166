package models

import (
	"fmt"
	"time"
)

// SyncStatus describes the poller's progress for one account.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusError   SyncStatus = "error"
)

// MailAccount holds the connection settings and display identity for one
// external mailbox. Accounts are owned by the administration surface; the
// sync core reads them and mutates SyncStatus/LastSyncError only.
type MailAccount struct {
	ID            string     `json:"id"`
	DisplayName   string     `json:"display_name"`
	FromAddress   string     `json:"from_address"`
	IMAPHost      string     `json:"imap_host"`
	IMAPPort      int        `json:"imap_port"`
	IMAPUsername  string     `json:"imap_username"`
	IMAPPassword  string     `json:"-"`
	IMAPTLS       bool       `json:"imap_tls"`
	SMTPHost      string     `json:"smtp_host"`
	SMTPPort      int        `json:"smtp_port"`
	SMTPUsername  string     `json:"smtp_username"`
	SMTPPassword  string     `json:"-"`
	SMTPTLS       bool       `json:"smtp_tls"`
	Signature     string     `json:"signature,omitempty"`
	SyncStatus    SyncStatus `json:"sync_status"`
	LastSyncError string     `json:"last_sync_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// IMAPAddr returns the host:port address of the account's IMAP server.
func (a *MailAccount) IMAPAddr() string {
	return fmt.Sprintf("%s:%d", a.IMAPHost, a.IMAPPort)
}

// SMTPAddr returns the host:port address of the account's SMTP server.
func (a *MailAccount) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", a.SMTPHost, a.SMTPPort)
}

// Message is one ingested (or sent-shadow) mail. (AccountID, MessageID) is
// unique and acts as the ingestion idempotency key. Messages are never
// hard-deleted: removal is IsTrashed=true, reversible if the source message
// reappears. IsOutbound marks sent shadows, which only ever exist locally
// and so are exempt from mailbox reconciliation.
type Message struct {
	ID             string       `json:"id"`
	AccountID      string       `json:"account_id"`
	MessageID      string       `json:"message_id"`
	FromAddress    string       `json:"from_address"`
	ToAddresses    []string     `json:"to_addresses"`
	CCAddresses    []string     `json:"cc_addresses,omitempty"`
	BCCAddresses   []string     `json:"bcc_addresses,omitempty"`
	Subject        string       `json:"subject"`
	BodyText       string       `json:"body_text"`
	UnsafeBodyHTML string       `json:"unsafe_body_html"`
	IsRead         bool         `json:"is_read"`
	IsReplied      bool         `json:"is_replied"`
	IsStarred      bool         `json:"is_starred"`
	IsSpam         bool         `json:"is_spam"`
	IsArchived     bool         `json:"is_archived"`
	IsTrashed      bool         `json:"is_trashed"`
	IsOutbound     bool         `json:"is_outbound"`
	InReplyTo      string       `json:"in_reply_to,omitempty"`
	References     []string     `json:"references,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	ReceivedAt     time.Time    `json:"received_at"`
	Replies        []*Reply     `json:"replies,omitempty"`
}

// Attachment describes an inbound attachment. Only metadata is kept; the
// binary stays on the mail server.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ReplyAttachment references an already-uploaded binary by URL. Outbound
// attachments intentionally have a different shape than inbound ones.
type ReplyAttachment struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
}

// SendStatus values for Reply rows.
const (
	SendStatusSent   = "sent"
	SendStatusFailed = "failed"
)

// Reply is an outbound reply to a Message. Replies belong to exactly one
// Message, inherit its account context, and are immutable once written.
type Reply struct {
	ID          string            `json:"id"`
	MessageID   string            `json:"message_id"`
	AccountID   string            `json:"account_id"`
	ToAddresses []string          `json:"to_addresses"`
	CCAddresses []string          `json:"cc_addresses,omitempty"`
	Subject     string            `json:"subject"`
	BodyText    string            `json:"body_text"`
	BodyHTML    string            `json:"body_html,omitempty"`
	Attachments []ReplyAttachment `json:"attachments,omitempty"`
	SentBy      string            `json:"sent_by"`
	SentAt      time.Time         `json:"sent_at"`
	SendStatus  string            `json:"send_status"`
}

// Flag identifies one of the toggleable Message flags.
type Flag string

const (
	FlagRead     Flag = "read"
	FlagReplied  Flag = "replied"
	FlagStarred  Flag = "starred"
	FlagSpam     Flag = "spam"
	FlagArchived Flag = "archived"
	FlagTrashed  Flag = "trashed"
)
