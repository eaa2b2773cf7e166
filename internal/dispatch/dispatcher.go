package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/thread"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/ws"
)

// ErrInvalidRequest marks dispatch requests rejected before any send
// attempt. Handlers map it to a 400 response.
var ErrInvalidRequest = errors.New("invalid dispatch request")

// Publisher pushes realtime events to connected clients.
type Publisher interface {
	Broadcast(eventType string, payload any)
}

// Dispatcher builds and submits outbound mail, records the results, and
// keeps the parent message's reply state in sync.
type Dispatcher struct {
	store     store.Store
	sender    Sender
	directory Directory
	events    Publisher
	logger    *zap.Logger
}

func NewDispatcher(st store.Store, sender Sender, directory Directory, events Publisher, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:     st,
		sender:    sender,
		directory: directory,
		events:    events,
		logger:    logger,
	}
}

// ReplyRequest describes a reply to a stored message. To defaults to the
// parent sender and Subject to the parent subject with a "Re: " prefix.
type ReplyRequest struct {
	MessageID   string
	To          []string
	CC          []string
	Subject     string
	BodyText    string
	BodyHTML    string
	Attachments []models.ReplyAttachment
	SentBy      string
}

// SendReply sends a reply threaded onto the parent message. The reply row
// is persisted whether the send succeeds or fails; only a successful send
// marks the parent replied and emits a realtime event.
func (d *Dispatcher) SendReply(ctx context.Context, req ReplyRequest) (*models.Reply, error) {
	if req.MessageID == "" {
		return nil, fmt.Errorf("%w: messageId is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.BodyText) == "" {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidRequest)
	}

	parent, err := d.store.GetMessage(ctx, req.MessageID)
	if err != nil {
		return nil, err
	}
	account, err := d.store.GetAccount(ctx, parent.AccountID)
	if err != nil {
		return nil, err
	}

	to := req.To
	if len(to) == 0 {
		to = []string{parent.FromAddress}
	}
	subject := req.Subject
	if subject == "" {
		subject = replySubject(parent.Subject)
	}

	// References accumulates the whole ancestor chain so mail clients
	// thread the reply under the original exchange.
	references := append(append([]string{}, parent.References...), parent.MessageID)

	messageID := newMessageID(account)
	raw, err := buildMIME(outboundMail{
		account:     account,
		to:          to,
		cc:          req.CC,
		subject:     subject,
		textBody:    req.BodyText,
		htmlBody:    req.BodyHTML,
		attachments: req.Attachments,
		inReplyTo:   parent.MessageID,
		references:  references,
		messageID:   messageID,
	})
	if err != nil {
		return nil, err
	}

	reply := &models.Reply{
		ID:          uuid.NewString(),
		MessageID:   parent.ID,
		AccountID:   account.ID,
		ToAddresses: to,
		CCAddresses: req.CC,
		Subject:     subject,
		BodyText:    req.BodyText,
		BodyHTML:    req.BodyHTML,
		Attachments: req.Attachments,
		SentBy:      req.SentBy,
		SentAt:      time.Now().UTC(),
		SendStatus:  models.SendStatusSent,
	}

	sendErr := d.sender.Send(ctx, account, append(append([]string{}, to...), req.CC...), raw)
	if sendErr != nil {
		reply.SendStatus = models.SendStatusFailed
		if err := d.store.InsertReply(ctx, reply); err != nil {
			d.logger.Error("failed to record failed reply",
				zap.String("message_id", parent.ID), zap.Error(err))
		}
		return nil, fmt.Errorf("failed to send reply: %w", sendErr)
	}

	if err := d.store.InsertReply(ctx, reply); err != nil {
		return nil, fmt.Errorf("failed to record reply: %w", err)
	}
	if err := d.store.SetMessageFlag(ctx, parent.ID, models.FlagReplied, true); err != nil {
		d.logger.Error("failed to mark message replied",
			zap.String("message_id", parent.ID), zap.Error(err))
	}
	d.recordShadow(ctx, account, messageID, to, req.CC, subject, req.BodyText, req.BodyHTML, parent.MessageID, references)

	d.events.Broadcast(ws.EventNewReply, reply)
	return reply, nil
}

// SendRequest describes a freestanding outbound message. Entries in To
// may be plain addresses or directory tags; tags expand to their member
// addresses before sending.
type SendRequest struct {
	AccountID   string
	To          []string
	CC          []string
	Subject     string
	BodyText    string
	BodyHTML    string
	Attachments []models.ReplyAttachment
	SentBy      string
}

// SendResult tallies a group send. Failed lists the recipients whose
// individual delivery attempt errored.
type SendResult struct {
	SuccessCount int      `json:"successCount"`
	FailureCount int      `json:"failureCount"`
	Failed       []string `json:"failed,omitempty"`
}

// SendNew sends a new message to each resolved recipient independently,
// so one bad address never blocks the rest of a group.
func (d *Dispatcher) SendNew(ctx context.Context, req SendRequest) (*SendResult, error) {
	if len(req.To) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Subject) == "" {
		return nil, fmt.Errorf("%w: subject is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.BodyText) == "" {
		return nil, fmt.Errorf("%w: body is required", ErrInvalidRequest)
	}

	account, err := d.resolveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	recipients, err := d.expandRecipients(ctx, req.To)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients after group expansion", ErrInvalidRequest)
	}

	result := &SendResult{}
	for _, recipient := range recipients {
		messageID := newMessageID(account)
		raw, err := buildMIME(outboundMail{
			account:     account,
			to:          []string{recipient},
			cc:          req.CC,
			subject:     req.Subject,
			textBody:    req.BodyText,
			htmlBody:    req.BodyHTML,
			attachments: req.Attachments,
			messageID:   messageID,
		})
		if err != nil {
			return nil, err
		}
		if err := d.sender.Send(ctx, account, append([]string{recipient}, req.CC...), raw); err != nil {
			d.logger.Warn("send failed",
				zap.String("recipient", recipient), zap.Error(err))
			result.FailureCount++
			result.Failed = append(result.Failed, recipient)
			continue
		}
		result.SuccessCount++
		d.recordShadow(ctx, account, messageID, []string{recipient}, req.CC, req.Subject, req.BodyText, req.BodyHTML, "", nil)
	}
	return result, nil
}

// expandRecipients replaces directory tags with their member addresses
// and deduplicates the final list, preserving first-seen order.
func (d *Dispatcher) expandRecipients(ctx context.Context, entries []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(addr string) {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			return
		}
		key := strings.ToLower(addr)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if d.directory != nil && !strings.Contains(entry, "@") {
			addrs, ok, err := d.directory.Resolve(ctx, entry)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve recipient group %q: %w", entry, err)
			}
			if ok {
				for _, addr := range addrs {
					add(addr)
				}
				continue
			}
			return nil, fmt.Errorf("%w: unknown recipient group %q", ErrInvalidRequest, entry)
		}
		add(entry)
	}
	return out, nil
}

// recordShadow stores the sent message as a regular message row so the
// conversation timeline can interleave both directions. Shadows start
// read, are marked outbound so reconciliation against the mailbox never
// trashes them, and emit no realtime event.
func (d *Dispatcher) recordShadow(ctx context.Context, account *models.MailAccount, messageID string, to, cc []string, subject, text, html, inReplyTo string, references []string) {
	from := account.FromAddress
	if account.DisplayName != "" {
		from = fmt.Sprintf("%s <%s>", account.DisplayName, account.FromAddress)
	}
	shadow := &models.Message{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		MessageID:   messageID,
		FromAddress: from,
		ToAddresses: to,
		CCAddresses: cc,
		Subject:     subject,
		BodyText:    text,
		IsRead:      true,
		IsOutbound:  true,
		InReplyTo:   inReplyTo,
		References:  references,
		ReceivedAt:  time.Now().UTC(),
	}
	if html != "" {
		shadow.UnsafeBodyHTML = html
	}
	if err := d.store.InsertMessage(ctx, shadow); err != nil && !errors.Is(err, store.ErrDuplicateMessage) {
		d.logger.Error("failed to record sent message",
			zap.String("account_id", account.ID), zap.Error(err))
	}
}

// resolveAccount picks the requested account, or the first configured one
// when the request names none.
func (d *Dispatcher) resolveAccount(ctx context.Context, accountID string) (*models.MailAccount, error) {
	if accountID != "" {
		return d.store.GetAccount(ctx, accountID)
	}
	accounts, err := d.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, store.ErrAccountNotFound
	}
	return accounts[0], nil
}

// replySubject prefixes "Re: " unless the parent subject already carries
// a reply marker.
func replySubject(parentSubject string) string {
	if thread.StripReplyPrefixes(parentSubject) != parentSubject {
		return parentSubject
	}
	return "Re: " + parentSubject
}
