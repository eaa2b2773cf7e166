package thread

import (
	"sort"
	"time"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/models"
)

// EntryKind tags a timeline entry's underlying record type.
type EntryKind string

const (
	EntryKindMessage EntryKind = "message"
	EntryKindReply   EntryKind = "reply"
)

// TimelineEntry is the common projection of a Message or Reply inside a
// conversation. Inbound and outbound attachments keep their distinct shapes:
// inbound mail has metadata only, outbound mail has URL references.
type TimelineEntry struct {
	Kind               EntryKind                `json:"kind"`
	ID                 string                   `json:"id"`
	From               string                   `json:"from"`
	Timestamp          time.Time                `json:"timestamp"`
	BodyText           string                   `json:"body_text"`
	BodyHTML           string                   `json:"body_html,omitempty"`
	MessageAttachments []models.Attachment      `json:"message_attachments,omitempty"`
	ReplyAttachments   []models.ReplyAttachment `json:"reply_attachments,omitempty"`
	IsOutgoing         bool                     `json:"is_outgoing"`
}

// Conversation is one assembled thread: a subject-keyed, strictly
// chronological timeline mixing original messages and replies.
type Conversation struct {
	Key          string          `json:"key"`
	Subject      string          `json:"subject"`
	Participants []string        `json:"participants"`
	Timeline     []TimelineEntry `json:"timeline"`
	UnreadCount  int             `json:"unread_count"`
	LastMessage  time.Time       `json:"last_message"`
}

// Build groups messages (with their replies attached) into conversations
// keyed by normalized subject and returns them newest first.
func Build(messages []*models.Message, accounts map[string]*models.MailAccount) []*Conversation {
	byKey := make(map[string]*Conversation)
	participantsSeen := make(map[string]map[string]struct{})
	var order []string

	for _, msg := range messages {
		key := NormalizeSubject(msg.Subject)

		conv, ok := byKey[key]
		if !ok {
			conv = &Conversation{
				Key:     key,
				Subject: StripReplyPrefixes(msg.Subject),
			}
			byKey[key] = conv
			participantsSeen[key] = make(map[string]struct{})
			order = append(order, key)
		}

		account := accounts[msg.AccountID]
		outgoing := IsOwnAddress(msg.FromAddress, account)

		conv.Timeline = append(conv.Timeline, TimelineEntry{
			Kind:               EntryKindMessage,
			ID:                 msg.ID,
			From:               msg.FromAddress,
			Timestamp:          msg.ReceivedAt,
			BodyText:           msg.BodyText,
			BodyHTML:           msg.UnsafeBodyHTML,
			MessageAttachments: msg.Attachments,
			IsOutgoing:         outgoing,
		})

		if !outgoing && !msg.IsRead {
			conv.UnreadCount++
		}

		addParticipants(conv, participantsSeen[key], otherParty(msg, outgoing))

		// Replies are outgoing by construction; the other party is whoever
		// they were sent to.
		for _, reply := range msg.Replies {
			from := reply.SentBy
			if account != nil {
				from = account.FromAddress
			}
			conv.Timeline = append(conv.Timeline, TimelineEntry{
				Kind:             EntryKindReply,
				ID:               reply.ID,
				From:             from,
				Timestamp:        reply.SentAt,
				BodyText:         reply.BodyText,
				BodyHTML:         reply.BodyHTML,
				ReplyAttachments: reply.Attachments,
				IsOutgoing:       true,
			})
			addParticipants(conv, participantsSeen[key], reply.ToAddresses)
		}
	}

	conversations := make([]*Conversation, 0, len(order))
	for _, key := range order {
		conv := byKey[key]

		sort.SliceStable(conv.Timeline, func(i, j int) bool {
			return conv.Timeline[i].Timestamp.Before(conv.Timeline[j].Timestamp)
		})

		if len(conv.Timeline) > 0 {
			conv.LastMessage = conv.Timeline[len(conv.Timeline)-1].Timestamp
		}
		conversations = append(conversations, conv)
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return conversations[i].LastMessage.After(conversations[j].LastMessage)
	})

	return conversations
}

// otherParty returns the addresses of "the other side" of one message: the
// sender for inbound mail, the recipients for outbound mail.
func otherParty(msg *models.Message, outgoing bool) []string {
	if outgoing {
		return msg.ToAddresses
	}
	return []string{msg.FromAddress}
}

func addParticipants(conv *Conversation, seen map[string]struct{}, addresses []string) {
	for _, address := range addresses {
		spec := addrSpec(address)
		if spec == "" {
			continue
		}
		if _, ok := seen[spec]; ok {
			continue
		}
		seen[spec] = struct{}{}
		conv.Participants = append(conv.Participants, spec)
	}
}
