package imap

import (
	"fmt"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// bodySection returns the section used to fetch full message bodies.
// Peek keeps the fetch read-only: the server must not flag messages as seen
// just because the poller looked at them.
func bodySection() *imap.BodySectionName {
	return &imap.BodySectionName{Peek: true}
}

// fetchWindow computes the sequence-number window [max(1, total-limit+1), total]
// covering the most recent limit messages in the mailbox.
func fetchWindow(total, limit uint32) (uint32, uint32) {
	from := uint32(1)
	if limit < total {
		from = total - limit + 1
	}
	return from, total
}

// FetchRecent fetches the envelope, flags, and full body of the most recent
// limit messages in the selected mailbox.
func FetchRecent(c *client.Client, total, limit uint32) ([]*imap.Message, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if total == 0 || limit == 0 {
		return []*imap.Message{}, nil
	}

	from, to := fetchWindow(total, limit)

	seqSet := new(imap.SeqSet)
	seqSet.AddRange(from, to)

	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchUid,
		bodySection().FetchItem(),
	}

	messages := make(chan *imap.Message, to-from+1)
	done := make(chan error, 1)

	go func() {
		done <- c.Fetch(seqSet, items, messages)
	}()

	var result []*imap.Message
	for msg := range messages {
		result = append(result, msg)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return result, nil
}
