package ws

import "time"

// Event types pushed to connected operator sessions.
const (
	EventNewMessage = "new_message"
	EventNewReply   = "new_reply"
)

// Event is one frame on the realtime channel. The push is a latency
// optimization only: clients reconcile through the list endpoints, so a
// missed frame is never a correctness problem.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}
