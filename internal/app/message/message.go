/*
Package message defines the direct-message records exchanged between the relay, the
stores and the clients.

A Message is the durable record created by a store. A Push is what travels over a live
connection: it deliberately carries neither id nor timestamp.
*/
package message

import (
	"strings"
	"time"
)

// MaxContentBytes is the largest accepted message content, in bytes.
const MaxContentBytes = 5000

// Message is an immutable persisted direct message.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Push is the live-delivery payload of the receiveMessage event.
type Push struct {
	SenderID string `json:"senderId"`
	Content  string `json:"content"`
}

// IsBlank reports whether content has nothing but whitespace.
func IsBlank(content string) bool {
	return strings.TrimSpace(content) == ""
}

// ConversationKey returns the order-independent key of the conversation between a and b.
func ConversationKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Involves reports whether m belongs to the conversation between a and b.
func (m Message) Involves(a, b string) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}
