package chat

import (
	"encoding/json"
	"fmt"
)

// EventType names a WebSocket event.
type EventType string

const (
	// EventJoin binds the connection to a user id. Payload: the id as a JSON string.
	EventJoin EventType = "join"

	// EventSendMessage asks the server to push a message to its receiver's live connection.
	// Payload: SendMessagePayload. Nothing is persisted on this path.
	EventSendMessage EventType = "sendMessage"

	// EventReceiveMessage carries a live push to the receiver. Payload: message.Push.
	EventReceiveMessage EventType = "receiveMessage"

	// EventError reports a rejected inbound event. Payload: ErrorPayload.
	EventError EventType = "error"
)

// Envelope is the frame format in both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SendMessagePayload is the payload of EventSendMessage.
type SendMessagePayload struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// ErrorPayload is the payload of EventError.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewEnvelope marshals payload into an Envelope of the given type.
func NewEnvelope(eventType EventType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Envelope{Type: eventType, Payload: raw}, nil
}

// EncodeEvent returns the wire bytes of an event.
func EncodeEvent(eventType EventType, payload any) ([]byte, error) {
	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}
