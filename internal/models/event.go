package models

import "time"

type EventType string

const (
	EventConversationCreated EventType = "conversation.created"
	EventConversationUpdated EventType = "conversation.updated"
	EventMessageCreated      EventType = "message.created"
)

// Event is what subscribers receive.
type Event struct {
	Type         EventType     `json:"type"`
	Topic        string        `json:"topic"`
	Conversation *Conversation `json:"conversation,omitempty"`
	Message      *Message      `json:"message,omitempty"`
	Update       bool          `json:"update"`
	At           time.Time     `json:"at"`
}
