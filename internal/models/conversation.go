package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation is a multi-party thread. Users is never empty while the
// document exists; Messages is in send order.
type Conversation struct {
	ID         primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Users      []primitive.ObjectID `bson:"users" json:"users"`
	Messages   []primitive.ObjectID `bson:"messages" json:"messages"`
	CreatedAt  time.Time            `bson:"created_at" json:"created_at"`
	ModifiedAt time.Time            `bson:"modified_at" json:"modified_at"`
}

func (c *Conversation) HasMember(id primitive.ObjectID) bool {
	for _, u := range c.Users {
		if u == id {
			return true
		}
	}
	return false
}

// LastMessageID returns the id of the final message in the sequence.
func (c *Conversation) LastMessageID() (primitive.ObjectID, bool) {
	if len(c.Messages) == 0 {
		return primitive.NilObjectID, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// ConversationView is a conversation with its members and last message resolved.
type ConversationView struct {
	*Conversation
	Members     []*User      `json:"members"`
	LastMessage *MessageView `json:"last_message,omitempty"`
}
