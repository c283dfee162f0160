package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Attachment holds storage locators; either may be empty.
type Attachment struct {
	Thumbnail string `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	File      string `bson:"file,omitempty" json:"file,omitempty"`
}

type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Content    string             `bson:"content" json:"content"`
	Sender     primitive.ObjectID `bson:"sender" json:"sender"`
	Files      []Attachment       `bson:"files" json:"files"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	ModifiedAt time.Time          `bson:"modified_at" json:"modified_at"`
}

type MessageView struct {
	*Message
	SenderUser   *User `json:"sender_user,omitempty"`
	IsLoggedUser bool  `json:"is_logged_user"`
}
