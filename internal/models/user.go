package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PhoneNumber  string             `bson:"phone_number" json:"phone_number"`
	Password     string             `bson:"password" json:"-"`
	Name         string             `bson:"name" json:"name"`
	ProfilePhoto string             `bson:"profile_photo,omitempty" json:"profile_photo,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	ModifiedAt   time.Time          `bson:"modified_at" json:"modified_at"`
}

// ProfileChanges holds the fields a profile update may set. Nil means unchanged.
type ProfileChanges struct {
	Name         *string
	ProfilePhoto *string
}

// AuthPayload is returned by signup and login.
type AuthPayload struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
