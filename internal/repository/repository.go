package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fathima-sithara/chaty/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	// SearchByName matches query as a case-insensitive literal substring.
	SearchByName(ctx context.Context, query string, limit int64) ([]*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, ch models.ProfileChanges) (*models.User, error)
}

// ConversationRepository methods that take a member filter return ErrNotFound
// both when the conversation is missing and when member is not in it.
type ConversationRepository interface {
	Create(ctx context.Context, c *models.Conversation) error
	FindForMember(ctx context.Context, id, member primitive.ObjectID) (*models.Conversation, error)
	ListForMember(ctx context.Context, member primitive.ObjectID) ([]*models.Conversation, error)
	// RemoveMember pulls member atomically and returns the updated document.
	RemoveMember(ctx context.Context, id, member primitive.ObjectID) (*models.Conversation, error)
	// DeleteIfEmpty removes the conversation only if it has no members left.
	DeleteIfEmpty(ctx context.Context, id primitive.ObjectID) error
	AppendMessage(ctx context.Context, id, member, messageID primitive.ObjectID) error
	FindByMessage(ctx context.Context, messageID, member primitive.ObjectID) (*models.Conversation, error)
	DetachMessage(ctx context.Context, id, messageID primitive.ObjectID) error
}

type MessageRepository interface {
	Insert(ctx context.Context, m *models.Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	// FindByIDs returns the matching messages in no particular order.
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*models.Message, error)
	Delete(ctx context.Context, id primitive.ObjectID) (int64, error)
	DeleteMany(ctx context.Context, ids []primitive.ObjectID) (int64, error)
}
