package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/chaty/internal/models"
)

type MongoConversationRepo struct {
	col *mongo.Collection
}

func NewMongoConversationRepo(db *mongo.Database) *MongoConversationRepo {
	return &MongoConversationRepo{col: db.Collection(ConversationsCollection)}
}

func (r *MongoConversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	now := time.Now().UTC()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	if c.Messages == nil {
		c.Messages = []primitive.ObjectID{}
	}
	c.CreatedAt, c.ModifiedAt = now, now
	_, err := r.col.InsertOne(ctx, c)
	return err
}

func (r *MongoConversationRepo) findOne(ctx context.Context, filter bson.M) (*models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var c models.Conversation
	if err := r.col.FindOne(ctx, filter).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoConversationRepo) FindForMember(ctx context.Context, id, member primitive.ObjectID) (*models.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": id, "users": member})
}

func (r *MongoConversationRepo) FindByMessage(ctx context.Context, messageID, member primitive.ObjectID) (*models.Conversation, error) {
	return r.findOne(ctx, bson.M{"messages": messageID, "users": member})
}

func (r *MongoConversationRepo) ListForMember(ctx context.Context, member primitive.ObjectID) ([]*models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "modified_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"users": member}, opts)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Conversation](ctx, cur)
}

func (r *MongoConversationRepo) RemoveMember(ctx context.Context, id, member primitive.ObjectID) (*models.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{
		"$pull": bson.M{"users": member},
		"$set":  bson.M{"modified_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var c models.Conversation
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id, "users": member}, update, opts).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoConversationRepo) DeleteIfEmpty(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "users": bson.M{"$size": 0}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoConversationRepo) AppendMessage(ctx context.Context, id, member, messageID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{
		"$push": bson.M{"messages": messageID},
		"$set":  bson.M{"modified_at": time.Now().UTC()},
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "users": member}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoConversationRepo) DetachMessage(ctx context.Context, id, messageID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.col.UpdateByID(ctx, id, bson.M{"$pull": bson.M{"messages": messageID}})
	return err
}
