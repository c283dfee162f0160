package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/fathima-sithara/chaty/internal/models"
)

func TestMongoUserRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("duplicate phone", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "duplicate key error",
		}))
		err := NewMongoUserRepo(mt.DB).Create(context.Background(), &models.User{PhoneNumber: "555"})
		assert.ErrorIs(mt, err, ErrDuplicate)
	})

	mt.Run("find by phone not found", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chaty.users", mtest.FirstBatch))
		_, err := NewMongoUserRepo(mt.DB).FindByPhone(context.Background(), "555")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("search", func(mt *mtest.T) {
		id := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chaty.users", mtest.FirstBatch,
			bson.D{{Key: "_id", Value: id}, {Key: "name", Value: "Alice"}, {Key: "phone_number", Value: "1"}},
		))
		users, err := NewMongoUserRepo(mt.DB).SearchByName(context.Background(), "ali", 20)
		require.NoError(mt, err)
		require.Len(mt, users, 1)
		assert.Equal(mt, id, users[0].ID)
		assert.Equal(mt, "Alice", users[0].Name)
	})

	mt.Run("empty id list skips query", func(mt *mtest.T) {
		users, err := NewMongoUserRepo(mt.DB).FindByIDs(context.Background(), nil)
		require.NoError(mt, err)
		assert.Empty(mt, users)
	})
}

func TestMongoConversationRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("create fills defaults", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		c := &models.Conversation{Users: []primitive.ObjectID{primitive.NewObjectID()}}
		require.NoError(mt, NewMongoConversationRepo(mt.DB).Create(ctx, c))
		assert.False(mt, c.ID.IsZero())
		assert.NotNil(mt, c.Messages)
		assert.False(mt, c.CreatedAt.IsZero())
	})

	mt.Run("remove member returns updated document", func(mt *mtest.T) {
		id, left := primitive.NewObjectID(), primitive.NewObjectID()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: id},
				{Key: "users", Value: bson.A{left}},
				{Key: "messages", Value: bson.A{}},
				{Key: "modified_at", Value: time.Now()},
			}},
		})
		c, err := NewMongoConversationRepo(mt.DB).RemoveMember(ctx, id, primitive.NewObjectID())
		require.NoError(mt, err)
		assert.Equal(mt, []primitive.ObjectID{left}, c.Users)
	})

	mt.Run("remove member without match", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})
		_, err := NewMongoConversationRepo(mt.DB).RemoveMember(ctx, primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("append to conversation actor left", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}, {Key: "nModified", Value: 0}})
		err := NewMongoConversationRepo(mt.DB).AppendMessage(ctx, primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("append ok", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 1}})
		err := NewMongoConversationRepo(mt.DB).AppendMessage(ctx, primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID())
		assert.NoError(mt, err)
	})

	mt.Run("delete if empty refuses populated", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}})
		err := NewMongoConversationRepo(mt.DB).DeleteIfEmpty(ctx, primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("list for member", func(mt *mtest.T) {
		member := primitive.NewObjectID()
		first := bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "users", Value: bson.A{member}}}
		second := bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "users", Value: bson.A{member}}}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "chaty.conversations", mtest.FirstBatch, first, second))
		list, err := NewMongoConversationRepo(mt.DB).ListForMember(ctx, member)
		require.NoError(mt, err)
		assert.Len(mt, list, 2)
	})
}

func TestMongoMessageRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("delete reports count", func(mt *mtest.T) {
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}})
		n, err := NewMongoMessageRepo(mt.DB).Delete(ctx, primitive.NewObjectID())
		require.NoError(mt, err)
		assert.Zero(mt, n)
	})

	mt.Run("insert assigns id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		m := &models.Message{Content: "hi", Sender: primitive.NewObjectID()}
		require.NoError(mt, NewMongoMessageRepo(mt.DB).Insert(ctx, m))
		assert.False(mt, m.ID.IsZero())
		assert.NotNil(mt, m.Files)
	})

	mt.Run("delete many with nothing", func(mt *mtest.T) {
		n, err := NewMongoMessageRepo(mt.DB).DeleteMany(ctx, nil)
		require.NoError(mt, err)
		assert.Zero(mt, n)
	})
}
