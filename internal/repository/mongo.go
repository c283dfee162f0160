package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	UsersCollection         = "users"
	ConversationsCollection = "conversations"
	MessagesCollection      = "messages"

	opTimeout = 5 * time.Second
)

func ConnectMongo(ctx context.Context, uri, dbName string, timeout time.Duration, log *zap.Logger) (*mongo.Database, *mongo.Client, error) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Error("mongo connect failed", zap.Error(err))
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Error("mongo ping failed", zap.Error(err))
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	log.Info("mongo connected", zap.String("db", dbName))
	return client.Database(dbName), client, nil
}

// EnsureIndexes creates the indexes the repositories rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "phone_number", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("phone_number_unique"),
	}); err != nil {
		return err
	}
	_, err := db.Collection(ConversationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "users", Value: 1}}, Options: options.Index().SetName("users_idx")},
		{Keys: bson.D{{Key: "messages", Value: 1}}, Options: options.Index().SetName("messages_idx")},
	})
	return err
}

func decodeAll[T any](ctx context.Context, cur *mongo.Cursor) ([]*T, error) {
	defer cur.Close(ctx)
	out := make([]*T, 0)
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}
