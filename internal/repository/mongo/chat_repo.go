package mongo

import (
	"context"
	"errors"
	"time"

	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const chatCollectionName = "chat_messages"

// mongoChatRepository implements repository.ChatRepository using MongoDB.
type mongoChatRepository struct {
	collection *mongo.Collection
}

// NewMongoChatRepository creates a new chat repository.
func NewMongoChatRepository(db *mongo.Database) repository.ChatRepository {
	return &mongoChatRepository{
		collection: db.Collection(chatCollectionName),
	}
}

func (r *mongoChatRepository) Append(ctx context.Context, msg *domain.ChatMessage) (primitive.ObjectID, error) {
	if msg.TenantID.IsZero() || msg.ClientID.IsZero() || msg.SenderID.IsZero() {
		return primitive.NilObjectID, errors.New("chat message tenant ID, client ID, and sender ID are required")
	}

	msg.ID = primitive.NewObjectID()
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}

	result, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// ListByClient returns up to limit messages sent before the given time,
// newest first.
func (r *mongoChatRepository) ListByClient(ctx context.Context, clientID primitive.ObjectID, before time.Time, limit int64) ([]domain.ChatMessage, error) {
	filter := bson.M{"clientId": clientID, "sentAt": bson.M{"$lt": before}}
	opts := options.Find().
		SetSort(bson.D{{Key: "sentAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []domain.ChatMessage
	if err = cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// EnsureChatIndexes creates indexes for the chat_messages collection.
func EnsureChatIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "sentAt", Value: -1}}, Options: options.Index()},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
