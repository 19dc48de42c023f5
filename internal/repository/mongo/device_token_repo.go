package mongo

import (
	"context"
	"time"

	"coachfit/platform/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const deviceTokenCollectionName = "device_tokens"

// mongoDeviceTokenRepository implements repository.DeviceTokenRepository.
type mongoDeviceTokenRepository struct {
	collection *mongo.Collection
}

// NewMongoDeviceTokenRepository creates a new device token repository.
func NewMongoDeviceTokenRepository(db *mongo.Database) repository.DeviceTokenRepository {
	return &mongoDeviceTokenRepository{
		collection: db.Collection(deviceTokenCollectionName),
	}
}

// Upsert registers a (user, token) pair. Safe to repeat: the unique index on
// the pair makes repeated upserts a no-op beyond bumping updatedAt.
func (r *mongoDeviceTokenRepository) Upsert(ctx context.Context, userID primitive.ObjectID, token string) error {
	filter := bson.M{"userId": userID, "token": token}
	update := bson.M{
		"$set":         bson.M{"updatedAt": time.Now().UTC()},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID()},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// EnsureDeviceTokenIndexes creates indexes for the device_tokens collection.
func EnsureDeviceTokenIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
