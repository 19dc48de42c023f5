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

const subscriptionCollectionName = "subscriptions"

// mongoSubscriptionRepository implements repository.SubscriptionRepository.
type mongoSubscriptionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubscriptionRepository creates a new subscription repository.
func NewMongoSubscriptionRepository(db *mongo.Database) repository.SubscriptionRepository {
	return &mongoSubscriptionRepository{
		collection: db.Collection(subscriptionCollectionName),
	}
}

func (r *mongoSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) (primitive.ObjectID, error) {
	if sub.TenantID.IsZero() || sub.PlanID == "" {
		return primitive.NilObjectID, errors.New("subscription tenant ID and plan ID are required")
	}

	sub.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	sub.CreatedAt = now
	sub.UpdatedAt = now
	if sub.Status == "" {
		sub.Status = domain.SubscriptionPending
	}

	result, err := r.collection.InsertOne(ctx, sub)
	if err != nil {
		// The partial unique index on pending subscriptions enforces the
		// one-non-terminal-intent-per-tenant invariant at the storage level.
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrConflict
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoSubscriptionRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *mongoSubscriptionRepository) GetPendingByTenant(ctx context.Context, tenantID primitive.ObjectID) (*domain.Subscription, error) {
	var sub domain.Subscription
	filter := bson.M{"tenantId": tenantID, "status": domain.SubscriptionPending}
	err := r.collection.FindOne(ctx, filter).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *mongoSubscriptionRepository) GetLatestByTenant(ctx context.Context, tenantID primitive.ObjectID) (*domain.Subscription, error) {
	var sub domain.Subscription
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	err := r.collection.FindOne(ctx, bson.M{"tenantId": tenantID}, opts).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *mongoSubscriptionRepository) GetByGatewayIntentID(ctx context.Context, intentID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := r.collection.FindOne(ctx, bson.M{"gatewayIntentId": intentID}).Decode(&sub)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *mongoSubscriptionRepository) SetStatus(ctx context.Context, id primitive.ObjectID, status domain.SubscriptionStatus) error {
	set := bson.M{
		"status":    status,
		"updatedAt": time.Now().UTC(),
	}
	if status == domain.SubscriptionCancelled {
		set["cancelledAt"] = time.Now().UTC()
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoSubscriptionRepository) MarkReset(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":      domain.SubscriptionCancelled,
		"cancelledAt": now,
		"resetAt":     now,
		"updatedAt":   now,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoSubscriptionRepository) SetPixPayload(ctx context.Context, id primitive.ObjectID, qrCode, copyPaste string) error {
	update := bson.M{"$set": bson.M{
		"pixQrCode":    qrCode,
		"pixCopyPaste": copyPaste,
		"updatedAt":    time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureSubscriptionIndexes creates indexes for the subscriptions collection,
// including the partial unique index that allows at most one pending
// subscription per tenant.
func EnsureSubscriptionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": domain.SubscriptionPending}),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
