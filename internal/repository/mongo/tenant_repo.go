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

const tenantCollectionName = "tenants"

// mongoTenantRepository implements repository.TenantRepository using MongoDB.
type mongoTenantRepository struct {
	collection *mongo.Collection
}

// NewMongoTenantRepository creates a new instance of mongoTenantRepository.
func NewMongoTenantRepository(db *mongo.Database) repository.TenantRepository {
	return &mongoTenantRepository{
		collection: db.Collection(tenantCollectionName),
	}
}

func (r *mongoTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) (primitive.ObjectID, error) {
	if tenant.Name == "" || tenant.Slug == "" {
		return primitive.NilObjectID, errors.New("tenant name and slug are required")
	}

	tenant.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	if tenant.SubscriptionStatus == "" {
		tenant.SubscriptionStatus = domain.SubscriptionNone
	}
	if (tenant.Colors == domain.BrandColors{}) {
		tenant.Colors = domain.DefaultBrandColors()
	}

	result, err := r.collection.InsertOne(ctx, tenant)
	if err != nil {
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

func (r *mongoTenantRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tenant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *mongoTenantRepository) GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.collection.FindOne(ctx, bson.M{"slug": slug}).Decode(&tenant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &tenant, nil
}

func (r *mongoTenantRepository) UpdateBranding(ctx context.Context, id primitive.ObjectID, colors domain.BrandColors, logoURL string) error {
	update := bson.M{"$set": bson.M{
		"colors":    colors,
		"logoUrl":   logoURL,
		"updatedAt": time.Now().UTC(),
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

func (r *mongoTenantRepository) SetSubscriptionStatus(ctx context.Context, id primitive.ObjectID, status domain.SubscriptionStatus) error {
	update := bson.M{"$set": bson.M{
		"subscriptionStatus": status,
		"updatedAt":          time.Now().UTC(),
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

func (r *mongoTenantRepository) SetGatewayCustomerID(ctx context.Context, id primitive.ObjectID, customerID string) error {
	update := bson.M{"$set": bson.M{
		"gatewayCustomerId": customerID,
		"updatedAt":         time.Now().UTC(),
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

// EnsureTenantIndexes creates necessary indexes for the tenants collection.
func EnsureTenantIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
