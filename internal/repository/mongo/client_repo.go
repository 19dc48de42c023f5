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

const clientCollectionName = "clients"

// mongoClientRepository implements repository.ClientRepository using MongoDB.
type mongoClientRepository struct {
	collection *mongo.Collection
}

// NewMongoClientRepository creates a new instance of mongoClientRepository.
func NewMongoClientRepository(db *mongo.Database) repository.ClientRepository {
	return &mongoClientRepository{
		collection: db.Collection(clientCollectionName),
	}
}

func (r *mongoClientRepository) Create(ctx context.Context, client *domain.Client) (primitive.ObjectID, error) {
	if client.UserID.IsZero() || client.TenantID.IsZero() {
		return primitive.NilObjectID, errors.New("client user ID and tenant ID are required")
	}

	client.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	client.CreatedAt = now
	client.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, client)
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

func (r *mongoClientRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error) {
	var client domain.Client
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &client, nil
}

// clientWithTenant is the shape produced by the $lookup aggregation below.
type clientWithTenant struct {
	domain.Client `bson:",inline"`
	Tenants       []domain.Tenant `bson:"tenantDocs"`
}

// GetByUserIDWithTenant fetches the client joined with its tenant in a
// single aggregation. The tenant slice may come back empty when the
// reference is dangling; callers fall back to a secondary tenant lookup.
func (r *mongoClientRepository) GetByUserIDWithTenant(ctx context.Context, userID primitive.ObjectID) (*domain.Client, *domain.Tenant, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$lookup", Value: bson.M{
			"from":         tenantCollectionName,
			"localField":   "tenantId",
			"foreignField": "_id",
			"as":           "tenantDocs",
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, nil, err
	}
	defer cursor.Close(ctx)

	var rows []clientWithTenant
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, repository.ErrNotFound
	}

	client := rows[0].Client
	if len(rows[0].Tenants) == 0 {
		return &client, nil, nil
	}
	tenant := rows[0].Tenants[0]
	return &client, &tenant, nil
}

func (r *mongoClientRepository) GetByEmail(ctx context.Context, tenantID primitive.ObjectID, email string) (*domain.Client, error) {
	var client domain.Client
	filter := bson.M{"tenantId": tenantID, "email": email}
	err := r.collection.FindOne(ctx, filter).Decode(&client)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &client, nil
}

func (r *mongoClientRepository) GetByCoachID(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.Client, error) {
	filter := bson.M{"tenantId": tenantID, "assignedCoachId": coachID}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var clients []domain.Client
	if err = cursor.All(ctx, &clients); err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *mongoClientRepository) SetAssignedCoach(ctx context.Context, clientID, coachID primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{
		"assignedCoachId": coachID,
		"updatedAt":       time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": clientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoClientRepository) SetAvatarURL(ctx context.Context, clientID primitive.ObjectID, url string) error {
	update := bson.M{"$set": bson.M{
		"avatarUrl": url,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": clientID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureClientIndexes creates necessary indexes for the clients collection.
func EnsureClientIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "assignedCoachId", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
