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

const (
	protocolCollectionName = "hormonal_protocols"
	compoundCollectionName = "hormonal_compounds"
)

// mongoProtocolRepository implements repository.ProtocolRepository using MongoDB.
type mongoProtocolRepository struct {
	protocols *mongo.Collection
	compounds *mongo.Collection
}

// NewMongoProtocolRepository creates a new instance of mongoProtocolRepository.
func NewMongoProtocolRepository(db *mongo.Database) repository.ProtocolRepository {
	return &mongoProtocolRepository{
		protocols: db.Collection(protocolCollectionName),
		compounds: db.Collection(compoundCollectionName),
	}
}

func (r *mongoProtocolRepository) Create(ctx context.Context, protocol *domain.HormonalProtocol) (primitive.ObjectID, error) {
	if protocol.TenantID.IsZero() || protocol.ClientID.IsZero() || protocol.Name == "" {
		return primitive.NilObjectID, errors.New("protocol tenant ID, client ID, and name are required")
	}

	protocol.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	protocol.CreatedAt = now
	protocol.UpdatedAt = now

	result, err := r.protocols.InsertOne(ctx, protocol)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoProtocolRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.HormonalProtocol, error) {
	var protocol domain.HormonalProtocol
	err := r.protocols.FindOne(ctx, bson.M{"_id": id}).Decode(&protocol)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &protocol, nil
}

func (r *mongoProtocolRepository) GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.HormonalProtocol, error) {
	cursor, err := r.protocols.Find(ctx, bson.M{"clientId": clientID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var protocols []domain.HormonalProtocol
	if err = cursor.All(ctx, &protocols); err != nil {
		return nil, err
	}
	return protocols, nil
}

func (r *mongoProtocolRepository) CreateCompounds(ctx context.Context, compounds []domain.HormonalCompound) ([]primitive.ObjectID, error) {
	if len(compounds) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(compounds))
	ids := make([]primitive.ObjectID, len(compounds))
	for i := range compounds {
		compounds[i].ID = primitive.NewObjectID()
		compounds[i].CreatedAt = now
		ids[i] = compounds[i].ID
		docs[i] = compounds[i]
	}

	if _, err := r.compounds.InsertMany(ctx, docs); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *mongoProtocolRepository) GetCompoundsByProtocolID(ctx context.Context, protocolID primitive.ObjectID) ([]domain.HormonalCompound, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderIndex", Value: 1}})
	cursor, err := r.compounds.Find(ctx, bson.M{"protocolId": protocolID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var compounds []domain.HormonalCompound
	if err = cursor.All(ctx, &compounds); err != nil {
		return nil, err
	}
	return compounds, nil
}

// EnsureProtocolIndexes creates indexes for hormonal protocol collections.
func EnsureProtocolIndexes(ctx context.Context, protocols, compounds *mongo.Collection) {
	_, _ = protocols.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "clientId", Value: 1}}, Options: options.Index()},
		{Keys: bson.D{{Key: "tenantId", Value: 1}}, Options: options.Index()},
	})
	_, _ = compounds.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "protocolId", Value: 1}, {Key: "orderIndex", Value: 1}}, Options: options.Index()},
	})
}
