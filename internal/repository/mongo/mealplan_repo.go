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
	mealPlanCollectionName = "meal_plans"
	mealCollectionName     = "meals"
)

// mongoMealPlanRepository implements repository.MealPlanRepository using MongoDB.
type mongoMealPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoMealPlanRepository creates a new instance of mongoMealPlanRepository.
func NewMongoMealPlanRepository(db *mongo.Database) repository.MealPlanRepository {
	return &mongoMealPlanRepository{
		collection: db.Collection(mealPlanCollectionName),
	}
}

func (r *mongoMealPlanRepository) Create(ctx context.Context, plan *domain.MealPlan) (primitive.ObjectID, error) {
	if plan.TenantID.IsZero() || plan.CoachID.IsZero() || plan.Name == "" {
		return primitive.NilObjectID, errors.New("meal plan tenant ID, coach ID, and name are required")
	}

	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoMealPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MealPlan, error) {
	var plan domain.MealPlan
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *mongoMealPlanRepository) Update(ctx context.Context, plan *domain.MealPlan) error {
	update := bson.M{"$set": bson.M{
		"name":      plan.Name,
		"notes":     plan.Notes,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": plan.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoMealPlanRepository) Delete(ctx context.Context, id, coachID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "coachId": coachID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoMealPlanRepository) TemplatesByCoach(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.MealPlan, error) {
	filter := bson.M{
		"tenantId": tenantID,
		"coachId":  coachID,
		"clientId": bson.M{"$exists": false},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var plans []domain.MealPlan
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *mongoMealPlanRepository) InstancesByClient(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.MealPlan, error) {
	filter := bson.M{
		"clientId": clientID,
		"date":     bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var plans []domain.MealPlan
	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// EnsureMealPlanIndexes creates necessary indexes for the meal_plans collection.
func EnsureMealPlanIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}, {Key: "coachId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "clientId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}

// mongoMealRepository implements repository.MealRepository.
type mongoMealRepository struct {
	collection *mongo.Collection
}

// NewMongoMealRepository creates a new meal repository.
func NewMongoMealRepository(db *mongo.Database) repository.MealRepository {
	return &mongoMealRepository{
		collection: db.Collection(mealCollectionName),
	}
}

func (r *mongoMealRepository) CreateMany(ctx context.Context, meals []domain.Meal) ([]primitive.ObjectID, error) {
	if len(meals) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(meals))
	ids := make([]primitive.ObjectID, len(meals))
	for i := range meals {
		meals[i].ID = primitive.NewObjectID()
		meals[i].CreatedAt = now
		ids[i] = meals[i].ID
		docs[i] = meals[i]
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *mongoMealRepository) GetByMealPlanID(ctx context.Context, mealPlanID primitive.ObjectID) ([]domain.Meal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderIndex", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"mealPlanId": mealPlanID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var meals []domain.Meal
	if err = cursor.All(ctx, &meals); err != nil {
		return nil, err
	}
	return meals, nil
}

func (r *mongoMealRepository) DeleteByMealPlanID(ctx context.Context, mealPlanID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"mealPlanId": mealPlanID})
	return err
}

// EnsureMealIndexes creates indexes for the meals collection.
func EnsureMealIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "mealPlanId", Value: 1}, {Key: "orderIndex", Value: 1}},
			Options: options.Index(),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
