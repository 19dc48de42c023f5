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
	workoutCollectionName         = "workouts"
	workoutExerciseCollectionName = "workout_exercises"
)

// mongoWorkoutRepository implements repository.WorkoutRepository using MongoDB.
// The same collection stores templates (no clientId) and assigned instances.
type mongoWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutRepository creates a new instance of mongoWorkoutRepository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		collection: db.Collection(workoutCollectionName),
	}
}

func (r *mongoWorkoutRepository) Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error) {
	if workout.TenantID.IsZero() || workout.CoachID.IsZero() || workout.Name == "" {
		return primitive.NilObjectID, errors.New("workout tenant ID, coach ID, and name are required")
	}

	workout.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	workout.CreatedAt = now
	workout.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, workout)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoWorkoutRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error) {
	var workout domain.Workout
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&workout)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &workout, nil
}

func (r *mongoWorkoutRepository) Update(ctx context.Context, workout *domain.Workout) error {
	update := bson.M{"$set": bson.M{
		"name":      workout.Name,
		"notes":     workout.Notes,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": workout.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a workout owned by the given coach.
func (r *mongoWorkoutRepository) Delete(ctx context.Context, id, coachID primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "coachId": coachID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// TemplatesByCoach returns reusable templates: rows with no clientId.
func (r *mongoWorkoutRepository) TemplatesByCoach(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.Workout, error) {
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

	var workouts []domain.Workout
	if err = cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// InstancesByClient returns dated instances owned by the client in [from, to].
func (r *mongoWorkoutRepository) InstancesByClient(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.Workout, error) {
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

	var workouts []domain.Workout
	if err = cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// EnsureWorkoutIndexes creates necessary indexes for the workouts collection.
func EnsureWorkoutIndexes(ctx context.Context, collection *mongo.Collection) {
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

// mongoWorkoutExerciseRepository implements repository.WorkoutExerciseRepository.
type mongoWorkoutExerciseRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutExerciseRepository creates a new workout exercise repository.
func NewMongoWorkoutExerciseRepository(db *mongo.Database) repository.WorkoutExerciseRepository {
	return &mongoWorkoutExerciseRepository{
		collection: db.Collection(workoutExerciseCollectionName),
	}
}

func (r *mongoWorkoutExerciseRepository) CreateMany(ctx context.Context, exercises []domain.WorkoutExercise) ([]primitive.ObjectID, error) {
	if len(exercises) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(exercises))
	ids := make([]primitive.ObjectID, len(exercises))
	for i := range exercises {
		exercises[i].ID = primitive.NewObjectID()
		exercises[i].CreatedAt = now
		ids[i] = exercises[i].ID
		docs[i] = exercises[i]
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *mongoWorkoutExerciseRepository) GetByWorkoutID(ctx context.Context, workoutID primitive.ObjectID) ([]domain.WorkoutExercise, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderIndex", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"workoutId": workoutID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var exercises []domain.WorkoutExercise
	if err = cursor.All(ctx, &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}

func (r *mongoWorkoutExerciseRepository) DeleteByWorkoutID(ctx context.Context, workoutID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"workoutId": workoutID})
	return err
}

// EnsureWorkoutExerciseIndexes creates indexes for workout_exercises.
func EnsureWorkoutExerciseIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "workoutId", Value: 1}, {Key: "orderIndex", Value: 1}},
			Options: options.Index(),
		},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
