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

const appointmentCollectionName = "appointments"

// mongoAppointmentRepository implements repository.AppointmentRepository.
type mongoAppointmentRepository struct {
	collection *mongo.Collection
}

// NewMongoAppointmentRepository creates a new appointment repository.
func NewMongoAppointmentRepository(db *mongo.Database) repository.AppointmentRepository {
	return &mongoAppointmentRepository{
		collection: db.Collection(appointmentCollectionName),
	}
}

func (r *mongoAppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) (primitive.ObjectID, error) {
	if appt.TenantID.IsZero() || appt.CoachID.IsZero() || appt.ClientID.IsZero() {
		return primitive.NilObjectID, errors.New("appointment tenant ID, coach ID, and client ID are required")
	}

	appt.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	if appt.Status == "" {
		appt.Status = domain.AppointmentScheduled
	}

	result, err := r.collection.InsertOne(ctx, appt)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

func (r *mongoAppointmentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Appointment, error) {
	var appt domain.Appointment
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&appt)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &appt, nil
}

func (r *mongoAppointmentRepository) Update(ctx context.Context, appt *domain.Appointment) error {
	update := bson.M{"$set": bson.M{
		"title":     appt.Title,
		"notes":     appt.Notes,
		"startsAt":  appt.StartsAt,
		"endsAt":    appt.EndsAt,
		"status":    appt.Status,
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": appt.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoAppointmentRepository) ListByClient(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.Appointment, error) {
	filter := bson.M{"clientId": clientID, "startsAt": bson.M{"$gte": from, "$lte": to}}
	return r.list(ctx, filter)
}

func (r *mongoAppointmentRepository) ListByCoach(ctx context.Context, coachID primitive.ObjectID, from, to time.Time) ([]domain.Appointment, error) {
	filter := bson.M{"coachId": coachID, "startsAt": bson.M{"$gte": from, "$lte": to}}
	return r.list(ctx, filter)
}

func (r *mongoAppointmentRepository) list(ctx context.Context, filter bson.M) ([]domain.Appointment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startsAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var appts []domain.Appointment
	if err = cursor.All(ctx, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// EnsureAppointmentIndexes creates indexes for the appointments collection.
func EnsureAppointmentIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "clientId", Value: 1}, {Key: "startsAt", Value: 1}}, Options: options.Index()},
		{Keys: bson.D{{Key: "coachId", Value: 1}, {Key: "startsAt", Value: 1}}, Options: options.Index()},
	}
	_, _ = collection.Indexes().CreateMany(ctx, indexes)
}
