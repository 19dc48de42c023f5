package repository

import (
	"context"
	"time"

	"coachfit/platform/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrConflict     = RepositoryError("conflict")
	ErrUpdateFailed = RepositoryError("update failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// TenantRepository defines the interface for interacting with tenant data.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Tenant, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Tenant, error)
	UpdateBranding(ctx context.Context, id primitive.ObjectID, colors domain.BrandColors, logoURL string) error
	SetSubscriptionStatus(ctx context.Context, id primitive.ObjectID, status domain.SubscriptionStatus) error
	SetGatewayCustomerID(ctx context.Context, id primitive.ObjectID, customerID string) error
}

// UserRepository defines the interface for interacting with auth users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// ProfileRepository defines the interface for coach profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *domain.Profile) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Profile, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)
	GetByTenantID(ctx context.Context, tenantID primitive.ObjectID) ([]domain.Profile, error)
}

// ClientRepository defines the interface for athlete records.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Client, error)
	// GetByUserIDWithTenant performs the client->tenant join used by
	// identity resolution. The tenant may be nil when the join is empty.
	GetByUserIDWithTenant(ctx context.Context, userID primitive.ObjectID) (*domain.Client, *domain.Tenant, error)
	GetByEmail(ctx context.Context, tenantID primitive.ObjectID, email string) (*domain.Client, error)
	GetByCoachID(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.Client, error)
	SetAssignedCoach(ctx context.Context, clientID, coachID primitive.ObjectID) error
	SetAvatarURL(ctx context.Context, clientID primitive.ObjectID, url string) error
}

// WorkoutRepository covers both reusable templates (clientId absent) and
// dated client-owned instances.
type WorkoutRepository interface {
	Create(ctx context.Context, workout *domain.Workout) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Workout, error)
	Update(ctx context.Context, workout *domain.Workout) error
	Delete(ctx context.Context, id, coachID primitive.ObjectID) error
	TemplatesByCoach(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.Workout, error)
	InstancesByClient(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.Workout, error)
}

// WorkoutExerciseRepository manages children of workouts.
type WorkoutExerciseRepository interface {
	CreateMany(ctx context.Context, exercises []domain.WorkoutExercise) ([]primitive.ObjectID, error)
	GetByWorkoutID(ctx context.Context, workoutID primitive.ObjectID) ([]domain.WorkoutExercise, error)
	DeleteByWorkoutID(ctx context.Context, workoutID primitive.ObjectID) error
}

// MealPlanRepository mirrors WorkoutRepository for diet templates/instances.
type MealPlanRepository interface {
	Create(ctx context.Context, plan *domain.MealPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MealPlan, error)
	Update(ctx context.Context, plan *domain.MealPlan) error
	Delete(ctx context.Context, id, coachID primitive.ObjectID) error
	TemplatesByCoach(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.MealPlan, error)
	InstancesByClient(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.MealPlan, error)
}

// MealRepository manages children of meal plans.
type MealRepository interface {
	CreateMany(ctx context.Context, meals []domain.Meal) ([]primitive.ObjectID, error)
	GetByMealPlanID(ctx context.Context, mealPlanID primitive.ObjectID) ([]domain.Meal, error)
	DeleteByMealPlanID(ctx context.Context, mealPlanID primitive.ObjectID) error
}

// ProtocolRepository manages hormonal protocols and their compounds.
type ProtocolRepository interface {
	Create(ctx context.Context, protocol *domain.HormonalProtocol) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.HormonalProtocol, error)
	GetByClientID(ctx context.Context, clientID primitive.ObjectID) ([]domain.HormonalProtocol, error)
	CreateCompounds(ctx context.Context, compounds []domain.HormonalCompound) ([]primitive.ObjectID, error)
	GetCompoundsByProtocolID(ctx context.Context, protocolID primitive.ObjectID) ([]domain.HormonalCompound, error)
}

// AppointmentRepository manages coach/client appointments.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Appointment, error)
	Update(ctx context.Context, appt *domain.Appointment) error
	ListByClient(ctx context.Context, clientID primitive.ObjectID, from, to time.Time) ([]domain.Appointment, error)
	ListByCoach(ctx context.Context, coachID primitive.ObjectID, from, to time.Time) ([]domain.Appointment, error)
}

// ChatRepository manages tenant-scoped chat messages.
type ChatRepository interface {
	Append(ctx context.Context, msg *domain.ChatMessage) (primitive.ObjectID, error)
	ListByClient(ctx context.Context, clientID primitive.ObjectID, before time.Time, limit int64) ([]domain.ChatMessage, error)
}

// SubscriptionRepository manages tenant payment intents.
type SubscriptionRepository interface {
	Create(ctx context.Context, sub *domain.Subscription) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Subscription, error)
	// GetPendingByTenant returns the single non-terminal subscription for
	// the tenant, or ErrNotFound.
	GetPendingByTenant(ctx context.Context, tenantID primitive.ObjectID) (*domain.Subscription, error)
	GetLatestByTenant(ctx context.Context, tenantID primitive.ObjectID) (*domain.Subscription, error)
	GetByGatewayIntentID(ctx context.Context, intentID string) (*domain.Subscription, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status domain.SubscriptionStatus) error
	SetPixPayload(ctx context.Context, id primitive.ObjectID, qrCode, copyPaste string) error
	// MarkReset retires the intent as a user reset, distinct from a
	// gateway-reported cancellation.
	MarkReset(ctx context.Context, id primitive.ObjectID) error
}

// DeviceTokenRepository stores idempotent (user, token) push registrations.
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, userID primitive.ObjectID, token string) error
}
