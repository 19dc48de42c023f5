package service

import (
	"context"
	"errors"
	"time"

	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/repository"
	"coachfit/platform/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrNoClientRecord = errors.New("no client record for this user")
	ErrNoCoach        = errors.New("no coach assigned")
)

// UploadTicket is a presigned upload the app performs directly against
// object storage; ObjectURL is where the object will live afterwards.
type UploadTicket struct {
	UploadURL string `json:"uploadUrl"`
	ObjectKey string `json:"objectKey"`
}

// ClientService covers the athlete-facing read surface plus the few client
// mutations: chat, avatar upload, and device registration.
type ClientService interface {
	GetMyProfile(ctx context.Context, userID primitive.ObjectID) (*domain.Client, error)
	GetMyCoach(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)

	GetMyWorkouts(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Workout, error)
	GetWorkoutExercises(ctx context.Context, userID, workoutID primitive.ObjectID) ([]domain.WorkoutExercise, error)
	GetMyMealPlans(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.MealPlan, error)
	GetMealPlanMeals(ctx context.Context, userID, mealPlanID primitive.ObjectID) ([]domain.Meal, error)
	GetMyProtocols(ctx context.Context, userID primitive.ObjectID) ([]domain.HormonalProtocol, error)
	GetMyAppointments(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Appointment, error)

	GetChatHistory(ctx context.Context, userID primitive.ObjectID, before time.Time, limit int64) ([]domain.ChatMessage, error)
	SendMessage(ctx context.Context, userID primitive.ObjectID, body string) (*domain.ChatMessage, error)

	RequestAvatarUpload(ctx context.Context, userID primitive.ObjectID, contentType string) (*UploadTicket, error)
	ConfirmAvatarUpload(ctx context.Context, userID primitive.ObjectID, objectKey string) (string, error)
	RegisterDeviceToken(ctx context.Context, userID primitive.ObjectID, token string) error
}

type clientService struct {
	clients   repository.ClientRepository
	profiles  repository.ProfileRepository
	workouts  repository.WorkoutRepository
	exercises repository.WorkoutExerciseRepository
	mealPlans repository.MealPlanRepository
	meals     repository.MealRepository
	protocols repository.ProtocolRepository
	appts     repository.AppointmentRepository
	chat      repository.ChatRepository
	tokens    repository.DeviceTokenRepository
	files     storage.FileStorage
	log       *zap.Logger
}

// NewClientService creates a new instance of clientService.
func NewClientService(
	clients repository.ClientRepository,
	profiles repository.ProfileRepository,
	workouts repository.WorkoutRepository,
	exercises repository.WorkoutExerciseRepository,
	mealPlans repository.MealPlanRepository,
	meals repository.MealRepository,
	protocols repository.ProtocolRepository,
	appts repository.AppointmentRepository,
	chat repository.ChatRepository,
	tokens repository.DeviceTokenRepository,
	files storage.FileStorage,
	log *zap.Logger,
) ClientService {
	if log == nil {
		log = zap.NewNop()
	}
	return &clientService{
		clients:   clients,
		profiles:  profiles,
		workouts:  workouts,
		exercises: exercises,
		mealPlans: mealPlans,
		meals:     meals,
		protocols: protocols,
		appts:     appts,
		chat:      chat,
		tokens:    tokens,
		files:     files,
		log:       log.Named("client"),
	}
}

// myClient resolves the auth user to their client record.
func (s *clientService) myClient(ctx context.Context, userID primitive.ObjectID) (*domain.Client, error) {
	client, _, err := s.clients.GetByUserIDWithTenant(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoClientRecord
		}
		return nil, err
	}
	return client, nil
}

func (s *clientService) GetMyProfile(ctx context.Context, userID primitive.ObjectID) (*domain.Client, error) {
	return s.myClient(ctx, userID)
}

func (s *clientService) GetMyCoach(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if client.AssignedCoachID == nil {
		return nil, ErrNoCoach
	}
	return s.profiles.GetByID(ctx, *client.AssignedCoachID)
}

func (s *clientService) GetMyWorkouts(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Workout, error) {
	if !to.After(from) {
		return nil, ErrInvalidTimeRange
	}
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.workouts.InstancesByClient(ctx, client.ID, from, to)
}

// GetWorkoutExercises returns the children of one of the caller's workout
// instances. The ownership check keeps one client out of another's data.
func (s *clientService) GetWorkoutExercises(ctx context.Context, userID, workoutID primitive.ObjectID) ([]domain.WorkoutExercise, error) {
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	workout, err := s.workouts.GetByID(ctx, workoutID)
	if err != nil {
		return nil, err
	}
	if workout.ClientID == nil || *workout.ClientID != client.ID {
		return nil, repository.ErrNotFound
	}
	return s.exercises.GetByWorkoutID(ctx, workoutID)
}

func (s *clientService) GetMyMealPlans(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.MealPlan, error) {
	if !to.After(from) {
		return nil, ErrInvalidTimeRange
	}
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.mealPlans.InstancesByClient(ctx, client.ID, from, to)
}

func (s *clientService) GetMealPlanMeals(ctx context.Context, userID, mealPlanID primitive.ObjectID) ([]domain.Meal, error) {
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.mealPlans.GetByID(ctx, mealPlanID)
	if err != nil {
		return nil, err
	}
	if plan.ClientID == nil || *plan.ClientID != client.ID {
		return nil, repository.ErrNotFound
	}
	return s.meals.GetByMealPlanID(ctx, mealPlanID)
}

func (s *clientService) GetMyProtocols(ctx context.Context, userID primitive.ObjectID) ([]domain.HormonalProtocol, error) {
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.protocols.GetByClientID(ctx, client.ID)
}

func (s *clientService) GetMyAppointments(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]domain.Appointment, error) {
	if !to.After(from) {
		return nil, ErrInvalidTimeRange
	}
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.appts.ListByClient(ctx, client.ID, from, to)
}

func (s *clientService) GetChatHistory(ctx context.Context, userID primitive.ObjectID, before time.Time, limit int64) ([]domain.ChatMessage, error) {
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	if before.IsZero() {
		before = time.Now()
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.chat.ListByClient(ctx, client.ID, before, limit)
}

func (s *clientService) SendMessage(ctx context.Context, userID primitive.ObjectID, body string) (*domain.ChatMessage, error) {
	if body == "" {
		return nil, errors.New("message body cannot be empty")
	}
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}

	msg := &domain.ChatMessage{
		TenantID:   client.TenantID,
		ClientID:   client.ID,
		SenderID:   userID,
		SenderRole: domain.RoleClient,
		Body:       body,
		SentAt:     time.Now(),
	}
	id, err := s.chat.Append(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}

// RequestAvatarUpload hands out a presigned PUT the app uploads through;
// the record is only updated once ConfirmAvatarUpload is called.
func (s *clientService) RequestAvatarUpload(ctx context.Context, userID primitive.ObjectID, contentType string) (*UploadTicket, error) {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := storage.AvatarKey(client.TenantID.Hex(), client.ID.Hex())
	url, err := s.files.GeneratePresignedUploadURL(ctx, key, contentType, storage.DefaultPresignedURLExpiry)
	if err != nil {
		return nil, err
	}
	return &UploadTicket{UploadURL: url, ObjectKey: key}, nil
}

// ConfirmAvatarUpload records the uploaded object on the client and returns
// a presigned download URL for immediate display.
func (s *clientService) ConfirmAvatarUpload(ctx context.Context, userID primitive.ObjectID, objectKey string) (string, error) {
	if objectKey == "" {
		return "", errors.New("object key cannot be empty")
	}
	client, err := s.myClient(ctx, userID)
	if err != nil {
		return "", err
	}
	if err := s.clients.SetAvatarURL(ctx, client.ID, objectKey); err != nil {
		return "", err
	}
	return s.files.GeneratePresignedDownloadURL(ctx, objectKey, storage.DefaultPresignedURLExpiry)
}

func (s *clientService) RegisterDeviceToken(ctx context.Context, userID primitive.ObjectID, token string) error {
	if token == "" {
		return errors.New("device token cannot be empty")
	}
	return s.tokens.Upsert(ctx, userID, token)
}
