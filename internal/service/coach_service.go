package service

import (
	"context"
	"errors"
	"time"

	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrProfileNotFound   = errors.New("coach profile not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrNotTemplateOwner  = errors.New("template does not belong to this coach")
	ErrNotManagedClient  = errors.New("client is not managed by this coach")
	ErrNotATemplate      = errors.New("record is a client instance, not a template")
	ErrAlreadyAssigned   = errors.New("client already assigned to a coach")
	ErrProtocolNotFound  = errors.New("protocol not found")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrMissingDaySession = errors.New("a child references an unknown weekday")
)

// CoachService covers everything a coach does inside their tenant: roster
// management, template authoring, assignment, protocols, and appointments.
// All coach ids are Profile ids, not auth user ids.
type CoachService interface {
	// GetMyProfile resolves the auth user to their coach profile.
	GetMyProfile(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error)

	// Roster
	GetManagedClients(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.Client, error)
	AddClientByEmail(ctx context.Context, tenantID, coachID primitive.ObjectID, email string) (*domain.Client, error)

	// Workout templates
	CreateWorkoutTemplate(ctx context.Context, template *domain.Workout, children []domain.WorkoutExercise) (*domain.Workout, error)
	GetWorkoutTemplates(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.Workout, error)
	GetWorkoutTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) (*domain.Workout, []domain.WorkoutExercise, error)
	UpdateWorkoutTemplate(ctx context.Context, coachID primitive.ObjectID, template *domain.Workout, children []domain.WorkoutExercise) error
	DeleteWorkoutTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) error
	AssignWorkoutTemplate(ctx context.Context, coachID, templateID, clientID primitive.ObjectID) ([]domain.Workout, error)

	// Meal plan templates
	CreateMealPlanTemplate(ctx context.Context, template *domain.MealPlan, children []domain.Meal) (*domain.MealPlan, error)
	GetMealPlanTemplates(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.MealPlan, error)
	GetMealPlanTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) (*domain.MealPlan, []domain.Meal, error)
	DeleteMealPlanTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) error
	AssignMealPlanTemplate(ctx context.Context, coachID, templateID, clientID primitive.ObjectID) ([]domain.MealPlan, error)

	// Protocols
	CreateProtocol(ctx context.Context, protocol *domain.HormonalProtocol, compounds []domain.HormonalCompound) (*domain.HormonalProtocol, error)
	GetClientProtocols(ctx context.Context, coachID, clientID primitive.ObjectID) ([]domain.HormonalProtocol, error)

	// Appointments
	ScheduleAppointment(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error)
	GetCoachAppointments(ctx context.Context, coachID primitive.ObjectID, from, to time.Time) ([]domain.Appointment, error)

	// Chat
	SendMessage(ctx context.Context, coachID primitive.ObjectID, msg *domain.ChatMessage) (*domain.ChatMessage, error)
}

type coachService struct {
	profiles  repository.ProfileRepository
	clients   repository.ClientRepository
	workouts  repository.WorkoutRepository
	exercises repository.WorkoutExerciseRepository
	mealPlans repository.MealPlanRepository
	meals     repository.MealRepository
	protocols repository.ProtocolRepository
	appts     repository.AppointmentRepository
	chat      repository.ChatRepository
	expander  *TemplateExpander
	log       *zap.Logger
}

// NewCoachService creates a new instance of coachService.
func NewCoachService(
	profiles repository.ProfileRepository,
	clients repository.ClientRepository,
	workouts repository.WorkoutRepository,
	exercises repository.WorkoutExerciseRepository,
	mealPlans repository.MealPlanRepository,
	meals repository.MealRepository,
	protocols repository.ProtocolRepository,
	appts repository.AppointmentRepository,
	chat repository.ChatRepository,
	expander *TemplateExpander,
	log *zap.Logger,
) CoachService {
	if log == nil {
		log = zap.NewNop()
	}
	return &coachService{
		profiles:  profiles,
		clients:   clients,
		workouts:  workouts,
		exercises: exercises,
		mealPlans: mealPlans,
		meals:     meals,
		protocols: protocols,
		appts:     appts,
		chat:      chat,
		expander:  expander,
		log:       log.Named("coach"),
	}
}

func (s *coachService) GetMyProfile(ctx context.Context, userID primitive.ObjectID) (*domain.Profile, error) {
	profile, err := s.profiles.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	return profile, nil
}

// --- Roster ---

func (s *coachService) GetManagedClients(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.Client, error) {
	return s.clients.GetByCoachID(ctx, tenantID, coachID)
}

// AddClientByEmail attaches an existing, unassigned client in the tenant to
// this coach. Re-adding an already-managed client is a no-op.
func (s *coachService) AddClientByEmail(ctx context.Context, tenantID, coachID primitive.ObjectID, email string) (*domain.Client, error) {
	client, err := s.clients.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if client.AssignedCoachID != nil {
		if *client.AssignedCoachID == coachID {
			return client, nil
		}
		return nil, ErrAlreadyAssigned
	}
	if err := s.clients.SetAssignedCoach(ctx, client.ID, coachID); err != nil {
		return nil, err
	}
	client.AssignedCoachID = &coachID
	return client, nil
}

// managedClient loads the client and verifies the coach manages it.
func (s *coachService) managedClient(ctx context.Context, coachID, clientID primitive.ObjectID) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if client.AssignedCoachID == nil || *client.AssignedCoachID != coachID {
		return nil, ErrNotManagedClient
	}
	return client, nil
}

// --- Workout templates ---

func (s *coachService) CreateWorkoutTemplate(ctx context.Context, template *domain.Workout, children []domain.WorkoutExercise) (*domain.Workout, error) {
	if template.Name == "" {
		return nil, errors.New("template name cannot be empty")
	}
	template.ClientID = nil // templates are never client-owned
	template.Date = nil
	for i := range children {
		if children[i].Day != nil && !children[i].Day.Valid() {
			return nil, ErrMissingDaySession
		}
	}

	id, err := s.workouts.Create(ctx, template)
	if err != nil {
		return nil, err
	}
	template.ID = id

	if len(children) > 0 {
		for i := range children {
			children[i].WorkoutID = id
		}
		if _, err := s.exercises.CreateMany(ctx, children); err != nil {
			return nil, err
		}
	}
	return template, nil
}

func (s *coachService) GetWorkoutTemplates(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.Workout, error) {
	return s.workouts.TemplatesByCoach(ctx, tenantID, coachID)
}

// ownedWorkoutTemplate fetches the template and checks ownership. Instances
// are rejected: only templates can be read or assigned through this path.
func (s *coachService) ownedWorkoutTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) (*domain.Workout, error) {
	template, err := s.workouts.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	if template.CoachID != coachID {
		return nil, ErrNotTemplateOwner
	}
	if !template.IsTemplate() {
		return nil, ErrNotATemplate
	}
	return template, nil
}

func (s *coachService) GetWorkoutTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) (*domain.Workout, []domain.WorkoutExercise, error) {
	template, err := s.ownedWorkoutTemplate(ctx, coachID, templateID)
	if err != nil {
		return nil, nil, err
	}
	children, err := s.exercises.GetByWorkoutID(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	return template, children, nil
}

// UpdateWorkoutTemplate replaces the template and its full child set.
// Instances already expanded from it are untouched.
func (s *coachService) UpdateWorkoutTemplate(ctx context.Context, coachID primitive.ObjectID, template *domain.Workout, children []domain.WorkoutExercise) error {
	existing, err := s.ownedWorkoutTemplate(ctx, coachID, template.ID)
	if err != nil {
		return err
	}
	template.TenantID = existing.TenantID
	template.CoachID = existing.CoachID
	template.ClientID = nil
	template.Date = nil

	if err := s.workouts.Update(ctx, template); err != nil {
		return err
	}
	if err := s.exercises.DeleteByWorkoutID(ctx, template.ID); err != nil {
		return err
	}
	if len(children) > 0 {
		for i := range children {
			children[i].WorkoutID = template.ID
		}
		if _, err := s.exercises.CreateMany(ctx, children); err != nil {
			return err
		}
	}
	return nil
}

func (s *coachService) DeleteWorkoutTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) error {
	if _, err := s.ownedWorkoutTemplate(ctx, coachID, templateID); err != nil {
		return err
	}
	if err := s.exercises.DeleteByWorkoutID(ctx, templateID); err != nil {
		return err
	}
	return s.workouts.Delete(ctx, templateID, coachID)
}

// AssignWorkoutTemplate expands the template into dated instances owned by
// the client. Ownership of both template and client is checked first.
func (s *coachService) AssignWorkoutTemplate(ctx context.Context, coachID, templateID, clientID primitive.ObjectID) ([]domain.Workout, error) {
	template, err := s.ownedWorkoutTemplate(ctx, coachID, templateID)
	if err != nil {
		return nil, err
	}
	if _, err := s.managedClient(ctx, coachID, clientID); err != nil {
		return nil, err
	}
	children, err := s.exercises.GetByWorkoutID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return s.expander.ExpandWorkout(ctx, template, children, clientID, time.Now())
}

// --- Meal plan templates ---

func (s *coachService) CreateMealPlanTemplate(ctx context.Context, template *domain.MealPlan, children []domain.Meal) (*domain.MealPlan, error) {
	if template.Name == "" {
		return nil, errors.New("template name cannot be empty")
	}
	template.ClientID = nil
	template.Date = nil
	for i := range children {
		if children[i].Day != nil && !children[i].Day.Valid() {
			return nil, ErrMissingDaySession
		}
	}

	id, err := s.mealPlans.Create(ctx, template)
	if err != nil {
		return nil, err
	}
	template.ID = id

	if len(children) > 0 {
		for i := range children {
			children[i].MealPlanID = id
		}
		if _, err := s.meals.CreateMany(ctx, children); err != nil {
			return nil, err
		}
	}
	return template, nil
}

func (s *coachService) GetMealPlanTemplates(ctx context.Context, tenantID, coachID primitive.ObjectID) ([]domain.MealPlan, error) {
	return s.mealPlans.TemplatesByCoach(ctx, tenantID, coachID)
}

func (s *coachService) ownedMealPlanTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) (*domain.MealPlan, error) {
	template, err := s.mealPlans.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}
	if template.CoachID != coachID {
		return nil, ErrNotTemplateOwner
	}
	if !template.IsTemplate() {
		return nil, ErrNotATemplate
	}
	return template, nil
}

func (s *coachService) GetMealPlanTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) (*domain.MealPlan, []domain.Meal, error) {
	template, err := s.ownedMealPlanTemplate(ctx, coachID, templateID)
	if err != nil {
		return nil, nil, err
	}
	children, err := s.meals.GetByMealPlanID(ctx, templateID)
	if err != nil {
		return nil, nil, err
	}
	return template, children, nil
}

func (s *coachService) DeleteMealPlanTemplate(ctx context.Context, coachID, templateID primitive.ObjectID) error {
	if _, err := s.ownedMealPlanTemplate(ctx, coachID, templateID); err != nil {
		return err
	}
	if err := s.meals.DeleteByMealPlanID(ctx, templateID); err != nil {
		return err
	}
	return s.mealPlans.Delete(ctx, templateID, coachID)
}

func (s *coachService) AssignMealPlanTemplate(ctx context.Context, coachID, templateID, clientID primitive.ObjectID) ([]domain.MealPlan, error) {
	template, err := s.ownedMealPlanTemplate(ctx, coachID, templateID)
	if err != nil {
		return nil, err
	}
	if _, err := s.managedClient(ctx, coachID, clientID); err != nil {
		return nil, err
	}
	children, err := s.meals.GetByMealPlanID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	return s.expander.ExpandMealPlan(ctx, template, children, clientID, time.Now())
}

// --- Protocols ---

func (s *coachService) CreateProtocol(ctx context.Context, protocol *domain.HormonalProtocol, compounds []domain.HormonalCompound) (*domain.HormonalProtocol, error) {
	if protocol.Name == "" {
		return nil, errors.New("protocol name cannot be empty")
	}
	if _, err := s.managedClient(ctx, protocol.CoachID, protocol.ClientID); err != nil {
		return nil, err
	}

	id, err := s.protocols.Create(ctx, protocol)
	if err != nil {
		return nil, err
	}
	protocol.ID = id

	if len(compounds) > 0 {
		for i := range compounds {
			compounds[i].ProtocolID = id
		}
		if _, err := s.protocols.CreateCompounds(ctx, compounds); err != nil {
			return nil, err
		}
	}
	return protocol, nil
}

func (s *coachService) GetClientProtocols(ctx context.Context, coachID, clientID primitive.ObjectID) ([]domain.HormonalProtocol, error) {
	if _, err := s.managedClient(ctx, coachID, clientID); err != nil {
		return nil, err
	}
	return s.protocols.GetByClientID(ctx, clientID)
}

// --- Appointments ---

func (s *coachService) ScheduleAppointment(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error) {
	if !appt.EndsAt.After(appt.StartsAt) {
		return nil, ErrInvalidTimeRange
	}
	if _, err := s.managedClient(ctx, appt.CoachID, appt.ClientID); err != nil {
		return nil, err
	}
	appt.Status = domain.AppointmentScheduled

	id, err := s.appts.Create(ctx, appt)
	if err != nil {
		return nil, err
	}
	appt.ID = id
	return appt, nil
}

func (s *coachService) GetCoachAppointments(ctx context.Context, coachID primitive.ObjectID, from, to time.Time) ([]domain.Appointment, error) {
	if !to.After(from) {
		return nil, ErrInvalidTimeRange
	}
	return s.appts.ListByCoach(ctx, coachID, from, to)
}

// --- Chat ---

func (s *coachService) SendMessage(ctx context.Context, coachID primitive.ObjectID, msg *domain.ChatMessage) (*domain.ChatMessage, error) {
	if msg.Body == "" {
		return nil, errors.New("message body cannot be empty")
	}
	client, err := s.managedClient(ctx, coachID, msg.ClientID)
	if err != nil {
		return nil, err
	}
	msg.TenantID = client.TenantID
	msg.SenderRole = domain.RoleCoach
	msg.SentAt = time.Now()

	id, err := s.chat.Append(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = id
	return msg, nil
}
