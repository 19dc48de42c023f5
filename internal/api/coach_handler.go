package api

import (
	"fmt"
	"net/http"
	"time"

	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CoachHandler exposes the coach-facing surface: roster, template library,
// assignment, protocols, appointments, and chat.
type CoachHandler struct {
	coachService service.CoachService
}

// NewCoachHandler creates a new CoachHandler.
func NewCoachHandler(coachService service.CoachService) *CoachHandler {
	return &CoachHandler{coachService: coachService}
}

// coachProfile resolves the authenticated user to their coach profile.
func (h *CoachHandler) coachProfile(c *gin.Context) (*domain.Profile, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return nil, false
	}
	profile, err := h.coachService.GetMyProfile(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return nil, false
	}
	return profile, true
}

func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name))
		return primitive.NilObjectID, false
	}
	return id, true
}

// --- Roster ---

type AddClientRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *CoachHandler) AddClientByEmail(c *gin.Context) {
	var req AddClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	client, err := h.coachService.AddClientByEmail(c.Request.Context(), profile.TenantID, profile.ID, req.Email)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *CoachHandler) GetManagedClients(c *gin.Context) {
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	clients, err := h.coachService.GetManagedClients(c.Request.Context(), profile.TenantID, profile.ID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, clients)
}

// --- Workout templates ---

type ExerciseInput struct {
	Name       string          `json:"name" binding:"required"`
	Day        *domain.Weekday `json:"day,omitempty"`
	OrderIndex int             `json:"orderIndex"`
	Sets       int             `json:"sets,omitempty"`
	Reps       string          `json:"reps,omitempty"`
	Weight     string          `json:"weight,omitempty"`
	RestSecs   int             `json:"restSecs,omitempty"`
	MediaURL   string          `json:"mediaUrl,omitempty"`
}

type WorkoutTemplateRequest struct {
	Name      string          `json:"name" binding:"required"`
	Notes     string          `json:"notes,omitempty"`
	Exercises []ExerciseInput `json:"exercises,omitempty"`
}

func (h *CoachHandler) CreateWorkoutTemplate(c *gin.Context) {
	var req WorkoutTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}

	template := &domain.Workout{
		TenantID: profile.TenantID,
		CoachID:  profile.ID,
		Name:     req.Name,
		Notes:    req.Notes,
	}
	children := make([]domain.WorkoutExercise, 0, len(req.Exercises))
	for _, e := range req.Exercises {
		children = append(children, domain.WorkoutExercise{
			Name:       e.Name,
			Day:        e.Day,
			OrderIndex: e.OrderIndex,
			Sets:       e.Sets,
			Reps:       e.Reps,
			Weight:     e.Weight,
			RestSecs:   e.RestSecs,
			MediaURL:   e.MediaURL,
		})
	}

	created, err := h.coachService.CreateWorkoutTemplate(c.Request.Context(), template, children)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *CoachHandler) GetWorkoutTemplates(c *gin.Context) {
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	templates, err := h.coachService.GetWorkoutTemplates(c.Request.Context(), profile.TenantID, profile.ID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *CoachHandler) GetWorkoutTemplate(c *gin.Context) {
	templateID, ok := pathID(c, "templateId")
	if !ok {
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	template, children, err := h.coachService.GetWorkoutTemplate(c.Request.Context(), profile.ID, templateID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": template, "exercises": children})
}

func (h *CoachHandler) DeleteWorkoutTemplate(c *gin.Context) {
	templateID, ok := pathID(c, "templateId")
	if !ok {
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	if err := h.coachService.DeleteWorkoutTemplate(c.Request.Context(), profile.ID, templateID); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignWorkoutTemplate expands the template into dated instances for the
// client named in the path.
func (h *CoachHandler) AssignWorkoutTemplate(c *gin.Context) {
	templateID, ok := pathID(c, "templateId")
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	instances, err := h.coachService.AssignWorkoutTemplate(c.Request.Context(), profile.ID, templateID, clientID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"instances": instances})
}

// --- Meal plan templates ---

type MealInput struct {
	Name       string          `json:"name" binding:"required"`
	Day        *domain.Weekday `json:"day,omitempty"`
	OrderIndex int             `json:"orderIndex"`
	Time       string          `json:"time,omitempty"`
	Foods      []domain.Food   `json:"foods,omitempty"`
}

type MealPlanTemplateRequest struct {
	Name  string      `json:"name" binding:"required"`
	Notes string      `json:"notes,omitempty"`
	Meals []MealInput `json:"meals,omitempty"`
}

func (h *CoachHandler) CreateMealPlanTemplate(c *gin.Context) {
	var req MealPlanTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}

	template := &domain.MealPlan{
		TenantID: profile.TenantID,
		CoachID:  profile.ID,
		Name:     req.Name,
		Notes:    req.Notes,
	}
	children := make([]domain.Meal, 0, len(req.Meals))
	for _, m := range req.Meals {
		children = append(children, domain.Meal{
			Name:       m.Name,
			Day:        m.Day,
			OrderIndex: m.OrderIndex,
			Time:       m.Time,
			Foods:      m.Foods,
		})
	}

	created, err := h.coachService.CreateMealPlanTemplate(c.Request.Context(), template, children)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *CoachHandler) GetMealPlanTemplates(c *gin.Context) {
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	templates, err := h.coachService.GetMealPlanTemplates(c.Request.Context(), profile.TenantID, profile.ID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *CoachHandler) GetMealPlanTemplate(c *gin.Context) {
	templateID, ok := pathID(c, "templateId")
	if !ok {
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	template, children, err := h.coachService.GetMealPlanTemplate(c.Request.Context(), profile.ID, templateID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": template, "meals": children})
}

func (h *CoachHandler) DeleteMealPlanTemplate(c *gin.Context) {
	templateID, ok := pathID(c, "templateId")
	if !ok {
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	if err := h.coachService.DeleteMealPlanTemplate(c.Request.Context(), profile.ID, templateID); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CoachHandler) AssignMealPlanTemplate(c *gin.Context) {
	templateID, ok := pathID(c, "templateId")
	if !ok {
		return
	}
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	instances, err := h.coachService.AssignMealPlanTemplate(c.Request.Context(), profile.ID, templateID, clientID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"instances": instances})
}

// --- Protocols ---

type CompoundInput struct {
	Name       string `json:"name" binding:"required"`
	Dosage     string `json:"dosage,omitempty"`
	Frequency  string `json:"frequency,omitempty"`
	OrderIndex int    `json:"orderIndex"`
}

type ProtocolRequest struct {
	Name      string          `json:"name" binding:"required"`
	Notes     string          `json:"notes,omitempty"`
	StartDate *time.Time      `json:"startDate,omitempty"`
	EndDate   *time.Time      `json:"endDate,omitempty"`
	Compounds []CompoundInput `json:"compounds,omitempty"`
}

func (h *CoachHandler) CreateProtocol(c *gin.Context) {
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	var req ProtocolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}

	protocol := &domain.HormonalProtocol{
		TenantID:  profile.TenantID,
		CoachID:   profile.ID,
		ClientID:  clientID,
		Name:      req.Name,
		Notes:     req.Notes,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	compounds := make([]domain.HormonalCompound, 0, len(req.Compounds))
	for _, comp := range req.Compounds {
		compounds = append(compounds, domain.HormonalCompound{
			Name:       comp.Name,
			Dosage:     comp.Dosage,
			Frequency:  comp.Frequency,
			OrderIndex: comp.OrderIndex,
		})
	}

	created, err := h.coachService.CreateProtocol(c.Request.Context(), protocol, compounds)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *CoachHandler) GetClientProtocols(c *gin.Context) {
	clientID, ok := pathID(c, "clientId")
	if !ok {
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	protocols, err := h.coachService.GetClientProtocols(c.Request.Context(), profile.ID, clientID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocols)
}

// --- Appointments ---

type AppointmentRequest struct {
	ClientID string    `json:"clientId" binding:"required"`
	Title    string    `json:"title" binding:"required"`
	Notes    string    `json:"notes,omitempty"`
	StartsAt time.Time `json:"startsAt" binding:"required"`
	EndsAt   time.Time `json:"endsAt" binding:"required"`
}

func (h *CoachHandler) ScheduleAppointment(c *gin.Context) {
	var req AppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId")
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}

	appt := &domain.Appointment{
		TenantID: profile.TenantID,
		CoachID:  profile.ID,
		ClientID: clientID,
		Title:    req.Title,
		Notes:    req.Notes,
		StartsAt: req.StartsAt,
		EndsAt:   req.EndsAt,
	}
	created, err := h.coachService.ScheduleAppointment(c.Request.Context(), appt)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *CoachHandler) GetAppointments(c *gin.Context) {
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}
	appts, err := h.coachService.GetCoachAppointments(c.Request.Context(), profile.ID, from, to)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

// --- Chat ---

type SendMessageRequest struct {
	ClientID string `json:"clientId" binding:"required"`
	Body     string `json:"body" binding:"required"`
}

func (h *CoachHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	clientID, err := primitive.ObjectIDFromHex(req.ClientID)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid clientId")
		return
	}
	profile, ok := h.coachProfile(c)
	if !ok {
		return
	}

	msg := &domain.ChatMessage{
		ClientID: clientID,
		SenderID: profile.UserID,
	}
	msg.Body = req.Body
	sent, err := h.coachService.SendMessage(c.Request.Context(), profile.ID, msg)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sent)
}

// dateRange reads from/to query params, defaulting to the next 30 days.
func dateRange(c *gin.Context) (time.Time, time.Time, bool) {
	now := time.Now()
	from, to := now.AddDate(0, 0, -7), now.AddDate(0, 0, 30)
	var err error
	if raw := c.Query("from"); raw != "" {
		if from, err = time.Parse(time.RFC3339, raw); err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid from date")
			return time.Time{}, time.Time{}, false
		}
	}
	if raw := c.Query("to"); raw != "" {
		if to, err = time.Parse(time.RFC3339, raw); err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid to date")
			return time.Time{}, time.Time{}, false
		}
	}
	return from, to, true
}
