package api

import (
	"fmt"
	"net/http"
	"time"

	"coachfit/platform/internal/service"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClientHandler exposes the athlete-facing read surface plus chat, avatar
// upload, and device registration.
type ClientHandler struct {
	clientService service.ClientService
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(clientService service.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

func (h *ClientHandler) userID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
		return primitive.NilObjectID, false
	}
	return userID, true
}

func (h *ClientHandler) GetMyProfile(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	client, err := h.clientService.GetMyProfile(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

func (h *ClientHandler) GetMyCoach(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	coach, err := h.clientService.GetMyCoach(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, coach)
}

func (h *ClientHandler) GetMyWorkouts(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	workouts, err := h.clientService.GetMyWorkouts(c.Request.Context(), userID, from, to)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, workouts)
}

func (h *ClientHandler) GetWorkoutExercises(c *gin.Context) {
	workoutID, ok := pathID(c, "workoutId")
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	exercises, err := h.clientService.GetWorkoutExercises(c.Request.Context(), userID, workoutID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, exercises)
}

func (h *ClientHandler) GetMyMealPlans(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	plans, err := h.clientService.GetMyMealPlans(c.Request.Context(), userID, from, to)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *ClientHandler) GetMealPlanMeals(c *gin.Context) {
	planID, ok := pathID(c, "mealPlanId")
	if !ok {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	meals, err := h.clientService.GetMealPlanMeals(c.Request.Context(), userID, planID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, meals)
}

func (h *ClientHandler) GetMyProtocols(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	protocols, err := h.clientService.GetMyProtocols(c.Request.Context(), userID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, protocols)
}

func (h *ClientHandler) GetMyAppointments(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	from, to, ok := dateRange(c)
	if !ok {
		return
	}
	appts, err := h.clientService.GetMyAppointments(c.Request.Context(), userID, from, to)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, appts)
}

// --- Chat ---

func (h *ClientHandler) GetChatHistory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	before := time.Now()
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, "Invalid before date")
			return
		}
		before = parsed
	}
	messages, err := h.clientService.GetChatHistory(c.Request.Context(), userID, before, 50)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

type ClientMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *ClientHandler) SendMessage(c *gin.Context) {
	var req ClientMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	msg, err := h.clientService.SendMessage(c.Request.Context(), userID, req.Body)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// --- Avatar upload ---

type AvatarUploadRequest struct {
	ContentType string `json:"contentType,omitempty"`
}

func (h *ClientHandler) RequestAvatarUpload(c *gin.Context) {
	var req AvatarUploadRequest
	_ = c.ShouldBindJSON(&req) // body is optional
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	ticket, err := h.clientService.RequestAvatarUpload(c.Request.Context(), userID, req.ContentType)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

type AvatarConfirmRequest struct {
	ObjectKey string `json:"objectKey" binding:"required"`
}

func (h *ClientHandler) ConfirmAvatarUpload(c *gin.Context) {
	var req AvatarConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	url, err := h.clientService.ConfirmAvatarUpload(c.Request.Context(), userID, req.ObjectKey)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"avatarUrl": url})
}

// --- Device tokens ---

type DeviceTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *ClientHandler) RegisterDeviceToken(c *gin.Context) {
	var req DeviceTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Validation error: %v", err))
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	if err := h.clientService.RegisterDeviceToken(c.Request.Context(), userID, req.Token); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
