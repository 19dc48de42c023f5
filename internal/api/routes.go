package api

import (
	"net/http"

	"coachfit/platform/internal/billing"
	"coachfit/platform/internal/domain"
	"coachfit/platform/internal/repository"
	"coachfit/platform/internal/service"
	syncengine "coachfit/platform/internal/sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes wires every handler into the router.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	webhookKey string,
	authService service.AuthService,
	coachService service.CoachService,
	clientService service.ClientService,
	billingService *billing.Service,
	engine *syncengine.Engine,
	tenantRepo repository.TenantRepository,
) {
	authHandler := NewAuthHandler(authService)
	coachHandler := NewCoachHandler(coachService)
	clientHandler := NewClientHandler(clientService)
	billingHandler := NewBillingHandler(billingService, tenantRepo, webhookKey)
	syncHandler := NewSyncHandler(engine)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}

		// Gateway webhook authenticates with a shared key, not a JWT.
		apiV1.POST("/billing/webhook", billingHandler.GatewayWebhook)
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			role, _ := c.Get(ContextUserRoleKey)
			tenant, _ := c.Get(ContextTenantIDKey)
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex(), "role": role, "tenantId": tenant})
		})

		// --- Coach Routes ---
		coachGroup := protected.Group("/coach")
		coachGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			coachGroup.GET("/clients", coachHandler.GetManagedClients)
			coachGroup.POST("/clients", coachHandler.AddClientByEmail)

			coachGroup.POST("/workout-templates", coachHandler.CreateWorkoutTemplate)
			coachGroup.GET("/workout-templates", coachHandler.GetWorkoutTemplates)
			coachGroup.GET("/workout-templates/:templateId", coachHandler.GetWorkoutTemplate)
			coachGroup.DELETE("/workout-templates/:templateId", coachHandler.DeleteWorkoutTemplate)
			coachGroup.POST("/workout-templates/:templateId/assign/:clientId", coachHandler.AssignWorkoutTemplate)

			coachGroup.POST("/meal-plan-templates", coachHandler.CreateMealPlanTemplate)
			coachGroup.GET("/meal-plan-templates", coachHandler.GetMealPlanTemplates)
			coachGroup.GET("/meal-plan-templates/:templateId", coachHandler.GetMealPlanTemplate)
			coachGroup.DELETE("/meal-plan-templates/:templateId", coachHandler.DeleteMealPlanTemplate)
			coachGroup.POST("/meal-plan-templates/:templateId/assign/:clientId", coachHandler.AssignMealPlanTemplate)

			coachGroup.POST("/clients/:clientId/protocols", coachHandler.CreateProtocol)
			coachGroup.GET("/clients/:clientId/protocols", coachHandler.GetClientProtocols)

			coachGroup.POST("/appointments", coachHandler.ScheduleAppointment)
			coachGroup.GET("/appointments", coachHandler.GetAppointments)

			coachGroup.POST("/chat", coachHandler.SendMessage)
		}

		// --- Client Routes ---
		clientGroup := protected.Group("/client")
		clientGroup.Use(RoleMiddleware(domain.RoleClient))
		{
			clientGroup.GET("/me", clientHandler.GetMyProfile)
			clientGroup.GET("/coach", clientHandler.GetMyCoach)
			clientGroup.GET("/workouts", clientHandler.GetMyWorkouts)
			clientGroup.GET("/workouts/:workoutId/exercises", clientHandler.GetWorkoutExercises)
			clientGroup.GET("/meal-plans", clientHandler.GetMyMealPlans)
			clientGroup.GET("/meal-plans/:mealPlanId/meals", clientHandler.GetMealPlanMeals)
			clientGroup.GET("/protocols", clientHandler.GetMyProtocols)
			clientGroup.GET("/appointments", clientHandler.GetMyAppointments)

			clientGroup.GET("/chat", clientHandler.GetChatHistory)
			clientGroup.POST("/chat", clientHandler.SendMessage)

			clientGroup.POST("/sync/resolve", syncHandler.ResolveSession)
			clientGroup.GET("/sync/snapshot", syncHandler.CurrentSnapshot)

			clientGroup.POST("/avatar/upload-url", clientHandler.RequestAvatarUpload)
			clientGroup.POST("/avatar/confirm", clientHandler.ConfirmAvatarUpload)
			clientGroup.POST("/device-token", clientHandler.RegisterDeviceToken)
		}

		// --- Billing Routes (coach-only; billing is tenant-level) ---
		billingGroup := protected.Group("/billing")
		billingGroup.Use(RoleMiddleware(domain.RoleCoach))
		{
			billingGroup.GET("/status", billingHandler.GetStatus)
			billingGroup.POST("/start", billingHandler.StartPayment)
			billingGroup.GET("/pix", billingHandler.GetPixPayload)
			billingGroup.POST("/reset", billingHandler.ResetPending)
		}
	}
}
