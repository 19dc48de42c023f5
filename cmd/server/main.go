package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coachfit/platform/internal/api"
	"coachfit/platform/internal/billing"
	"coachfit/platform/internal/cache"
	"coachfit/platform/internal/config"
	"coachfit/platform/internal/gateway"
	"coachfit/platform/internal/identity"
	"coachfit/platform/internal/logging"
	"coachfit/platform/internal/metrics"
	"coachfit/platform/internal/realtime"
	"coachfit/platform/internal/repository/mongo"
	"coachfit/platform/internal/service"
	"coachfit/platform/internal/storage"
	syncengine "coachfit/platform/internal/sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		panic("could not load config: " + err.Error())
	}

	// --- Logging ---
	log, err := logging.Init(cfg.Log)
	if err != nil {
		panic("could not initialize logger: " + err.Error())
	}
	defer log.Sync() //nolint:errcheck
	log.Info("starting coachfit server")

	// --- Metrics ---
	metrics.Register(nil)

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		log.Fatal("could not connect to MongoDB", zap.Error(err))
	}
	defer func() {
		if err := mongo.DisconnectDB(dbClient); err != nil {
			log.Error("failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	log.Info("database connection established", zap.String("db", cfg.Database.Name))

	// --- Ensure Indexes ---
	go func() { // Run index creation concurrently/in background
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureTenantIndexes(ctx, appDB.Collection("tenants"))
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsureProfileIndexes(ctx, appDB.Collection("profiles"))
		mongo.EnsureClientIndexes(ctx, appDB.Collection("clients"))
		mongo.EnsureWorkoutIndexes(ctx, appDB.Collection("workouts"))
		mongo.EnsureWorkoutExerciseIndexes(ctx, appDB.Collection("workout_exercises"))
		mongo.EnsureMealPlanIndexes(ctx, appDB.Collection("meal_plans"))
		mongo.EnsureMealIndexes(ctx, appDB.Collection("meals"))
		mongo.EnsureProtocolIndexes(ctx, appDB.Collection("hormonal_protocols"), appDB.Collection("hormonal_compounds"))
		mongo.EnsureAppointmentIndexes(ctx, appDB.Collection("appointments"))
		mongo.EnsureChatIndexes(ctx, appDB.Collection("chat_messages"))
		mongo.EnsureSubscriptionIndexes(ctx, appDB.Collection("subscriptions"))
		mongo.EnsureDeviceTokenIndexes(ctx, appDB.Collection("device_tokens"))
		log.Info("index creation completed")
	}()

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(cfg.S3, log)
	if err != nil {
		log.Fatal("failed to initialize S3 storage", zap.Error(err))
	}

	// --- Initialize Repositories ---
	tenantRepo := mongo.NewMongoTenantRepository(appDB)
	userRepo := mongo.NewMongoUserRepository(appDB)
	profileRepo := mongo.NewMongoProfileRepository(appDB)
	clientRepo := mongo.NewMongoClientRepository(appDB)
	workoutRepo := mongo.NewMongoWorkoutRepository(appDB)
	exerciseRepo := mongo.NewMongoWorkoutExerciseRepository(appDB)
	mealPlanRepo := mongo.NewMongoMealPlanRepository(appDB)
	mealRepo := mongo.NewMongoMealRepository(appDB)
	protocolRepo := mongo.NewMongoProtocolRepository(appDB)
	appointmentRepo := mongo.NewMongoAppointmentRepository(appDB)
	chatRepo := mongo.NewMongoChatRepository(appDB)
	subscriptionRepo := mongo.NewMongoSubscriptionRepository(appDB)
	deviceTokenRepo := mongo.NewMongoDeviceTokenRepository(appDB)

	// --- Initialize Services ---
	authService := service.NewAuthService(userRepo, tenantRepo, profileRepo, clientRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	expander := service.NewTemplateExpander(workoutRepo, exerciseRepo, mealPlanRepo, mealRepo, log)
	coachService := service.NewCoachService(profileRepo, clientRepo, workoutRepo, exerciseRepo, mealPlanRepo, mealRepo, protocolRepo, appointmentRepo, chatRepo, expander, log)
	clientService := service.NewClientService(clientRepo, profileRepo, workoutRepo, exerciseRepo, mealPlanRepo, mealRepo, protocolRepo, appointmentRepo, chatRepo, deviceTokenRepo, fileStorage, log)

	gatewayClient := gateway.NewHTTPClient(cfg.Gateway, log)
	billingService := billing.NewService(subscriptionRepo, tenantRepo, gatewayClient, log)

	// --- Sync Engine ---
	// One process-wide engine over the change-stream transport; per-device
	// engines live in the mobile runtime, this one backs server-side
	// consumers and keeps the transport warm.
	store := cache.New(cfg.Cache.TTL, cfg.Cache.FetchTimeout, log)
	transport := realtime.NewMongoTransport(appDB, cfg.Realtime.ReconnectBackoff, cfg.Realtime.MaxReconnectBackoff, log)
	registry := realtime.NewRegistry(transport, store, realtime.DefaultRules(), log)
	resolver := identity.NewResolver(clientRepo, tenantRepo, deviceTokenRepo, cfg.Cache.FetchTimeout, log)
	engine := syncengine.NewEngine(resolver, store, registry, syncengine.Repos{
		Clients:       clientRepo,
		Profiles:      profileRepo,
		Workouts:      workoutRepo,
		MealPlans:     mealPlanRepo,
		Protocols:     protocolRepo,
		Appointments:  appointmentRepo,
		Chat:          chatRepo,
		Subscriptions: subscriptionRepo,
	}, log)
	defer engine.Close()

	// --- Initialize Gin Engine ---
	if cfg.Log.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), api.RecoveryMiddleware(log))

	api.SetupRoutes(router, cfg.JWT.Secret, cfg.Gateway.WebhookKey, authService, coachService, clientService, billingService, engine, tenantRepo)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}
	log.Info("server exiting")
}
