// File: convene/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"convene/config"
	"convene/cron"
	"convene/database"
	userRepoPkg "convene/database/repository/user"
	"convene/handlers"
	"convene/models"
	"convene/routes"
	"convene/services/availability"
	"convene/services/calendar"
	"convene/services/intent"
	"convene/services/scheduler"
	"convene/services/tasks"
	"convene/services/user"
	"convene/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// clockOffset parses an "HH:MM" business-hours boundary into an offset from
// midnight.
func clockOffset(s string, fallback time.Duration) time.Duration {
	t, err := time.Parse(models.TimeLayout, s)
	if err != nil {
		return fallback
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitStateCache()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	// repositories.
	userRepo := userRepoPkg.NewMongoUserRepo()
	if err := userRepo.EnsureIndexes(); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure user indexes: %v", err)
	}

	// services.
	userService := &user.DefaultUserService{
		Repo: userRepo,
	}

	refreshManager := calendar.NewRefreshManager(userRepo, logger)
	calendarService := calendar.NewDefaultCalendarService(
		userRepo,
		refreshManager,
		providerOrder(),
		calendar.NewGoogleAdapter(),
		calendar.NewOutlookAdapter(),
	)

	resolver := availability.NewDefaultResolver(calendarService, logger)

	classifier := intent.NewGeminiClassifier(
		intent.NewGeminiClient(config.AppConfig.GeminiAPIKey),
		logger,
	)

	stateStore := scheduler.NewRedisStateStore(
		utils.GetStateCacheClient(),
		time.Duration(config.AppConfig.StateTTLMinutes)*time.Minute,
	)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisReminderDB,
	})
	defer asynqClient.Close()

	reminderService := &tasks.ReminderService{
		Client: asynqClient,
		Lead:   time.Duration(config.AppConfig.ReminderLeadMinutes) * time.Minute,
		Logger: logger,
	}

	orchestrator := &scheduler.Orchestrator{
		Classifier: classifier,
		States:     stateStore,
		Resolver:   resolver,
		Calendar:   calendarService,
		Reminders:  reminderService,
		Users:      userService,
		Logger:     logger,

		BusinessStart:   clockOffset(config.AppConfig.BusinessHoursStart, availability.DefaultBusinessStart),
		BusinessEnd:     clockOffset(config.AppConfig.BusinessHoursEnd, availability.DefaultBusinessEnd),
		Increment:       time.Duration(config.AppConfig.SlotIncrementMinutes) * time.Minute,
		MaxResults:      config.AppConfig.MaxSlotResults,
		DefaultDuration: time.Duration(config.AppConfig.DefaultDurationMinutes) * time.Minute,
	}

	// handlers.
	authHandler := handlers.NewAuthHandler(userService)
	chatHandler := handlers.NewChatHandler(orchestrator)
	connectHandler := handlers.NewCalendarConnectHandler(userRepo)

	handlerBundle := handlers.NewHandlerBundle(authHandler, chatHandler, connectHandler)

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Background reminder worker.
	cron.InitReminderWorker()

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

// providerOrder maps the configured preference onto known providers,
// dropping entries that don't name one.
func providerOrder() []models.CalendarProvider {
	var out []models.CalendarProvider
	for _, name := range config.ProviderPreference() {
		if p := models.ParseProvider(name); p != "" {
			out = append(out, p)
		}
	}
	return out
}
