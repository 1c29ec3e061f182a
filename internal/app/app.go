package app

import (
	"context"
	"fmt"

	"workbridge_backend/internal/config"
	"workbridge_backend/internal/database"
	"workbridge_backend/internal/email"
	"workbridge_backend/internal/handlers"
	"workbridge_backend/internal/logger"
	"workbridge_backend/internal/realtime"
	"workbridge_backend/internal/repositories"
	"workbridge_backend/internal/routes"
	"workbridge_backend/internal/services"
	"workbridge_backend/internal/validator"
	"workbridge_backend/internal/workers"
	"workbridge_backend/ws"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Run boots the whole process: config, database, change capture,
// realtime hub, background workers and the HTTP server.
func Run() {
	config.LoadConfig()
	cfg := config.AppConfig

	logger.Init(cfg.Server.Env)
	logger.Info("logger initialized", "env", cfg.Server.Env)

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("database connect failed", "error", err)
	}
	if err := database.Migrate(db); err != nil {
		logger.Fatal("database migrate failed", "error", err)
	}
	if err := database.InstallChangeCapture(db); err != nil {
		logger.Fatal("change capture install failed", "error", err)
	}

	ctx := context.Background()
	router := SetupRouter(ctx, cfg, db)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("server starting", "address", address)
	if err := router.Run(address); err != nil {
		logger.Fatal("server startup failed", "error", err)
	}
}

// SetupRouter wires repositories, services, the realtime stack and the
// gin router. Split from Run so tests can assemble the app without
// binding a port.
func SetupRouter(ctx context.Context, cfg *config.Config, db *gorm.DB) *gin.Engine {
	// Repositories
	userRepo := repositories.NewUserRepository(db)
	jobRepo := repositories.NewJobRepository(db)
	proposalRepo := repositories.NewProposalRepository(db)
	messageRepo := repositories.NewMessageRepository(db)
	notificationRepo := repositories.NewNotificationRepository(db)
	payoutRepo := repositories.NewPayoutRepository(db)

	// Realtime stack: one transport and hub per process, one session per
	// websocket connection.
	source := realtime.NewPQTransport(cfg.Database.DSN, cfg.Realtime)
	if err := source.Start(ctx); err != nil {
		logger.Fatal("change source start failed", "error", err)
	}
	hub := realtime.NewHub(source, cfg.Realtime)
	go hub.Run(ctx)

	fetcher := realtime.NewStoreSnapshotFetcher(
		notificationRepo, messageRepo, proposalRepo, jobRepo, payoutRepo,
		cfg.Realtime.SnapshotLimit,
	)
	realtimeService := realtime.NewService(hub, source, fetcher, userRepo, cfg.Realtime)

	wsManager := ws.NewManager()
	go wsManager.Run()
	wsHandler := ws.NewHandler(wsManager, realtimeService, cfg.Server.AllowedOrigin)

	// Email falls back to a noop provider when disabled.
	var emailProvider email.Provider = email.NoopProvider{}
	if cfg.Email.Enabled {
		emailProvider = email.NewSMTPProvider(email.SMTPConfig{
			Host:      cfg.Email.SMTPHost,
			Port:      cfg.Email.SMTPPort,
			Username:  cfg.Email.SMTPUsername,
			Password:  cfg.Email.SMTPPassword,
			FromEmail: cfg.Email.FromEmail,
			FromName:  cfg.Email.FromName,
		})
	}

	// Services
	notificationService := services.NewNotificationService(notificationRepo, userRepo, wsManager, emailProvider)
	authService := services.NewAuthService(userRepo)
	profileService := services.NewProfileService(userRepo)
	jobService := services.NewJobService(jobRepo, proposalRepo, userRepo, notificationService)
	proposalService := services.NewProposalService(proposalRepo, jobRepo, userRepo, payoutRepo, notificationService)
	messageService := services.NewMessageService(messageRepo, userRepo, jobRepo, notificationService)
	payoutService := services.NewPayoutService(payoutRepo, notificationService)
	adminService := services.NewAdminService(userRepo)

	retention := workers.NewRetentionWorker(notificationRepo, cfg.Realtime.Retention)
	go retention.Run(ctx)

	// Handlers
	base := handlers.NewBaseHandler(validator.New())
	appHandlers := &routes.Handlers{
		Auth:         handlers.NewAuthHandler(base, authService),
		Profile:      handlers.NewProfileHandler(base, profileService),
		Job:          handlers.NewJobHandler(base, jobService),
		Proposal:     handlers.NewProposalHandler(base, proposalService),
		Message:      handlers.NewMessageHandler(base, messageService),
		Notification: handlers.NewNotificationHandler(base, notificationService),
		Payout:       handlers.NewPayoutHandler(base, payoutService),
		Admin:        handlers.NewAdminHandler(base, adminService),
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	routes.RegisterRoutes(router, appHandlers, wsHandler)
	return router
}
