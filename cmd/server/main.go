package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/recetasapp/recetas-backend/config"
	"github.com/recetasapp/recetas-backend/internal/app/controller"
	"github.com/recetasapp/recetas-backend/internal/app/repository"
	"github.com/recetasapp/recetas-backend/internal/app/service"
	"github.com/recetasapp/recetas-backend/internal/db"
	"github.com/recetasapp/recetas-backend/internal/middleware"
	"github.com/recetasapp/recetas-backend/internal/router"
	"github.com/recetasapp/recetas-backend/internal/storage"
	"github.com/recetasapp/recetas-backend/pkg/logger"
	"github.com/recetasapp/recetas-backend/pkg/mailer"
	"github.com/recetasapp/recetas-backend/pkg/redis"
	"github.com/recetasapp/recetas-backend/pkg/token"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	// Initialize logger
	logLevel := "info"
	if cfg.Server.Environment == "development" {
		logLevel = "debug"
	}
	logger.Initialize(logger.Config{
		Level:       logLevel,
		Format:      "console", // Use "json" for production
		EnableColor: true,
	})

	logger.Info("Starting RecetasApp Backend Server", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"log_level":   logLevel,
	})

	// Initialize database
	if err := db.Initialize(&cfg.Database); err != nil {
		logger.Fatal("Failed to initialize database", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database connection", err)
		}
	}()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}

	// Redis backs the per-IP throttle on code-issuing endpoints. The
	// throttle fails open, so a missing Redis only disables it.
	if cfg.Redis.Enabled() {
		if err := redis.Init(redis.Options{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}); err != nil {
			logger.Warn("Redis unavailable, rate limiting disabled", map[string]interface{}{
				"error": err.Error(),
			})
		}
		defer func() {
			if err := redis.Close(); err != nil {
				logger.Error("Failed to close Redis connection", err)
			}
		}()
	}

	// Pick the mail transport
	var mail mailer.Mailer
	if cfg.SMTP.Host != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	} else {
		logger.Warn("No SMTP host configured, emails will be logged instead", nil)
		mail = mailer.DevMailer{}
	}

	codec := token.NewCodec(cfg.JWT.Secret)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db.GetDB())
	recipeRepo := repository.NewRecipeRepository(db.GetDB())
	groupRepo := repository.NewGroupRepository(db.GetDB())

	// Initialize services
	registrationService := service.NewRegistrationService(
		userRepo,
		codec,
		mail,
		cfg.JWT.Secret,
		cfg.JWT.RegistrationExpiry,
		cfg.JWT.SessionTokenExpiry,
	)
	authService := service.NewAuthService(
		userRepo,
		recipeRepo,
		groupRepo,
		cfg.JWT.Secret,
		cfg.JWT.SessionTokenExpiry,
	)
	passwordResetService := service.NewPasswordResetService(
		userRepo,
		mail,
		cfg.JWT.Secret,
		cfg.JWT.VerificationExpiry,
		cfg.JWT.SessionTokenExpiry,
	)
	emailChangeService := service.NewEmailChangeService(
		userRepo,
		mail,
		cfg.JWT.VerificationExpiry,
	)

	// Initialize storage
	s3Storage := storage.NewS3Storage(
		cfg.S3.Region,
		cfg.S3.Bucket,
		cfg.S3.AccessKeyID,
		cfg.S3.SecretAccessKey,
		cfg.S3.BaseURL,
	)

	// Initialize controllers
	authController := controller.NewAuthController(registrationService, authService, passwordResetService)
	userController := controller.NewUserController(authService, emailChangeService)
	uploadController := controller.NewUploadController(s3Storage)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, userRepo)

	// Setup router
	r := router.NewRouter(
		authController,
		userController,
		uploadController,
		authMiddleware,
		cfg,
	)
	engine := r.Setup()

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		logger.Info("Server started successfully", map[string]interface{}{
			"address": addr,
			"pid":     os.Getpid(),
		})
		if err := engine.Run(addr); err != nil {
			logger.Fatal("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server gracefully...")
	logger.Info("Server stopped successfully")
}
