package main

import (
	"context"
	"errors"
	"fitpanel/member-app/internal/annotate"
	"fitpanel/member-app/internal/api"
	"fitpanel/member-app/internal/config"
	"fitpanel/member-app/internal/identity"
	"fitpanel/member-app/internal/repository/mongo"
	"fitpanel/member-app/internal/service"
	"fitpanel/member-app/internal/storage"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Info().Msg("Starting Member App Server...")

	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not load config")
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal().Err(err).Msg("Could not connect to MongoDB")
	}
	defer func() {
		logger.Info().Msg("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error().Err(err).Msg("Failed to disconnect MongoDB")
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info().Msg("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		if err := mongo.EnsureAccountIndexes(ctx, appDB); err != nil {
			logger.Warn().Err(err).Msg("Failed to create account indexes")
		}
		if err := identity.EnsureCredentialIndexes(ctx, appDB); err != nil {
			logger.Warn().Err(err).Msg("Failed to create credential indexes")
		}
	}()

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize S3 storage")
	}

	// --- Initialize Annotator ---
	branding := annotate.Branding{FooterText: cfg.Branding.FooterText}
	if cfg.Branding.LogoPath != "" {
		logo, err := os.ReadFile(cfg.Branding.LogoPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.Branding.LogoPath).Msg("Branding logo unavailable; documents will be stamped without it")
		} else {
			branding.LogoPNG = logo
		}
	}
	annotator := annotate.NewPDFAnnotator(branding)

	// --- Initialize Repositories & Identity Provider ---
	accountRepo := mongo.NewMongoAccountRepository(appDB)
	planRepo := mongo.NewMongoPlanRepository(appDB)
	idp := identity.NewMongoProvider(appDB)

	// --- Initialize Services ---
	lifecycleService := service.NewLifecycleService(accountRepo, planRepo, idp, fileStorage, annotator, logger)
	measurementService := service.NewMeasurementService(accountRepo, fileStorage)
	authService := service.NewAuthService(idp, lifecycleService, cfg.JWT.Secret, cfg.JWT.Expiration)

	// --- Initialize Gin Engine ---
	router := gin.Default()
	router.MaxMultipartMemory = 10 << 20

	// --- Setup Routes ---
	api.SetupRoutes(router, cfg.JWT.Secret, authService, lifecycleService, measurementService)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.Info().Str("address", cfg.Server.Address).Msg("Server starting")

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("ListenAndServe error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exiting.")
}
