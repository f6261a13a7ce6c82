package main

import (
	"fmt"
	"os"
	"time"

	"github.com/openshelf/openshelf-backend/internal/db"
	"github.com/openshelf/openshelf-backend/internal/handlers"
	"github.com/openshelf/openshelf-backend/internal/logger"
	"github.com/openshelf/openshelf-backend/internal/middleware"
	"github.com/openshelf/openshelf-backend/internal/repos"
	"github.com/openshelf/openshelf-backend/internal/server"
	"github.com/openshelf/openshelf-backend/internal/services"
	"github.com/openshelf/openshelf-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	resourceRepo := repos.NewResourceRepo(thePG, log)
	pointEntryRepo := repos.NewPointEntryRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Error("Could not init BucketService", "error", err)
		os.Exit(1)
	}
	openaiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("Could not init OpenAIClient", "error", err)
		os.Exit(1)
	}
	visionService, err := services.NewVisionProviderService(log)
	if err != nil {
		log.Warn("Could not init VisionProviderService, image OCR disabled", "error", err)
		visionService = nil
	}
	textExtractService := services.NewTextExtractService(log, visionService)
	metadataService := services.NewMetadataService(log, openaiClient)
	relevanceService := services.NewRelevanceService(log, openaiClient)
	pointsService := services.NewPointsService(thePG, log, userRepo, pointEntryRepo)
	ingestionService := services.NewIngestionService(
		thePG,
		log,
		textExtractService,
		metadataService,
		relevanceService,
		bucketService,
		resourceRepo,
		pointsService,
	)
	resourceService := services.NewResourceService(thePG, log, resourceRepo, pointsService)
	authService := services.NewAuthService(thePG, log, userRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(log, userRepo)
	resourceHandler := handlers.NewResourceHandler(log, ingestionService, resourceService)

	// Middleware
	log.Info("Setting up middleware from main...")
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		UserHandler:     userHandler,
		ResourceHandler: resourceHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
