package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/studyloop/backend/internal/db"
	"github.com/studyloop/backend/internal/handlers"
	"github.com/studyloop/backend/internal/logger"
	"github.com/studyloop/backend/internal/middleware"
	"github.com/studyloop/backend/internal/observability"
	"github.com/studyloop/backend/internal/repos"
	"github.com/studyloop/backend/internal/server"
	"github.com/studyloop/backend/internal/services"
	"github.com/studyloop/backend/internal/utils"
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
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	rewardConfigPath := utils.GetEnv("REWARDS_CONFIG_PATH", "", log)
	port := utils.GetEnv("PORT", "8080", log)

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "studyloop",
		Environment: utils.GetEnv("APP_ENV", "development", log),
		Version:     utils.GetEnv("APP_VERSION", "", log),
	})
	if shutdownOTel != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(ctx); err != nil {
				log.Warn("OTel shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	todoRepo := repos.NewTodoRepo(thePG, log)
	plannerTaskRepo := repos.NewPlannerTaskRepo(thePG, log)
	lessonProgressRepo := repos.NewLessonProgressRepo(thePG, log)
	ledgerEventRepo := repos.NewLedgerEventRepo(thePG, log)
	progressSnapshotRepo := repos.NewProgressSnapshotRepo(thePG, log)

	// Reward config
	rewardConfig, err := services.LoadRewardConfig(rewardConfigPath, log)
	if err != nil {
		log.Error("Could not load reward config", "error", err)
		os.Exit(1)
	}
	capEnforcer := services.NewCapEnforcer(rewardConfig, ledgerEventRepo, log)

	// Rewards cache (optional)
	rewardsCache, err := services.NewRedisRewardsCache(log)
	if err != nil {
		log.Warn("Redis init failed, rewards reads go uncached", "error", err)
		rewardsCache = nil
	}

	// Services
	log.Info("Setting up Services from main...")
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey,
		time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	todoService := services.NewTodoService(thePG, log, todoRepo)
	plannerService := services.NewPlannerService(thePG, log, plannerTaskRepo)
	lessonService := services.NewLessonProgressService(thePG, log, lessonProgressRepo)
	awardService := services.NewAwardService(thePG, log, rewardConfig, capEnforcer,
		userRepo, todoRepo, plannerTaskRepo, lessonProgressRepo, ledgerEventRepo, rewardsCache)
	syncService := services.NewProgressSyncService(thePG, log, progressSnapshotRepo, userRepo, ledgerEventRepo)
	rewardsService := services.NewRewardsService(thePG, log, ledgerEventRepo, userRepo, rewardsCache)

	// Handlers
	log.Info("Setting up Handlers from main...")
	authHandler := handlers.NewAuthHandler(authService, time.Duration(accessTokenTTL)*time.Second)
	todoHandler := handlers.NewTodoHandler(todoService, awardService)
	plannerHandler := handlers.NewPlannerHandler(plannerService, awardService)
	lessonHandler := handlers.NewLessonHandler(lessonService, awardService)
	progressHandler := handlers.NewProgressHandler(syncService)
	rewardsHandler := handlers.NewRewardsHandler(rewardsService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:     authHandler,
		AuthMiddleware:  authMiddleware,
		TodoHandler:     todoHandler,
		PlannerHandler:  plannerHandler,
		LessonHandler:   lessonHandler,
		ProgressHandler: progressHandler,
		RewardsHandler:  rewardsHandler,
	})

	log.Info("Starting server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
