package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/studyloop/backend/internal/handlers"
	"github.com/studyloop/backend/internal/middleware"
	"github.com/studyloop/backend/internal/utils"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	AuthMiddleware  *middleware.AuthMiddleware
	TodoHandler     *handlers.TodoHandler
	PlannerHandler  *handlers.PlannerHandler
	LessonHandler   *handlers.LessonHandler
	ProgressHandler *handlers.ProgressHandler
	RewardsHandler  *handlers.RewardsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware("studyloop"))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/register", cfg.AuthHandler.Register)
	router.POST("/login", cfg.AuthHandler.Login)
	router.POST("/refresh", cfg.AuthHandler.Refresh)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	api.POST("/logout", cfg.AuthHandler.Logout)

	// Todos
	api.GET("/todos", cfg.TodoHandler.List)
	api.POST("/todos", cfg.TodoHandler.Create)
	api.PATCH("/todos/:id", cfg.TodoHandler.Update)
	api.DELETE("/todos/:id", cfg.TodoHandler.Delete)

	// Study plan
	api.GET("/planner/days", cfg.PlannerHandler.ListDays)
	api.GET("/planner/days/:day", cfg.PlannerHandler.GetDay)
	api.POST("/planner/tasks", cfg.PlannerHandler.CreateTask)
	api.PATCH("/planner/tasks/:id", cfg.PlannerHandler.UpdateTask)
	api.DELETE("/planner/tasks/:id", cfg.PlannerHandler.DeleteTask)

	// Lessons
	api.GET("/lessons/progress", cfg.LessonHandler.List)
	api.POST("/lessons/progress", cfg.LessonHandler.Open)
	api.PATCH("/lessons/progress/:id", cfg.LessonHandler.Update)

	// Course snapshot sync
	api.POST("/progress/sync", cfg.ProgressHandler.Sync)
	api.GET("/progress/:courseID", cfg.ProgressHandler.GetSnapshot)

	// Rewards
	api.GET("/rewards/achievements", cfg.RewardsHandler.Achievements)
	api.GET("/rewards/streak", cfg.RewardsHandler.Streak)
	api.GET("/me/level", cfg.RewardsHandler.Level)

	return router
}

func allowedOrigins() []string {
	raw := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000,http://localhost:5173", nil)
	parts := strings.Split(raw, ",")
	origins := []string{}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			origins = append(origins, part)
		}
	}
	return origins
}
