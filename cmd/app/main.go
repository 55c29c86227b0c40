package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"questlog/internal/api"
	"questlog/internal/events"
	"questlog/internal/repository"
	"questlog/internal/scheduler"
	"questlog/internal/service"
	"questlog/pkg/logger"

	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	repo, err := repository.New(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	hub := events.NewHub()
	defer hub.Close()

	poolService := service.NewPoolService(repo, repo)
	allocatorService := service.NewAllocatorService(repo, poolService, hub)
	streakService := service.NewStreakService(repo, repo, hub)
	generatorService := service.NewGeneratorService(repo, repo)
	userService := service.NewUserService(repo)
	questService := service.NewQuestService(
		repo, repo, repo,
		poolService, allocatorService, streakService, generatorService,
		hub,
	)

	reconciler := scheduler.New(repo, questService, cfg.Scheduler)
	reconciler.Start(context.Background())
	defer reconciler.Stop()

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	a := router.Group("/api/v1")
	api.NewUserRoutes(a, userService)
	api.NewQuestRoutes(a, questService)
	api.NewEventRoutes(a, hub)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
