package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"omex-backend/internal/ai"
	"omex-backend/internal/config"
	"omex-backend/internal/database"
	"omex-backend/internal/handlers"
	"omex-backend/internal/middleware"
	"omex-backend/internal/repository"
	"omex-backend/internal/router"
	"omex-backend/internal/services"
	"omex-backend/internal/session"
)

func main() {
	cfg := config.Load()

	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()
	log.Println("Connected to PostgreSQL")

	redisClient, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Migrations completed")

	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		log.Fatalf("Failed to create storage directory: %v", err)
	}

	aiClient, err := ai.NewClient(ai.Config{
		Backend:   ai.Backend(cfg.AIBackend),
		APIKey:    cfg.AIAPIKey,
		BaseURL:   cfg.AIBaseURL,
		Model:     cfg.AIModel,
		MaxTokens: cfg.AIMaxTokens,
	})
	if err != nil {
		log.Fatalf("Failed to configure generation client: %v", err)
	}
	log.Printf("Generation client ready (backend=%s, model=%s)", cfg.AIBackend, aiClient.Model())

	planRepo := repository.NewPlanRepo(pool)
	tokenRepo := repository.NewTokenRepo(pool)
	progressStore := session.NewProgressStore(redisClient)

	extractSvc := services.NewExtractService()
	mindmapSvc := services.NewMindmapService(aiClient)
	planner := services.NewPlanner(aiClient)
	grader := services.NewGrader(tokenRepo, progressStore)

	sessionMW := middleware.NewSession(cfg.SessionSecret)

	r := router.New(router.Config{
		MindmapHandler: handlers.NewMindmapHandler(mindmapSvc, extractSvc, cfg.StoragePath),
		PlanHandler: handlers.NewPlanHandler(
			planner, grader, extractSvc,
			planRepo, tokenRepo, progressStore,
			cfg.StoragePath,
		),
		Session:     sessionMW,
		FrontendURL: cfg.FrontendURL,
	})

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Upload and initialize block on a generation call that can run
		// up to two minutes.
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
