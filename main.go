package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/todo-api/internal/api"
	"github.com/isdelr/todo-api/internal/auth"
	"github.com/isdelr/todo-api/internal/config"
	"github.com/isdelr/todo-api/internal/database"
	"github.com/isdelr/todo-api/internal/logger"
	"github.com/isdelr/todo-api/internal/monitoring"
	"github.com/isdelr/todo-api/internal/services"
	"github.com/isdelr/todo-api/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	if cfg.SecretKey == config.DefaultSecretKey {
		log.Warn().Msg("SECRET_KEY is the development default; set it before deploying")
	}

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DatabasePath).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	tokens := auth.NewTokenService([]byte(cfg.SecretKey), cfg.AccessTokenTTL)
	userService := services.NewUserService(db, auth.NewPasswordHasher(cfg.BcryptCost))
	taskService := services.NewTaskService(db, hub)

	// Set up and run the background maintenance scheduler
	scheduler, err := monitoring.NewScheduler(db, cfg.MaintenanceSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure maintenance scheduler")
	}
	scheduler.Run()

	// Set up router
	router := api.NewRouter(api.Deps{
		Users:          userService,
		Tasks:          taskService,
		Tokens:         tokens,
		Hub:            hub,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Dur("token_ttl", tokens.TTL()).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()

	log.Info().Msg("Server exiting")
}
