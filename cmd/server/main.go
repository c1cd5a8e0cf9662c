package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/calcutta-auction/internal/api"
	"github.com/dom/calcutta-auction/internal/common/clock"
	"github.com/dom/calcutta-auction/internal/config"
	"github.com/dom/calcutta-auction/internal/events"
	"github.com/dom/calcutta-auction/internal/repository/postgres"
	"github.com/dom/calcutta-auction/internal/service"
	"github.com/dom/calcutta-auction/internal/websocket"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := postgres.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// Initialize repositories
	repos := postgres.NewRepositories(db)

	// Initialize WebSocket hub
	hub := websocket.NewHub()

	// Events go through Redis when configured so every instance sees them,
	// otherwise straight to the local hub.
	var publisher events.Publisher = hub
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		broker, err := events.NewRedisBroker(ctx, redis.NewClient(opts))
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		if err := broker.Start(ctx, hub.Dispatch); err != nil {
			log.Fatalf("failed to subscribe to redis events: %v", err)
		}
		publisher = broker
		log.Printf("Relaying auction events through redis")
	}

	// Initialize services
	clk := &clock.DefaultClock{}
	services, err := service.NewServices(repos, publisher, clk, cfg)
	if err != nil {
		log.Fatalf("failed to initialize services: %v", err)
	}
	hub.Bind(services.Session, services.Auction)

	if cfg.ServerAutoAdvance {
		hub.EnableTimers(websocket.NewTimerManager(clk, func(ctx context.Context, sessionID uuid.UUID) error {
			_, err := services.Auction.AdvanceExpired(ctx, sessionID)
			return err
		}))
	}
	go hub.Run()

	// Seed the tournament catalog
	if cfg.TournamentFile != "" {
		tf, err := config.LoadTournament(cfg.TournamentFile)
		if err != nil {
			log.Fatalf("failed to load tournament file: %v", err)
		}
		if err := services.Team.Seed(ctx, tf); err != nil {
			log.Fatalf("failed to seed tournament %s: %v", tf.ID, err)
		}
		log.Printf("Seeded tournament %s with %d teams", tf.ID, len(tf.Teams))
	}

	// Initialize router
	router := api.NewRouter(services, hub, cfg)

	// Create server
	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	cancel()
	hub.Stop()

	log.Println("Server stopped")
}
