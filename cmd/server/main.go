package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kyro-backend/internal/config"
	"kyro-backend/internal/database"
	"kyro-backend/internal/handlers"
	"kyro-backend/internal/middleware"
	"kyro-backend/internal/repository"
	"kyro-backend/internal/router"
	"kyro-backend/internal/services"
	"kyro-backend/internal/session"
	"kyro-backend/internal/websocket"
	"kyro-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting Kyro Backend...")
	ctx := context.Background()

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("✗ Invalid configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(ctx, services.GeminiConfig{
		APIKey:          cfg.GeminiAPIKey,
		Model:           cfg.GeminiModel,
		Temperature:     float32(cfg.GeminiTemperature),
		TopP:            float32(cfg.GeminiTopP),
		MaxOutputTokens: int32(cfg.GeminiMaxOutputTokens),
		SafetyThreshold: cfg.GeminiSafetyThreshold,
		ConcurrentReqs:  cfg.GeminiConcurrentReqs,
	})
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Printf("✓ Gemini client initialized (model: %s)", cfg.GeminiModel)

	// ──── Step 3: Initialize Redis Clients (optional) ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()
		log.Println("✓ Redis connected")
	}

	// ──── Step 4: Initialize Session Store ────
	var store session.Store
	switch cfg.SessionStore {
	case "redis":
		store = session.NewRedisStore(redisClients.Sessions, geminiService.OpenConversation, cfg.SessionTTL)
		log.Printf("✓ Redis session store ready (ttl: %s)", cfg.SessionTTL)
	default:
		store = session.NewMemoryStore(geminiService.OpenConversation)
		log.Println("✓ In-memory session store ready")
	}

	// ──── Step 5: Connect Turn Ledger (optional) ────
	var recorder *worker.Pool
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("✗ PostgreSQL connection failed: %v", err)
		}
		defer pool.Close()
		log.Println("✓ PostgreSQL connected")

		if err := database.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("✗ Database migration failed: %v", err)
		}
		log.Println("✓ Database migrations applied")

		recorder = worker.NewPool(repository.NewTurnRepo(pool), cfg.RecorderWorkers)
		recorder.Start()
		log.Printf("✓ Turn recorder started (%d goroutines)", cfg.RecorderWorkers)
	}

	// ──── Step 6: Start WebSocket Hub ────
	var jwtAuth *middleware.JWTAuth
	var tokenParser websocket.TokenParser
	if cfg.JWTSecret != "" {
		jwtAuth = middleware.NewJWTAuth(cfg.JWTSecret)
		tokenParser = jwtAuth
		log.Println("✓ JWT auth enabled for chat routes")
	}

	var wsHub *websocket.Hub
	if redisClients != nil {
		wsHub = websocket.NewHub(redisClients.PubSub, tokenParser)
	} else {
		wsHub = websocket.NewHub(nil, tokenParser)
	}
	defer wsHub.Close()
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Wire the Relay ────
	relayOpts := []services.RelayOption{services.WithPublisher(wsHub)}
	if recorder != nil {
		relayOpts = append(relayOpts, services.WithRecorder(recorder))
	}
	relay := services.NewRelay(store, services.RelayConfig{
		DefaultSessionID: cfg.ChatDefaultSession,
		MaxAttempts:      cfg.ChatMaxAttempts,
		RetryBackoff:     cfg.ChatRetryBackoff,
		MaxMessageChars:  cfg.ChatMaxMessageChars,
	}, relayOpts...)

	chatHandler := handlers.NewChatHandler(relay, cfg.ChatDefaultSession)
	systemHandler := handlers.NewSystemHandler(geminiService)

	chatLimiter := middleware.NewRateLimiter(cfg.ChatRateLimit, time.Minute)
	defer chatLimiter.Stop()

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		chatLimiter,
		chatHandler,
		systemHandler,
		wsHub.HandleWebSocket,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Chat turns may retry the model with backoff.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)

		if recorder != nil {
			recorder.Stop()
		}
	}()

	log.Printf("✓ Kyro Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  Chat: POST http://localhost:%s/chat", cfg.Port)
	log.Printf("  WS:   ws://localhost:%s/ws?sessionId=...", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
	<-done
}
