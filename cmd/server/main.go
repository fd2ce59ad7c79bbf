package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"msgtree/internal/auth"
	"msgtree/internal/config"
	"msgtree/internal/handler"
	"msgtree/internal/metrics"
	"msgtree/internal/middleware"
	"msgtree/internal/repository"
	"msgtree/internal/service/messages"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"store_driver", cfg.StoreDriver,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	// Caller identity: static API keys plus optional JWKS-backed bearer tokens
	apiKeys, err := auth.ParseAPIKeys(cfg.APIKeys)
	if err != nil {
		log.Fatalf("Failed to parse API_KEYS: %v", err)
	}
	var jwtVerifier auth.JWTVerifier
	if cfg.JWKSURL != "" {
		jwtVerifier, err = auth.NewJWTVerifier(ctx, cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer jwtVerifier.Close()
	}
	if apiKeys.Len() == 0 && jwtVerifier == nil {
		logger.Warn("no API_KEYS or JWKS_URL configured; every API request will be rejected")
	}
	logger.Info("auth configured", "api_keys", apiKeys.Len(), "jwt", jwtVerifier != nil)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(registry)

	cascade, err := messages.ParseCascadePolicy(cfg.DeleteCascade)
	if err != nil {
		log.Fatalf("Invalid DELETE_CASCADE: %v", err)
	}

	messageService := messages.NewService(
		store.Messages(),
		store.Transactions(),
		messages.Options{Cascade: cascade, PathSafetyMargin: cfg.PathSafetyMargin},
		recorder,
		logger,
	)
	messageHandler := handler.NewMessageHandler(messageService, logger)

	logger.Info("services initialized", "delete_cascade", cascade.Name())

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	messageHandler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → RateLimit → Routes
	public := []string{"/health", "/metrics"}
	h = middleware.SkipPaths(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst), public...)(h)
	h = middleware.SkipPaths(middleware.Authenticate(apiKeys, jwtVerifier, logger), public...)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.APIKeyHeader},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}
