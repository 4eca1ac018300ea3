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

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/agent-platform/internal/api"
	"github.com/Rrens/agent-platform/internal/catalog"
	"github.com/Rrens/agent-platform/internal/config"
	"github.com/Rrens/agent-platform/internal/logging"
	"github.com/Rrens/agent-platform/internal/metrics"
	"github.com/Rrens/agent-platform/internal/repository/redis"
	"github.com/Rrens/agent-platform/internal/security"
	"github.com/Rrens/agent-platform/internal/service"
)

// set with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load .env file - try multiple locations
	for _, p := range []string{".env", "../.env", "../../.env"} {
		if err := godotenv.Load(p); err == nil {
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("store", cfg.Store.Driver).
		Str("agents_dir", cfg.Platform.AgentsDir).
		Str("version", version).
		Msg("Starting agent platform server")

	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		redisClient, err = redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	store, closeStore, err := openStore(ctx, cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("Failed to open conversation store")
	}
	defer closeStore()

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace)
	}

	agentCatalog := catalog.NewFileCatalog(cfg.Platform.AgentsDir)
	platformService := service.NewPlatformService(agentCatalog, store, service.PlatformOptions{
		SessionTimeout: cfg.Platform.SessionTimeout,
		AppCacheTTL:    cfg.Platform.AppCacheTTL,
		PublicBaseURL:  cfg.Platform.PublicBaseURL,
		Metrics:        collector,
	})

	deps := api.Dependencies{
		Config:        cfg,
		Version:       version,
		Platform:      platformService,
		Conversations: service.NewConversationService(store),
		Catalog:       agentCatalog,
		Store:         store,
		Metrics:       collector,
	}
	if cfg.Auth.Enabled {
		deps.JWT = security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	}
	if cfg.Security.RateLimit.Enabled {
		deps.RateLimiter = redis.NewRateLimiter(
			redisClient,
			cfg.Security.RateLimit.RequestsPerMinute,
			cfg.Security.RateLimit.Burst,
		)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupCtx, stopCleanup := context.WithCancel(ctx)
	cleanupDone := make(chan struct{})
	go func() {
		defer close(cleanupDone)
		runCleanup(cleanupCtx, platformService, cfg.Platform.CleanupInterval)
	}()

	go func() {
		log.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	stopCleanup()
	<-cleanupDone

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// runCleanup sweeps expired sessions every interval until ctx is done.
// A zero interval disables the sweep.
func runCleanup(ctx context.Context, platformService *service.PlatformService, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("periodic session cleanup disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			platformService.CleanupExpired(ctx)
		}
	}
}
