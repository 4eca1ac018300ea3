package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rrens/agent-platform/internal/api/handler"
	customMiddleware "github.com/Rrens/agent-platform/internal/api/middleware"
	"github.com/Rrens/agent-platform/internal/config"
	"github.com/Rrens/agent-platform/internal/domain"
	"github.com/Rrens/agent-platform/internal/metrics"
	"github.com/Rrens/agent-platform/internal/repository/redis"
	"github.com/Rrens/agent-platform/internal/security"
	"github.com/Rrens/agent-platform/internal/service"
)

// Dependencies are the collaborators wired into the router. Metrics,
// RateLimiter and JWT are optional.
type Dependencies struct {
	Config        *config.Config
	Version       string
	Platform      *service.PlatformService
	Conversations *service.ConversationService
	Catalog       domain.AgentCatalog
	Store         domain.ConversationStore
	Metrics       *metrics.Collector
	RateLimiter   *redis.RateLimiter
	JWT           *security.JWTManager
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(customMiddleware.Metrics(deps.Metrics))
	}
	if cfg.Server.MiddlewareTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))
	}

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handler.NewHealthHandler(deps.Version, deps.Store, deps.Catalog)
	platformHandler := handler.NewPlatformHandler(deps.Platform)
	conversationHandler := handler.NewConversationHandler(deps.Conversations)

	// Public routes
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	if deps.Metrics != nil && cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, deps.Metrics.Handler())
	}

	// Protected routes
	r.Group(func(r chi.Router) {
		if deps.JWT != nil {
			r.Use(customMiddleware.NewAuthMiddleware(deps.JWT).Authenticate)
		}
		if deps.RateLimiter != nil {
			r.Use(customMiddleware.NewRateLimitMiddleware(deps.RateLimiter).Limit)
		}

		r.Get("/list-apps", healthHandler.ListAgents)

		r.Route("/platform", func(r chi.Router) {
			r.Get("/apps", platformHandler.ListApps)
			r.Get("/apps/{app_name}", platformHandler.GetApp)
			r.Post("/apps/{app_name}/launch", platformHandler.Launch)

			r.Get("/sessions", platformHandler.ListSessions)
			r.Get("/sessions/{session_id}", platformHandler.GetSession)
			r.Put("/sessions/{session_id}", platformHandler.UpdateSession)
			r.Delete("/sessions/{session_id}", platformHandler.DeleteSession)

			r.Post("/cleanup", platformHandler.Cleanup)
		})

		r.Route("/apps/{app_name}/users/{user_id}/sessions", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/", conversationHandler.Create)

			r.Get("/{session_id}", conversationHandler.Get)
			r.Post("/{session_id}", conversationHandler.Create)
			r.Delete("/{session_id}", conversationHandler.Delete)
		})
	})

	return r
}
