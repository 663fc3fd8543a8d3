package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hugh/recipebox/internal/api/handlers"
	"github.com/hugh/recipebox/internal/api/middleware"
	"github.com/hugh/recipebox/internal/auth"
	"github.com/hugh/recipebox/internal/storage"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	AuthService    *auth.Service
	ImageStore     storage.ImageStore
	MediaDir       string // served under /media when non-empty (local driver)
	AllowedOrigins []string
	RateLimitReqs  int
	RateLimitSecs  int
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	userHandler := handlers.NewUserHandler(cfg.AuthService)
	tagHandler := handlers.NewTagHandler(cfg.DB)
	ingredientHandler := handlers.NewIngredientHandler(cfg.DB)
	recipeHandler := handlers.NewRecipeHandler(cfg.DB, cfg.ImageStore, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public user endpoints
		r.Post("/user/create", userHandler.Create)
		r.Post("/user/token", userHandler.Token)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.AuthService))

			r.Get("/user/me", userHandler.Me)
			r.Patch("/user/me", userHandler.UpdateMe)

			r.Route("/recipe/tags", func(r chi.Router) {
				r.Get("/", tagHandler.List)
				r.Post("/", tagHandler.Create)
				r.Get("/{id}", tagHandler.Get)
				r.Put("/{id}", tagHandler.Update)
				r.Patch("/{id}", tagHandler.PartialUpdate)
				r.Delete("/{id}", tagHandler.Delete)
			})

			r.Route("/recipe/ingredients", func(r chi.Router) {
				r.Get("/", ingredientHandler.List)
				r.Post("/", ingredientHandler.Create)
				r.Get("/{id}", ingredientHandler.Get)
				r.Put("/{id}", ingredientHandler.Update)
				r.Patch("/{id}", ingredientHandler.PartialUpdate)
				r.Delete("/{id}", ingredientHandler.Delete)
			})

			r.Route("/recipe/recipes", func(r chi.Router) {
				r.Get("/", recipeHandler.List)
				r.Post("/", recipeHandler.Create)
				r.Get("/{id}", recipeHandler.Get)
				r.Put("/{id}", recipeHandler.Update)
				r.Patch("/{id}", recipeHandler.PartialUpdate)
				r.Delete("/{id}", recipeHandler.Delete)
				r.Post("/{id}/upload-image", recipeHandler.UploadImage)
			})
		})
	})

	// Media files (local storage driver only)
	if cfg.MediaDir != "" {
		fileServer := http.FileServer(http.Dir(cfg.MediaDir))
		r.Handle("/media/*", http.StripPrefix("/media/", fileServer))
	}

	return &Router{r}
}
