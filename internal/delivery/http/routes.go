package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hearth-app/backend/internal/middleware"
)

func NewRouter(
	handler *Handler,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	allowedOrigins []string,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware. The rate gate sits after logging so denied
	// requests still show up in the request log.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Window"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(rateLimitMiddleware.Handler)

	// Health probes, exempt from the rate gate by path.
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", handler.Register)
			r.Post("/login", handler.Login)
			r.Post("/refresh", handler.Refresh)
			r.Post("/logout", handler.Logout)

			r.Group(func(r chi.Router) {
				r.Use(authMiddleware.Authenticate)
				r.Get("/me", handler.GetCurrentUser)
			})
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", handler.ListProjects)
				r.Post("/", handler.CreateProject)
				r.Get("/{projectId}", handler.GetProject)
				r.Patch("/{projectId}", handler.UpdateProject)
				r.Delete("/{projectId}", handler.ArchiveProject)
				r.Get("/{projectId}/tasks", handler.ListTasks)
				r.Post("/{projectId}/tasks", handler.CreateTask)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Patch("/{taskId}", handler.UpdateTask)
				r.Post("/{taskId}/complete", handler.CompleteTask)
				r.Delete("/{taskId}", handler.DeleteTask)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(authMiddleware.AdminOnly)
				r.Get("/users", handler.AdminListUsers)
				r.Patch("/users/{userId}/active", handler.AdminSetUserActive)
				r.Get("/stats", handler.AdminGetStats)
				r.Get("/login-events", handler.AdminListLoginEvents)
				r.Post("/maintenance/purge-tokens", handler.AdminPurgeExpiredTokens)
				r.Post("/ratelimit/reset", handler.AdminResetRateLimit)
			})
		})
	})

	return r
}
