package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/library-portal/app"
	"github.com/upb/library-portal/handlers"
	"github.com/upb/library-portal/internal/roles"
	"github.com/upb/library-portal/middleware"
	"github.com/upb/library-portal/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	cookie := cfg.Session.CookieName

	books := handlers.NewBookHandler(deps.Catalog, deps.Audit, deps.Views, cookie, deps.Logger)
	admin := handlers.NewAdminHandler(deps.Catalog, deps.Audit, deps.Assigner, deps.Views, cookie, deps.Logger)
	sessions := handlers.NewSessionHandler(deps.Views, deps.SignInEnabled, cookie, deps.Logger)
	health := handlers.NewHealthHandler(deps.Logger)
	for name, check := range deps.ReadinessChecks() {
		health.AddCheck(name, check)
	}
	guard := deps.AuthMiddleware

	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	if cfg.Server.TrustProxyHeaders {
		// Forwarded headers are client-controlled unless a proxy rewrites them.
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(guard.LoadSession)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)
	if cfg.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	// HTML pages, all forms CSRF-protected
	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRFProtection(cfg.Session.CSRFKey, cfg.Session.CookieSecure))

		r.Get("/", books.HandleIndex)

		r.Route("/auth", func(r chi.Router) {
			r.Use(deps.RateLimiter.Middleware)
			r.Get("/signin", sessions.HandleSignIn)
			r.Get("/error", sessions.HandleAuthError)
			r.Get("/login", deps.AuthHandler.HandleLogin)
			r.Get("/callback", deps.AuthHandler.HandleCallback)
			r.Get("/logout", deps.AuthHandler.HandleLogout)
			r.Post("/logout", deps.AuthHandler.HandleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.RequirePage(roles.LibrarianOrAdmin()))
			r.Get("/books/new", books.HandleNew)
			r.Post("/books", books.HandleCreate)
			r.Get("/books/{id}/edit", books.HandleEdit)
			r.Post("/books/{id}", books.HandleUpdate)
			r.Get("/books/{id}/checkout", books.HandleCheckoutForm)
			r.Post("/books/{id}/checkout", books.HandleCheckout)
			r.Post("/books/{id}/checkin", books.HandleCheckin)
		})

		r.Group(func(r chi.Router) {
			r.Use(guard.RequirePage(roles.AdminOnly()))
			r.Post("/books/{id}/delete", books.HandleDelete)
			r.Get("/admin", admin.HandleDashboard)
			r.Get("/admin/promote", admin.HandlePromoteForm)
			r.Post("/admin/promote", admin.HandlePromote)
		})
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{cfg.PublicURL},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(guard.RequireAuth)

		r.Get("/session", sessions.HandleSession)
		r.Post("/access/evaluate", sessions.HandleEvaluateAccess)
		r.With(guard.RequireRole(roles.MinRole(roles.RoleAdmin))).
			Post("/admin/roles", admin.HandleSetRole)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			_ = utils.WriteNotFound(w, "endpoint not found")
			return
		}
		sessions.HandleNotFound(w, r)
	})

	return r
}
