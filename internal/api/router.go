package api

import (
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	custommw "github.com/palisade-io/palisade/internal/api/middleware"
	"github.com/palisade-io/palisade/internal/auth"
	"github.com/palisade-io/palisade/internal/tenant"
)

// Server wires the HTTP surface: the router, its middleware stack, and the
// handlers delegating to the authentication and tenant services.
type Server struct {
	Router *chi.Mux
	db     *pgxpool.Pool
}

// Options carries the collaborators the router needs.
type Options struct {
	Auth               *auth.Service
	Tenants            *tenant.Service
	DB                 *pgxpool.Pool
	CORSAllowedOrigins []string
}

func NewServer(opts Options) *Server {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Sentry before panic recovery so panics are captured
	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(custommw.RequestLogger)
	r.Use(custommw.PanicRecovery)
	r.Use(custommw.CORS(opts.CORSAllowedOrigins))

	requireSession := custommw.RequireSession(opts.Auth)

	authHandler := NewAuthHandler(opts.Auth)
	tenantHandler := NewTenantHandler(opts.Tenants)

	server := &Server{Router: r, db: opts.DB}

	r.Get("/health", server.HealthHandler())

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Post("/auth/logout-all", authHandler.LogoutAll)

			r.Get("/me", authHandler.Me)

			r.Post("/auth/mfa/setup", authHandler.SetupMFA)
			r.Post("/auth/mfa/activate", authHandler.ActivateMFA)
			r.Post("/auth/mfa/disable", authHandler.DisableMFA)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/users", authHandler.ListUsers)
				r.Patch("/users/{userID}", authHandler.UpdateRoles)
				r.Delete("/users/{userID}", authHandler.RemoveUser)
			})

			r.Route("/tenants", func(r chi.Router) {
				r.Post("/", tenantHandler.Create)
				r.Get("/", tenantHandler.List)
				r.Get("/{id}", tenantHandler.Get)
				r.Put("/{id}", tenantHandler.Update)
				r.Delete("/{id}", tenantHandler.Delete)
			})
		})
	})

	return server
}

// ServeHTTP makes Server a http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
