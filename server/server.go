// Package server implements the authentication backend consumed by the Lost
// and Found client: credential login, registration, token refresh, profile
// lookup, and logout, plus the role-gated admin surface.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/greenwood-edu/lostfound-auth/guard"
	"github.com/greenwood-edu/lostfound-auth/internal/config"
	"github.com/greenwood-edu/lostfound-auth/token"
	"github.com/greenwood-edu/lostfound-auth/token/refresh"
	"github.com/greenwood-edu/lostfound-auth/users"
)

type Server struct {
	config config.Config
	users  users.Repo
	issuer *token.Issuer
	tokens *refresh.Manager
	router chi.Router
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithIssuer replaces the default token issuer (primarily for testing with
// an injected clock).
func WithIssuer(issuer *token.Issuer) Option {
	return func(s *Server) {
		s.issuer = issuer
	}
}

func New(cfg config.Config, userRepo users.Repo, tokenRepo refresh.Repo, options ...Option) *Server {
	s := &Server{
		config: cfg,
		users:  userRepo,
		issuer: token.NewIssuer(cfg.GetSigningSecret(), cfg.GetBaseURL(), cfg.GetAccessTokenExpiry()),
	}
	for _, opt := range options {
		opt(s)
	}
	s.tokens = refresh.NewManager(tokenRepo, userRepo, s.issuer, cfg.GetRefreshWindow())
	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRoutes() {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger)
	r.Use(Metrics)
	r.Use(chimiddleware.Recoverer)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.LoginHandler)
		r.Post("/register", s.RegisterHandler)
		r.Post("/refresh", s.RefreshHandler)
		r.Post("/logout", s.LogoutHandler)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireAuth)
			r.Get("/me", s.MeHandler)
		})
	})

	// Role-gated surface. WithClaims only annotates the request; the guard
	// middleware makes the allow/redirect decision.
	r.Group(func(r chi.Router) {
		r.Use(s.WithClaims)
		r.With(s.requireRoles(users.RoleStaff, users.RoleAdmin)).
			Get("/admin/users", s.ListUsersHandler)
		r.With(s.requireRoles(users.AllRoles...)).
			Get("/dashboard", s.DashboardHandler)
	})

	// Redirect targets for the guard.
	r.Get(loginPath, s.LoginPageHandler)
	r.Get(unauthorizedPath, s.UnauthorizedPageHandler)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router = r
}

const (
	loginPath        = "/login"
	unauthorizedPath = "/unauthorized"
)

func (s *Server) requireRoles(allowed ...users.Role) func(http.Handler) http.Handler {
	return guard.Middleware(s.snapshotFromRequest, loginPath, unauthorizedPath, allowed...)
}
