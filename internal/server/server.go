package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/joshrizzo/MyLib/internal/membership"
	"github.com/joshrizzo/MyLib/internal/roles"
)

// Server exposes the membership and role providers over HTTP.
type Server struct {
	members *membership.Provider
	roles   *roles.Provider
	log     *zap.Logger

	jwtSecret []byte
	jwtIssuer string
	accessTTL time.Duration
}

type Option func(*Server)

// WithJWT configures token issuance for the login endpoint.
func WithJWT(secret []byte, issuer string, ttl time.Duration) Option {
	return func(s *Server) {
		s.jwtSecret = secret
		s.jwtIssuer = issuer
		s.accessTTL = ttl
	}
}

// New wires the handler set. log may be nil.
func New(members *membership.Provider, rp *roles.Provider, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		members:   members,
		roles:     rp,
		log:       log,
		jwtIssuer: "mylib",
		accessTTL: 15 * time.Minute,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Routes builds the chi router for the service.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/change-password", s.handleChangePassword)
		r.Post("/auth/reset-password", s.handleResetPassword)

		r.Get("/users", s.handleListUsers)
		r.Get("/users/{username}", s.handleGetUser)
		r.Post("/users/{username}/unlock", s.handleUnlock)
		r.Delete("/users/{username}", s.handleDeleteUser)
		r.Get("/users/{username}/roles", s.handleUserRoles)

		r.Get("/roles", s.handleListRoles)
		r.Post("/roles", s.handleCreateRole)
		r.Delete("/roles/{role}", s.handleDeleteRole)
		r.Get("/roles/{role}/members", s.handleRoleMembers)
		r.Post("/roles/{role}/members", s.handleAddMembers)
		r.Delete("/roles/{role}/members", s.handleRemoveMembers)
	})

	return r
}
