// Package server exposes the IAM and directory services over HTTP.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/terraconstructs/estate/internal/services/directory"
	"github.com/terraconstructs/estate/internal/services/iam"
	"github.com/terraconstructs/estate/internal/telemetry"
	"github.com/terraconstructs/estate/pkg/api"
)

// RouterOptions controls the construction of the HTTP router.
type RouterOptions struct {
	IAM       iam.Service
	Directory *directory.Service
	Logger    *slog.Logger
	Metrics   *telemetry.ServerMetrics

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string

	// SessionCacheSize bounds the authenticated-token cache; 0 disables it.
	SessionCacheSize int
	// SessionCacheTTL bounds how long a cached principal is trusted.
	SessionCacheTTL time.Duration

	HealthHandler http.HandlerFunc
}

// CORSOptions returns the API's CORS policy for origins.
func CORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles the chi router with shared middleware and every route
// mounted.
func NewRouter(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.SessionCacheTTL <= 0 {
		opts.SessionCacheTTL = 30 * time.Second
	}
	cache := newSessionCache(opts.SessionCacheSize, opts.SessionCacheTTL)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(CORSOptions(opts.CORSOrigins)))
	r.Use(requestMetrics(opts.Metrics))

	health := opts.HealthHandler
	if health == nil {
		health = defaultHealthHandler
	}
	r.Get("/health", health)

	authed := requireSession(opts.IAM, cache, log)

	ah := &authHandlers{iam: opts.IAM, cache: cache, log: log}
	r.Route(api.AuthPrefix, func(r chi.Router) {
		r.Post("/token", ah.token)
		r.Post("/signup", ah.signup)
		r.Post("/recover", ah.recover)
		r.Post("/recover/confirm", ah.recoverConfirm)
		r.Group(func(r chi.Router) {
			r.Use(authed)
			r.Post("/logout", ah.logout)
			r.Get("/user", ah.user)
		})
	})

	if opts.Directory != nil {
		rh := &restHandlers{dir: opts.Directory, log: log}
		r.Route(api.RestPrefix, func(r chi.Router) {
			r.Use(authed)
			r.Get("/users/{id}/roles", rh.listRoles)
			r.Post("/users/{id}/roles", rh.grantRole)
			r.Delete("/users/{id}/roles/{role}", rh.revokeRole)
			r.Get("/profiles/{id}", rh.getProfile)
			r.Post("/profiles/{id}", rh.createProfile)
			r.Patch("/profiles/{id}", rh.updateProfile)
			r.Get("/verifications/{id}", rh.getVerification)
		})
	}

	return r
}

// NewH2CHandler wraps the router with an h2c server so HTTP/2 clients work
// without TLS in development.
func NewH2CHandler(opts RouterOptions) http.Handler {
	return h2c.NewHandler(NewRouter(opts), &http2.Server{})
}
