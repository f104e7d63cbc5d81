package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/terraconstructs/estate/internal/auth"
	"github.com/terraconstructs/estate/internal/services/iam"
	"github.com/terraconstructs/estate/internal/telemetry"
	"github.com/terraconstructs/estate/pkg/api"
)

// requestLogger logs one structured line per request.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// requestMetrics records count and latency per route pattern.
func requestMetrics(m *telemetry.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.RecordRequest(r.Context(), r.Method, route, strconv.Itoa(status), float64(time.Since(start).Microseconds())/1000)
		})
	}
}

// sessionCache remembers authenticated principals by token hash so hot
// bearer tokens skip the database. Sign-out evicts explicitly; entries
// otherwise live for the cache TTL.
type sessionCache struct {
	lru *expirable.LRU[string, auth.Principal]
}

func newSessionCache(size int, ttl time.Duration) *sessionCache {
	if size <= 0 {
		return nil
	}
	return &sessionCache{lru: expirable.NewLRU[string, auth.Principal](size, nil, ttl)}
}

func (c *sessionCache) get(hash string) (auth.Principal, bool) {
	if c == nil {
		return auth.Principal{}, false
	}
	p, ok := c.lru.Get(hash)
	if ok && time.Now().Unix() >= p.ExpiresAt {
		c.lru.Remove(hash)
		return auth.Principal{}, false
	}
	return p, ok
}

func (c *sessionCache) add(hash string, p auth.Principal) {
	if c != nil {
		c.lru.Add(hash, p)
	}
}

func (c *sessionCache) evict(hash string) {
	if c != nil {
		c.lru.Remove(hash)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireSession resolves the bearer token to a principal or answers 401.
func requireSession(svc iam.Service, cache *sessionCache, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, api.CodeUnauthorized, "missing bearer token")
				return
			}

			hash := auth.HashToken(token)
			principal, ok := cache.get(hash)
			if !ok {
				p, err := svc.Authenticate(r.Context(), token)
				if err != nil {
					writeServiceError(w, r, log, err)
					return
				}
				principal = *p
				cache.add(hash, principal)
			}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

func principalOf(ctx context.Context) auth.Principal {
	p, _ := auth.PrincipalFromContext(ctx)
	return p
}
