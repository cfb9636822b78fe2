package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"github.com/greenwood-edu/lostfound-auth/session"
	"github.com/greenwood-edu/lostfound-auth/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyClaims stores parsed token claims
const ContextKeyClaims ContextKey = "claims"

// ClaimsFromContext returns the verified claims attached by WithClaims or
// RequireAuth, if any.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*token.Claims)
	return claims, ok
}

// WithClaims annotates the request with verified claims when a live bearer
// token is present, and passes anonymous requests through untouched.
func (s *Server) WithClaims(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims := s.liveClaims(r); claims != nil {
			r = r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests that do not carry a live bearer token.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := s.liveClaims(r)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ContextKeyClaims, claims)))
	})
}

// liveClaims extracts and verifies the bearer token, additionally checking
// that its jti has not been revoked or rotated away.
func (s *Server) liveClaims(r *http.Request) *token.Claims {
	raw := bearerToken(r)
	if raw == "" {
		return nil
	}
	claims, err := s.issuer.Verify(raw)
	if err != nil {
		return nil
	}
	if !s.tokens.IsLive(r.Context(), claims.ID) {
		return nil
	}
	return claims
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// snapshotFromRequest builds the session view the guard decides on. On the
// server there is no pending state: a request either carries live claims or
// it is anonymous.
func (s *Server) snapshotFromRequest(r *http.Request) session.Snapshot {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return session.Snapshot{State: session.StateAnonymous}
	}
	user := claims.User()
	return session.Snapshot{
		State: session.StateAuthenticated,
		Session: &session.Session{
			UserID:      user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
			Email:       user.Email,
			Role:        user.Role,
			ExpiresAt:   claims.ExpiresAt.Time,
		},
	}
}

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_auth_http_requests_total",
		Help: "HTTP requests handled, by method, path pattern and status.",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lostfound_auth_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
)

// Metrics records request counts and latency per route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		pattern := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}

// RequestLogger emits one structured log line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// routePattern keeps metric cardinality bounded by labeling with the chi
// route pattern rather than the raw path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
