// Package gateway fronts the platform: API-key authentication, per-key rate
// limiting, CORS, and reverse proxying to the ingestion and retrieval
// services. The gateway resolves keys to owner identities; downstream
// services trust the X-Owner-ID header it injects.
package gateway

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
	"github.com/docforge/rag-pipeline/pkg/logger"
)

type ownerKey struct{}

// Authenticator resolves a raw API key to an owner ID.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (string, error)
}

// Limiter gates requests per key.
type Limiter interface {
	Allow(key string) bool
}

// CORS applies permissive cross-origin headers and answers preflights.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Auth validates the bearer API key and stores the resolved owner in the
// request context and the X-Owner-ID header for downstream services.
func Auth(authenticator Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawKey := bearerToken(r)
			if rawKey == "" {
				writeError(w, apperrors.New(apperrors.ErrUnauthorized, 401, "missing api key"))
				return
			}
			ownerID, err := authenticator.Authenticate(r.Context(), rawKey)
			if err != nil {
				logger.FromContext(r.Context()).Warn("authentication failed", "error", err)
				writeError(w, apperrors.New(apperrors.ErrUnauthorized, 401, "invalid api key"))
				return
			}
			ctx := context.WithValue(r.Context(), ownerKey{}, ownerID)
			r = r.WithContext(ctx)
			r.Header.Set("X-Owner-ID", ownerID)
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit rejects requests whose owner has exhausted their token bucket.
func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ownerID := OwnerFromContext(r.Context())
			if ownerID != "" && !limiter.Allow(ownerID) {
				writeError(w, apperrors.New(apperrors.ErrRateLimited, 429, "slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OwnerFromContext returns the authenticated owner, or "".
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

// Chain applies middlewares right to left, so the first listed runs first.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
