package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/docforge/rag-pipeline/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns each request a UUID (or honors one supplied by an
// upstream proxy), echoes it in the response, and threads it through the
// context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		ctx := logger.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
