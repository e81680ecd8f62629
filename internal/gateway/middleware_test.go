package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docforge/rag-pipeline/pkg/errors"
)

type fakeAuth struct {
	owners map[string]string
}

func (f *fakeAuth) Authenticate(ctx context.Context, rawKey string) (string, error) {
	if owner, ok := f.owners[rawKey]; ok {
		return owner, nil
	}
	return "", apperrors.ErrUnauthorized
}

type fakeLimiter struct{ allow bool }

func (f *fakeLimiter) Allow(key string) bool { return f.allow }

func okHandler(t *testing.T, wantOwner string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wantOwner != "" {
			assert.Equal(t, wantOwner, OwnerFromContext(r.Context()))
			assert.Equal(t, wantOwner, r.Header.Get("X-Owner-ID"))
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthAcceptsValidKey(t *testing.T) {
	auth := &fakeAuth{owners: map[string]string{"rp_valid": "owner-1"}}
	h := Auth(auth)(okHandler(t, "owner-1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("Authorization", "Bearer rp_valid")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRejectsMissingKey(t *testing.T) {
	h := Auth(&fakeAuth{})(okHandler(t, ""))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsUnknownKey(t *testing.T) {
	h := Auth(&fakeAuth{})(okHandler(t, ""))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer rp_nope")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthStripsClientSuppliedOwnerHeader(t *testing.T) {
	auth := &fakeAuth{owners: map[string]string{"rp_valid": "owner-real"}}
	h := Auth(auth)(okHandler(t, "owner-real"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer rp_valid")
	req.Header.Set("X-Owner-ID", "owner-spoofed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitBlocks(t *testing.T) {
	auth := &fakeAuth{owners: map[string]string{"rp_valid": "owner-1"}}
	h := Chain(okHandler(t, ""), Auth(auth), RateLimit(&fakeLimiter{allow: false}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer rp_valid")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(okHandler(t, ""))
	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler(t, ""), mk("first"), mk("second"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second"}, order)
}
