package mware_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/mware"
	jwtlib "github.com/TheBrit007/rork-shield-watch/internal/lib/jwt"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }

func newNoopLogger() *slog.Logger {
	return slog.New(discardHandler{})
}

func okHandler(captured *http.Request) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = *r
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestDeviceID(t *testing.T) {
	t.Run("header value lands in context", func(t *testing.T) {
		var captured http.Request
		handler := mware.DeviceID(okHandler(&captured))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(mware.DeviceIDHeader, "device-1")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "device-1", mware.DeviceIDFromContext(captured.Context()))
	})

	t.Run("missing header gets a generated id", func(t *testing.T) {
		var captured http.Request
		handler := mware.DeviceID(okHandler(&captured))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		generated := mware.DeviceIDFromContext(captured.Context())
		assert.NotEmpty(t, generated)
		assert.Equal(t, generated, w.Header().Get(mware.DeviceIDHeader))
	})
}

func TestIdentity(t *testing.T) {
	maker := jwtlib.NewJWTMaker("test-secret-key", time.Hour)
	log := newNoopLogger()

	t.Run("no header passes through anonymously", func(t *testing.T) {
		var captured http.Request
		handler := mware.Identity(maker, log)(okHandler(&captured))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, mware.UsernameFromContext(captured.Context()))
	})

	t.Run("valid token puts identity in context", func(t *testing.T) {
		token, err := maker.GenerateToken("alice", "uid-1")
		require.NoError(t, err)

		var captured http.Request
		handler := mware.Identity(maker, log)(okHandler(&captured))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", mware.UsernameFromContext(captured.Context()))
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		handler := mware.Identity(maker, log)(okHandler(nil))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("non bearer scheme is rejected", func(t *testing.T) {
		handler := mware.Identity(maker, log)(okHandler(nil))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireUser(t *testing.T) {
	log := newNoopLogger()
	maker := jwtlib.NewJWTMaker("test-secret-key", time.Hour)

	t.Run("anonymous request is rejected", func(t *testing.T) {
		handler := mware.RequireUser(log)(okHandler(nil))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("authenticated request passes", func(t *testing.T) {
		token, err := maker.GenerateToken("alice", "uid-1")
		require.NoError(t, err)

		chained := mware.Identity(maker, log)(mware.RequireUser(log)(okHandler(nil)))
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		chained.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := rate.NewLimiter(rate.Limit(1), 1)
	handler := mware.RateLimitMiddleware(limiter, newNoopLogger())(okHandler(nil))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
