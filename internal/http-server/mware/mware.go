// Package mware содержит middleware HTTP‑сервера: идентификацию устройства,
// разбор JWT‑токена и ограничение частоты запросов.
//
// Идентификация двухслойная. DeviceID всегда кладёт в контекст идентификатор
// устройства из заголовка X-Device-Id (или генерирует новый). Identity
// дополнительно разбирает JWT из Authorization, если он есть: запрос без
// токена проходит дальше анонимным, запрос с негодным токеном отклоняется.
package mware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/response"
	jwtlib "github.com/TheBrit007/rork-shield-watch/internal/lib/jwt"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// UserKey — ключ для имени пользователя в контексте.
	UserKey Key = "username"
	// UserUIDKey — ключ для UID пользователя в контексте.
	UserUIDKey Key = "user_uid"
	// DeviceIDKey — ключ для идентификатора устройства в контексте.
	DeviceIDKey Key = "device_id"
)

// DeviceIDHeader — заголовок, в котором клиент передаёт идентификатор
// устройства.
const DeviceIDHeader = "X-Device-Id"

// TokenParser описывает разбор JWT-токена.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwtlib.CustomClaims, error)
}

// DeviceID кладёт идентификатор устройства в контекст запроса.
// Если клиент не прислал заголовок, идентификатор генерируется: такой
// запрос получает свежую квоту, но не сможет переиспользовать её между
// запросами.
func DeviceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID := r.Header.Get(DeviceIDHeader)
		if deviceID == "" {
			deviceID = uuid.NewString()
			w.Header().Set(DeviceIDHeader, deviceID)
		}
		ctx := context.WithValue(r.Context(), DeviceIDKey, deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Identity возвращает middleware, разбирающее JWT из заголовка Authorization.
// Запрос без заголовка проходит дальше анонимным. Запрос с заголовком,
// который не разбирается, отклоняется с 401: молча понижать предъявленный
// токен до анонимности нельзя.
func Identity(parser TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "mware.Identity"

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("malformed authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := parser.ParseToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), UserKey, claims.Username)
			ctx = context.WithValue(ctx, UserUIDKey, claims.UserUID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser возвращает middleware, пропускающее только аутентифицированные
// запросы.
func RequireUser(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if UsernameFromContext(r.Context()) == "" {
				log.Error("authentication required")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware ограничивает частоту запросов общим лимитером.
func RateLimitMiddleware(limiter *rate.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				log.Error("too many requests")
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, response.Error("too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UsernameFromContext возвращает имя пользователя из контекста.
// Пустая строка означает анонимный запрос.
func UsernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(UserKey).(string)
	return username
}

// DeviceIDFromContext возвращает идентификатор устройства из контекста.
func DeviceIDFromContext(ctx context.Context) string {
	deviceID, _ := ctx.Value(DeviceIDKey).(string)
	return deviceID
}
