// Package shieldwatch предоставляет сборку и маршруты основного приложения.
package shieldwatch

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/entitlementstatus"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/login"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/profile"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/register"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/reportcreate"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/reportlist"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/reportread"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/reportupvote"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/selectreport"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/social"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/upgrade"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/handlers/welcome"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/mware"
	jwtlib "github.com/TheBrit007/rork-shield-watch/internal/lib/jwt"
	authservice "github.com/TheBrit007/rork-shield-watch/internal/services/auth"
	entitlementservice "github.com/TheBrit007/rork-shield-watch/internal/services/entitlement"
	reportservice "github.com/TheBrit007/rork-shield-watch/internal/services/report"
	"github.com/TheBrit007/rork-shield-watch/internal/storage"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwtlib.Maker,
	auth *authservice.AuthService, entitlements *entitlementservice.EntitlementService,
	reports *reportservice.ReportService, db *storage.Storage) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	limiter := rate.NewLimiter(rate.Limit(50), 100)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			mware.DeviceID,
			mware.Identity(jwtMaker, logger),
			mware.RateLimitMiddleware(limiter, logger),
		)

		// Открытые конечные точки: публикация и чтение доступны и
		// анонимным устройствам, квоту проверяет движок.
		r.Post("/register", register.New(logger, auth))
		r.Post("/login", login.New(logger, auth))
		r.Post("/auth/social", social.New(logger, auth))

		r.Get("/reports", reportlist.New(logger, reports))
		r.Post("/reports", reportcreate.New(logger, entitlements, reports))
		r.Get("/reports/selected", selectreport.NewRead(logger, reports))
		r.Put("/reports/selected", selectreport.New(logger, reports))
		r.Get("/reports/{id}", reportread.New(logger, reports))
		r.Post("/reports/{id}/upvote", reportupvote.New(logger, reports))

		r.Get("/entitlement", entitlementstatus.New(logger, entitlements))

		r.Get("/device/welcome", welcome.New(logger, db))
		r.Put("/device/welcome", welcome.NewUpdate(logger, db))

		// Группа только для аутентифицированных пользователей
		r.Group(func(r chi.Router) {
			r.Use(mware.RequireUser(logger))
			r.Post("/subscription/upgrade", upgrade.New(logger, entitlements))
			r.Put("/profile", profile.New(logger, auth))
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
