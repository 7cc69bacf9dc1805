package shieldwatch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/TheBrit007/rork-shield-watch/internal/cache"
	"github.com/TheBrit007/rork-shield-watch/internal/config"
	jwtlib "github.com/TheBrit007/rork-shield-watch/internal/lib/jwt"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/rabbitmq"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
	"github.com/TheBrit007/rork-shield-watch/internal/migrations"
	"github.com/TheBrit007/rork-shield-watch/internal/paymentprovider"
	authservice "github.com/TheBrit007/rork-shield-watch/internal/services/auth"
	entitlementservice "github.com/TheBrit007/rork-shield-watch/internal/services/entitlement"
	reportservice "github.com/TheBrit007/rork-shield-watch/internal/services/report"
	schedulerservice "github.com/TheBrit007/rork-shield-watch/internal/services/scheduler"
	"github.com/TheBrit007/rork-shield-watch/internal/storage"
)

// App собирает все зависимости HTTP-сервера.
type App struct {
	server    *http.Server
	logger    *slog.Logger
	db        *storage.Storage
	cache     *cache.Cache
	scheduler *schedulerservice.SchedulerService
	resetOn   bool
}

// New подключает хранилище, кеш и брокер, собирает сервисы и маршруты.
// Недоступный брокер не мешает запуску: события просто не публикуются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := storage.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	var publisher *rabbitmq.Publisher
	conn, err := rabbitmq.Connect(cfg.AddressRabbit, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		logger.Warn("rabbitmq unavailable, events will not be published", sl.Err(err))
	} else {
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetEventQueues())
		if err != nil {
			logger.Warn("rabbitmq channel setup failed, events will not be published", sl.Err(err))
		} else {
			publisher = rabbitmq.NewPublisher(ch)
		}
	}

	jwtMaker := jwtlib.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	payments := paymentprovider.NewClient(cfg.Payment.ProcessingDelay)

	entitlements := entitlementservice.NewEntitlementService(db, db, payments,
		entitlementservice.Limits{
			AnonymousLimit:   cfg.Quota.AnonymousLimit,
			AnonymousWindow:  cfg.Quota.AnonymousWindow,
			FreeMonthlyLimit: cfg.Quota.FreeMonthlyLimit,
		}, cfg.Payment.DefaultMethod, logger)
	var reportEvents reportservice.EventPublisher
	if publisher != nil {
		reportEvents = publisher
		entitlements.WithEvents(publisher)
	}
	reports := reportservice.NewReportService(db, cacheRedis, entitlements, reportEvents, logger)
	auth := authservice.NewAuthService(db, jwtMaker, logger)
	scheduler := schedulerservice.NewSchedulerService(db, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, jwtMaker, auth, entitlements, reports, db)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:    srv,
		logger:    logger,
		db:        db,
		cache:     cacheRedis,
		scheduler: scheduler,
		resetOn:   cfg.Quota.ResetFreeUsage,
	}, nil
}

// Run запускает HTTP-сервер и планировщик сброса счётчиков, завершает их
// по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	if a.resetOn {
		go a.scheduler.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close database", sl.Err(closeErr))
		}
		return err
	}
}
