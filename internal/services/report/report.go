// Package services (report) реализует бизнес-логику репортов: создание
// со списанием квоты, выборку с кешированием, голосование и временный
// выбор репорта на устройстве.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
	"github.com/TheBrit007/rork-shield-watch/internal/models"
	entitlement "github.com/TheBrit007/rork-shield-watch/internal/services/entitlement"
)

// ErrQuotaExceeded возвращается, когда квота публикаций исчерпана
// или её состояние не удалось прочитать.
var ErrQuotaExceeded = errors.New("post quota exceeded")

// Ключ кеша первой страницы ленты без фильтров.
const latestReportsKey = "reports:latest"

// selectedTTL ограничивает жизнь временного выбора репорта.
const selectedTTL = 24 * time.Hour

// ReportRepository описывает операции хранилища над репортами.
type ReportRepository interface {
	CreateReport(ctx context.Context, report models.Report) error
	ReadReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, filter models.ReportFilter) ([]*models.Report, error)
	UpvoteReport(ctx context.Context, id string) (int, error)
}

// Cache описывает операции кеша.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// QuotaConsumer списывает квоту публикаций и возвращает слот, если
// репорт не был сохранён.
type QuotaConsumer interface {
	TryConsumePost(ctx context.Context, id entitlement.Identity, reportID string) (bool, error)
	ReleasePost(ctx context.Context, id entitlement.Identity, reportID string) error
}

// EventPublisher публикует доменные события в брокер.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// ReportService реализует операции над репортами.
// events может быть nil: события публикуются по возможности,
// их потеря не влияет на результат операции.
type ReportService struct {
	repo   ReportRepository
	cache  Cache
	quota  QuotaConsumer
	events EventPublisher
	log    *slog.Logger
	now    func() time.Time
}

// NewReportService создаёт сервис репортов.
func NewReportService(repo ReportRepository, cache Cache, quota QuotaConsumer,
	events EventPublisher, log *slog.Logger) *ReportService {
	return &ReportService{
		repo:   repo,
		cache:  cache,
		quota:  quota,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *ReportService) WithClock(now func() time.Time) *ReportService {
	s.now = now
	return s
}

// Create создаёт репорт. Сначала атомарно списывается квота: если
// списание не прошло или упало, репорт не создаётся и возвращается
// ErrQuotaExceeded. Сгенерированная запись получает upvotes = 0 и
// verified = false независимо от входных данных.
func (s *ReportService) Create(ctx context.Context, ident entitlement.Identity, req models.DummyReport) (*models.Report, error) {
	const op = "services.report.Create"

	id := "report-" + uuid.NewString()
	ok, err := s.quota.TryConsumePost(ctx, ident, id)
	if err != nil {
		s.log.Error("quota consume failed, denying post", sl.Err(err))
		return nil, ErrQuotaExceeded
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	media := req.Media
	if media == nil {
		media = []models.MediaItem{}
	}
	report := models.Report{
		ID:          id,
		AgencyID:    req.AgencyID,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Description: req.Description,
		Media:       media,
		Timestamp:   s.now(),
		Upvotes:     0,
		Verified:    false,
	}
	if !ident.Anonymous() {
		report.UserUID = &ident.User.UID
		report.Username = &ident.User.Username
	}

	if err := s.repo.CreateReport(ctx, report); err != nil {
		// Слот уже списан, возвращаем его, иначе несохранённый репорт
		// съедает квоту.
		if relErr := s.quota.ReleasePost(ctx, ident, id); relErr != nil {
			s.log.Warn("failed to release consumed post slot", sl.Err(relErr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.events != nil {
		if err := s.events.Publish("report.created", report); err != nil {
			s.log.Warn("failed to publish report.created event", sl.Err(err))
		}
	}
	if err := s.cache.Invalidate(latestReportsKey); err != nil {
		s.log.Warn("failed to invalidate reports cache", sl.Err(err))
	}
	if err := s.cache.Set("report:"+id, report, time.Hour); err != nil {
		s.log.Warn("failed to cache report", sl.Err(err))
	}
	return &report, nil
}

// List возвращает репорты по фильтру. Первая страница ленты без
// координатного фильтра кешируется.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) ([]*models.Report, error) {
	const op = "services.report.List"

	cacheable := filter.Latitude == nil && filter.Longitude == nil &&
		filter.RadiusKm == nil && filter.Offset == 0
	if cacheable {
		var cached []*models.Report
		found, err := s.cache.Get(latestReportsKey, &cached)
		if err != nil {
			s.log.Warn("failed to read reports cache", sl.Err(err))
		}
		if found && len(cached) >= filter.Limit {
			return cached[:filter.Limit], nil
		}
	}

	result, err := s.repo.ListReports(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cacheable {
		if err := s.cache.Set(latestReportsKey, result, 5*time.Minute); err != nil {
			s.log.Warn("failed to cache reports", sl.Err(err))
		}
	}
	return result, nil
}

// Read возвращает репорт по ID, используя кеш.
func (s *ReportService) Read(ctx context.Context, id string) (*models.Report, error) {
	const op = "services.report.Read"

	var cached models.Report
	found, err := s.cache.Get("report:"+id, &cached)
	if err != nil {
		s.log.Warn("failed to read report cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	result, err := s.repo.ReadReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set("report:"+id, result, time.Hour); err != nil {
		s.log.Warn("failed to cache report", sl.Err(err))
	}
	return result, nil
}

// Upvote увеличивает счётчик голосов и возвращает новое значение.
// Для отсутствующего репорта возвращает 0 без ошибки.
func (s *ReportService) Upvote(ctx context.Context, id string) (int, error) {
	const op = "services.report.Upvote"

	upvotes, err := s.repo.UpvoteReport(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate("report:" + id); err != nil {
		s.log.Warn("failed to invalidate report cache", sl.Err(err))
	}
	if err := s.cache.Invalidate(latestReportsKey); err != nil {
		s.log.Warn("failed to invalidate reports cache", sl.Err(err))
	}
	return upvotes, nil
}

// Select запоминает выбранный на устройстве репорт. reportID == nil
// снимает выбор. Выбор живёт только в кеше и истекает сам.
func (s *ReportService) Select(ctx context.Context, deviceID string, reportID *string) error {
	const op = "services.report.Select"

	key := "report:selected:" + deviceID
	if reportID == nil {
		if err := s.cache.Invalidate(key); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	}
	if err := s.cache.Set(key, *reportID, selectedTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Selected возвращает выбранный на устройстве репорт.
// Второе значение false означает, что выбора нет.
func (s *ReportService) Selected(ctx context.Context, deviceID string) (string, bool, error) {
	const op = "services.report.Selected"

	var reportID string
	found, err := s.cache.Get("report:selected:"+deviceID, &reportID)
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return reportID, found, nil
}
