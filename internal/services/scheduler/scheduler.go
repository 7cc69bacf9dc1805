// Package services (scheduler) периодически сбрасывает месячный счётчик
// публикаций бесплатных пользователей в годовщину начала их тарифа.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
)

// UsageResetter описывает операцию сброса месячного счётчика.
type UsageResetter interface {
	ResetMonthlyUsage(ctx context.Context, now time.Time) (int, error)
}

// SchedulerService запускает ежесуточный сброс счётчиков.
type SchedulerService struct {
	repo     UsageResetter
	log      *slog.Logger
	interval time.Duration
	now      func() time.Time
}

// NewSchedulerService создаёт планировщик с суточным интервалом.
func NewSchedulerService(repo UsageResetter, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:     repo,
		log:      log,
		interval: 24 * time.Hour,
		now:      time.Now,
	}
}

// Run выполняет сброс сразу при старте и далее раз в сутки до отмены
// контекста.
func (s *SchedulerService) Run(ctx context.Context) {
	s.resetUsage(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("usage reset scheduler stopped")
			return
		case <-ticker.C:
			s.resetUsage(ctx)
		}
	}
}

func (s *SchedulerService) resetUsage(ctx context.Context) {
	count, err := s.repo.ResetMonthlyUsage(ctx, s.now())
	if err != nil {
		s.log.Error("failed to reset monthly usage", sl.Err(err))
		return
	}
	if count > 0 {
		s.log.Info("monthly usage reset", slog.Int("users", count))
	}
}
