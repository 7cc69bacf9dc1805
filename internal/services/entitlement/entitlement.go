// Package services (entitlement) реализует движок квот публикаций.
// Движок решает три вопроса: кто публикует (анонимное устройство или
// пользователь), сколько публикаций осталось и можно ли списать ещё одну.
// Решение всегда смещено в сторону отказа: при любой ошибке чтения
// состояния публикация запрещается.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/window"
	"github.com/TheBrit007/rork-shield-watch/internal/models"
	"github.com/TheBrit007/rork-shield-watch/internal/paymentprovider"
)

// UserRepository описывает операции хранилища над пользователями,
// нужные движку квот.
type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	ConsumeMonthlyPost(ctx context.Context, username string, limit int) (bool, error)
	IncrementMonthlyPosts(ctx context.Context, username string) error
	DecrementMonthlyPosts(ctx context.Context, username string) error
	UpdateSubscription(ctx context.Context, username string, sub models.Subscription) (int, error)
}

// AnonymousPostRepository описывает операции над журналом анонимных
// публикаций.
type AnonymousPostRepository interface {
	ListAnonymousPosts(ctx context.Context, deviceID string) ([]models.AnonymousPost, error)
	CreateAnonymousPost(ctx context.Context, deviceID, reportID string, ts time.Time) error
	ConsumeAnonymousPost(ctx context.Context, deviceID, reportID string, ts, windowStart time.Time, limit int) (bool, error)
	DeleteAnonymousPost(ctx context.Context, deviceID, reportID string) error
}

// PaymentProvider описывает платёжный вызов при апгрейде подписки.
type PaymentProvider interface {
	Charge(ctx context.Context, req paymentprovider.ChargeRequest) (*paymentprovider.ChargeResponse, error)
}

// EventPublisher публикует доменные события в брокер.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// Limits задаёт лимиты публикаций движка.
type Limits struct {
	AnonymousLimit   int
	AnonymousWindow  time.Duration
	FreeMonthlyLimit int
}

// Identity определяет, от чьего имени выполняется запрос.
// User == nil означает анонимное устройство.
type Identity struct {
	DeviceID string
	User     *models.User
}

// Anonymous сообщает, что запрос идёт без аккаунта.
func (i Identity) Anonymous() bool {
	return i.User == nil
}

// Snapshot — моментальный снимок квоты. Снимок не кешируется: каждый
// вызов пересчитывает состояние заново, устаревание окна происходит
// само собой между вызовами.
// Для безлимитных уровней Unlimited == true, числовые поля не несут смысла.
// Remaining может уйти в минус, если счётчик перерасходован
// (например, после понижения лимита в конфиге); отображение для
// клиента обрезает его до нуля.
type Snapshot struct {
	Remaining int  `json:"remaining"`
	Limit     int  `json:"limit"`
	Unlimited bool `json:"unlimited"`
	CanPost   bool `json:"can_post"`
}

// EntitlementService вычисляет и списывает квоты публикаций.
type EntitlementService struct {
	users         UserRepository
	anon          AnonymousPostRepository
	payments      PaymentProvider
	limits        Limits
	defaultMethod string
	events        EventPublisher
	log           *slog.Logger
	now           func() time.Time
}

// NewEntitlementService создаёт движок квот.
func NewEntitlementService(users UserRepository, anon AnonymousPostRepository,
	payments PaymentProvider, limits Limits, defaultMethod string,
	log *slog.Logger) *EntitlementService {
	return &EntitlementService{
		users:         users,
		anon:          anon,
		payments:      payments,
		limits:        limits,
		defaultMethod: defaultMethod,
		log:           log,
		now:           time.Now,
	}
}

// WithClock подменяет источник времени. Используется в тестах.
func (s *EntitlementService) WithClock(now func() time.Time) *EntitlementService {
	s.now = now
	return s
}

// WithEvents включает публикацию событий об апгрейдах. Без вызова
// события не публикуются.
func (s *EntitlementService) WithEvents(events EventPublisher) *EntitlementService {
	s.events = events
	return s
}

// ResolveIdentity строит Identity по имени пользователя из токена и
// идентификатору устройства из заголовка. Пустое имя — анонимный запрос.
// Если пользователь не читается из хранилища, запрос деградирует до
// анонимного: отказ по квоте безопаснее, чем ошибка на весь запрос.
func (s *EntitlementService) ResolveIdentity(ctx context.Context, username, deviceID string) Identity {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	if username == "" {
		return Identity{DeviceID: deviceID}
	}
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		s.log.Warn("failed to resolve user, treating request as anonymous",
			slog.String("username", username), sl.Err(err))
		return Identity{DeviceID: deviceID}
	}
	return Identity{DeviceID: deviceID, User: user}
}

// Snapshot возвращает текущее состояние квоты. Метод не возвращает
// ошибку: сбой чтения журнала превращается в нулевой остаток.
func (s *EntitlementService) Snapshot(ctx context.Context, id Identity) Snapshot {
	if id.Anonymous() {
		posts, err := s.anon.ListAnonymousPosts(ctx, id.DeviceID)
		if err != nil {
			s.log.Error("failed to list anonymous posts, denying quota",
				slog.String("device_id", id.DeviceID), sl.Err(err))
			return Snapshot{Limit: s.limits.AnonymousLimit}
		}
		timestamps := make([]time.Time, 0, len(posts))
		for _, p := range posts {
			timestamps = append(timestamps, p.Timestamp)
		}
		recent := window.CountRecent(timestamps, s.limits.AnonymousWindow, s.now())
		remaining := s.limits.AnonymousLimit - recent
		return Snapshot{
			Remaining: remaining,
			Limit:     s.limits.AnonymousLimit,
			CanPost:   remaining > 0,
		}
	}

	sub := id.User.Subscription
	switch {
	case sub.Tier.Unlimited():
		return Snapshot{Unlimited: true, CanPost: true}
	case sub.Tier == models.TierFree:
		remaining := s.limits.FreeMonthlyLimit - id.User.PostsThisMonth
		return Snapshot{
			Remaining: remaining,
			Limit:     s.limits.FreeMonthlyLimit,
			CanPost:   remaining > 0,
		}
	default:
		// Гость и любой неизвестный уровень публиковать не могут.
		return Snapshot{}
	}
}

// RemainingPosts возвращает остаток публикаций. Второе значение true
// означает безлимит, остаток тогда не имеет смысла.
func (s *EntitlementService) RemainingPosts(ctx context.Context, id Identity) (int, bool) {
	snap := s.Snapshot(ctx, id)
	return snap.Remaining, snap.Unlimited
}

// PostLimit возвращает лимит публикаций уровня. Второе значение true
// означает безлимит.
func (s *EntitlementService) PostLimit(id Identity) (int, bool) {
	if id.Anonymous() {
		return s.limits.AnonymousLimit, false
	}
	sub := id.User.Subscription
	switch {
	case sub.Tier.Unlimited():
		return 0, true
	case sub.Tier == models.TierFree:
		return s.limits.FreeMonthlyLimit, false
	default:
		return 0, false
	}
}

// CanPost сообщает, разрешена ли сейчас публикация.
func (s *EntitlementService) CanPost(ctx context.Context, id Identity) bool {
	return s.Snapshot(ctx, id).CanPost
}

// RecordPost фиксирует факт публикации без проверки квоты.
// Между CanPost и RecordPost есть щель для гонки; новый код должен
// использовать TryConsumePost, эта пара оставлена для совместимости.
func (s *EntitlementService) RecordPost(ctx context.Context, id Identity, reportID string) error {
	if id.Anonymous() {
		return s.anon.CreateAnonymousPost(ctx, id.DeviceID, reportID, s.now())
	}
	if id.User.Subscription.Tier == models.TierFree {
		return s.users.IncrementMonthlyPosts(ctx, id.User.Username)
	}
	// Премиальные уровни расход не учитывают.
	return nil
}

// TryConsumePost атомарно проверяет квоту и списывает одну публикацию.
// Хранилище сериализует проверку и запись (условным UPDATE для free,
// транзакцией под advisory-блокировкой устройства для анонимов), поэтому
// два конкурентных вызова не могут оба пройти на последнем слоте.
func (s *EntitlementService) TryConsumePost(ctx context.Context, id Identity, reportID string) (bool, error) {
	if id.Anonymous() {
		now := s.now()
		return s.anon.ConsumeAnonymousPost(ctx, id.DeviceID, reportID,
			now, now.Add(-s.limits.AnonymousWindow), s.limits.AnonymousLimit)
	}
	sub := id.User.Subscription
	switch {
	case sub.Tier.Unlimited():
		return true, nil
	case sub.Tier == models.TierFree:
		return s.users.ConsumeMonthlyPost(ctx, id.User.Username, s.limits.FreeMonthlyLimit)
	default:
		return false, nil
	}
}

// ReleasePost возвращает слот, списанный TryConsumePost, если репорт
// так и не был сохранён. Для анонимов удаляется запись журнала, для
// free уменьшается месячный счётчик. Безлимитные уровни расход не
// учитывают, возвращать нечего.
func (s *EntitlementService) ReleasePost(ctx context.Context, id Identity, reportID string) error {
	if id.Anonymous() {
		return s.anon.DeleteAnonymousPost(ctx, id.DeviceID, reportID)
	}
	if id.User.Subscription.Tier == models.TierFree {
		return s.users.DecrementMonthlyPosts(ctx, id.User.Username)
	}
	return nil
}

// UpgradeSubscription переводит пользователя на платный уровень.
// Возвращает true только при успешном платеже и записи подписки.
// Анонимный запрос и недопустимый целевой уровень дают false без
// побочных эффектов. Месячный счётчик публикаций при апгрейде
// не сбрасывается.
func (s *EntitlementService) UpgradeSubscription(ctx context.Context, id Identity, tier models.Tier, paymentMethod string) bool {
	if id.Anonymous() {
		s.log.Warn("anonymous upgrade attempt rejected",
			slog.String("device_id", id.DeviceID))
		return false
	}
	if tier != models.TierMonthly && tier != models.TierYearly {
		s.log.Warn("upgrade to unsupported tier rejected",
			slog.String("username", id.User.Username), slog.String("tier", string(tier)))
		return false
	}
	if paymentMethod == "" {
		paymentMethod = s.defaultMethod
	}

	resp, err := s.payments.Charge(ctx, paymentprovider.ChargeRequest{
		Username:      id.User.Username,
		Tier:          tier,
		PaymentMethod: paymentMethod,
	})
	if err != nil {
		s.log.Error("payment failed, subscription unchanged",
			slog.String("username", id.User.Username), sl.Err(err))
		return false
	}
	if !resp.Confirmed {
		s.log.Warn("payment not confirmed, subscription unchanged",
			slog.String("username", id.User.Username))
		return false
	}

	now := s.now()
	duration := 30 * 24 * time.Hour
	if tier == models.TierYearly {
		duration = 365 * 24 * time.Hour
	}
	endDate := now.Add(duration)
	sub := models.Subscription{
		Tier:          tier,
		StartDate:     now,
		EndDate:       &endDate,
		AutoRenew:     true,
		PaymentMethod: paymentMethod,
	}
	rows, err := s.users.UpdateSubscription(ctx, id.User.Username, sub)
	if err != nil {
		s.log.Error("failed to store subscription",
			slog.String("username", id.User.Username), sl.Err(err))
		return false
	}
	if rows == 0 {
		s.log.Warn("subscription update matched no user",
			slog.String("username", id.User.Username))
		return false
	}

	if s.events != nil {
		event := map[string]any{
			"username": id.User.Username,
			"tier":     tier,
			"end_date": endDate,
		}
		if err := s.events.Publish("subscription.upgraded", event); err != nil {
			s.log.Warn("failed to publish subscription.upgraded event", sl.Err(err))
		}
	}

	s.log.Info("subscription upgraded",
		slog.String("username", id.User.Username),
		slog.String("tier", string(tier)),
		slog.String("reference", resp.Reference))
	return true
}
