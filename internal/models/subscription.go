// Package models содержит доменные структуры приложения: пользователей,
// подписки, репорты и записи анонимных постов, а также вспомогательные
// типы для приёма данных из JSON-запросов.
package models

import "time"

// Tier обозначает уровень подписки пользователя.
type Tier string

// Возможные уровни подписки. У пользователя в каждый момент времени
// активен ровно один уровень.
const (
	TierGuest   Tier = "guest"
	TierFree    Tier = "free"
	TierMonthly Tier = "monthly"
	TierYearly  Tier = "yearly"
)

// Unlimited сообщает, даёт ли уровень безлимитную публикацию.
func (t Tier) Unlimited() bool {
	return t == TierMonthly || t == TierYearly
}

// Subscription описывает текущую подписку пользователя.
// EndDate может быть nil — для бесплатного уровня дата окончания отсутствует.
type Subscription struct {
	Tier          Tier       `json:"tier"`
	StartDate     time.Time  `json:"start_date"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	AutoRenew     bool       `json:"auto_renew"`
	PaymentMethod string     `json:"payment_method,omitempty"`
}

// DummyUpgrade используется для приёма запроса на смену уровня подписки.
type DummyUpgrade struct {
	Tier          string `json:"tier" validate:"required,oneof=monthly yearly"` // Целевой уровень
	PaymentMethod string `json:"payment_method"`                                // Способ оплаты, по умолчанию "Google Pay"
}
