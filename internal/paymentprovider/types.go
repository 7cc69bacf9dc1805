// Package paymentprovider моделирует внешний платёжный вызов при апгрейде
// подписки. Реальный платёжный шлюз не интегрируется: клиент имитирует
// сетевую задержку и подтверждает платёж.
package paymentprovider

import (
	"github.com/TheBrit007/rork-shield-watch/internal/models"
)

// ChargeRequest описывает параметры платежа за подписку.
type ChargeRequest struct {
	Username      string      `json:"username"`
	Tier          models.Tier `json:"tier"`
	PaymentMethod string      `json:"payment_method"`
}

// ChargeResponse описывает результат платежа.
type ChargeResponse struct {
	Confirmed bool   `json:"confirmed"`
	Reference string `json:"reference"`
}
