package paymentprovider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Client имитирует клиент платёжного провайдера.
// Задержка processingDelay моделирует сетевой круговой путь.
type Client struct {
	processingDelay time.Duration
}

// NewClient создаёт клиент с заданной задержкой обработки.
func NewClient(processingDelay time.Duration) *Client {
	return &Client{processingDelay: processingDelay}
}

// Charge выполняет платёж. Вызов блокируется на время processingDelay и
// прерывается при отмене контекста.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	const op = "paymentprovider.Charge"

	timer := time.NewTimer(c.processingDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	case <-timer.C:
	}

	return &ChargeResponse{
		Confirmed: true,
		Reference: "pay-" + uuid.NewString(),
	}, nil
}
