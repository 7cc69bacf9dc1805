package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/TheBrit007/rork-shield-watch/internal/models"
)

// GetDevice возвращает состояние устройства.
// Для неизвестного устройства возвращает запись с значениями по умолчанию.
func (s *Storage) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	const op = "storage.GetDevice"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT device_id, has_seen_welcome, created_at
			  FROM devices WHERE device_id = $1`
	d := &models.Device{}
	err := s.DB.QueryRowContext(ctx, query, deviceID).
		Scan(&d.DeviceID, &d.HasSeenWelcome, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Device{DeviceID: deviceID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// SetHasSeenWelcome сохраняет признак просмотра приветственного экрана,
// создавая запись устройства при первом обращении.
func (s *Storage) SetHasSeenWelcome(ctx context.Context, deviceID string, seen bool) error {
	const op = "storage.SetHasSeenWelcome"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO devices (device_id, has_seen_welcome)
			  VALUES ($1, $2)
			  ON CONFLICT (device_id) DO UPDATE SET has_seen_welcome = $2`
	if _, err := s.DB.ExecContext(ctx, query, deviceID, seen); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
