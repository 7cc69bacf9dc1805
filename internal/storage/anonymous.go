package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/TheBrit007/rork-shield-watch/internal/models"
)

// ListAnonymousPosts возвращает все записи анонимных публикаций устройства
// в порядке добавления. Записи за пределами скользящего окна не
// отфильтровываются здесь: устаревание вычисляет движок квот при чтении.
func (s *Storage) ListAnonymousPosts(ctx context.Context, deviceID string) ([]models.AnonymousPost, error) {
	const op = "storage.ListAnonymousPosts"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT report_id, created_at
			  FROM anonymous_posts
			  WHERE device_id = $1
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.AnonymousPost
	for rows.Next() {
		var item models.AnonymousPost
		if err := rows.Scan(&item.ReportID, &item.Timestamp); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateAnonymousPost добавляет запись об анонимной публикации.
// Квоту не проверяет: это legacy-путь recordPost, вызывающая сторона
// обязана проверить canPost заранее.
func (s *Storage) CreateAnonymousPost(ctx context.Context, deviceID, reportID string, ts time.Time) error {
	const op = "storage.CreateAnonymousPost"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO anonymous_posts (device_id, report_id, created_at)
			  VALUES ($1, $2, $3)`
	if _, err := s.DB.ExecContext(ctx, query, deviceID, reportID, ts); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConsumeAnonymousPost атомарно проверяет квоту устройства и добавляет
// запись. Возвращает false, если в окне (created_at > windowStart) уже
// limit записей. В журнале нет строки, которую можно было бы
// заблокировать условным UPDATE, поэтому подсчёт и вставка выполняются
// в транзакции под advisory-блокировкой устройства: конкурентные вызовы
// по одному устройству сериализуются и не могут оба пройти на
// последнем слоте.
func (s *Storage) ConsumeAnonymousPost(ctx context.Context, deviceID, reportID string, ts, windowStart time.Time, limit int) (bool, error) {
	const op = "storage.ConsumeAnonymousPost"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, deviceID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO anonymous_posts (device_id, report_id, created_at)
			  SELECT $1, $2, $3
			  WHERE (SELECT COUNT(*) FROM anonymous_posts
			         WHERE device_id = $1 AND created_at > $4) < $5`
	result, err := tx.ExecContext(ctx, query, deviceID, reportID, ts, windowStart, limit)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// DeleteAnonymousPost удаляет запись журнала по паре устройство-репорт.
// Используется для возврата слота, если репорт не был сохранён.
func (s *Storage) DeleteAnonymousPost(ctx context.Context, deviceID, reportID string) error {
	const op = "storage.DeleteAnonymousPost"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM anonymous_posts WHERE device_id = $1 AND report_id = $2`
	if _, err := s.DB.ExecContext(ctx, query, deviceID, reportID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
