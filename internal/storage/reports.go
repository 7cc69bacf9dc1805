package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/TheBrit007/rork-shield-watch/internal/models"
)

// CreateReport вставляет новый репорт. Идентификатор и временная метка
// выставляются сервисом до вставки.
func (s *Storage) CreateReport(ctx context.Context, report models.Report) error {
	const op = "storage.CreateReport"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	media, err := json.Marshal(report.Media)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO reports (id, agency_id, latitude, longitude, description,
			      media, user_uid, username, created_at, upvotes, verified)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err = s.DB.ExecContext(ctx, query,
		report.ID, report.AgencyID, report.Latitude, report.Longitude, report.Description,
		media, report.UserUID, report.Username, report.Timestamp, report.Upvotes,
		report.Verified)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanReport(scan func(dest ...any) error) (*models.Report, error) {
	var item models.Report
	var media []byte
	var userUID, username sql.NullString
	if err := scan(&item.ID, &item.AgencyID, &item.Latitude, &item.Longitude,
		&item.Description, &media, &userUID, &username, &item.Timestamp,
		&item.Upvotes, &item.Verified); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(media, &item.Media); err != nil {
		return nil, err
	}
	if item.Media == nil {
		item.Media = []models.MediaItem{}
	}
	if userUID.Valid {
		item.UserUID = &userUID.String
	}
	if username.Valid {
		item.Username = &username.String
	}
	return &item, nil
}

const reportColumns = `id, agency_id, latitude, longitude, description, media,
			      user_uid, username, created_at, upvotes, verified`

// ReadReport возвращает репорт по его ID.
func (s *Storage) ReadReport(ctx context.Context, id string) (*models.Report, error) {
	const op = "storage.ReadReport"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	row := s.DB.QueryRowContext(ctx, query, id)
	result, err := scanReport(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListReports возвращает репорты в порядке убывания времени создания.
// Фильтр по близости использует грубое преобразование градусов в
// километры — так же считал исходный список.
func (s *Storage) ListReports(ctx context.Context, filter models.ReportFilter) ([]*models.Report, error) {
	const op = "storage.ListReports"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var rows *sql.Rows
	var err error
	if filter.Latitude != nil && filter.Longitude != nil && filter.RadiusKm != nil {
		query := `SELECT ` + reportColumns + `
				  FROM reports
				  WHERE sqrt(power(latitude - $1, 2) + power(longitude - $2, 2)) * 111 <= $3
				  ORDER BY created_at DESC
				  LIMIT $4 OFFSET $5`
		rows, err = s.DB.QueryContext(ctx, query,
			*filter.Latitude, *filter.Longitude, *filter.RadiusKm, filter.Limit, filter.Offset)
	} else {
		query := `SELECT ` + reportColumns + `
				  FROM reports
				  ORDER BY created_at DESC
				  LIMIT $1 OFFSET $2`
		rows, err = s.DB.QueryContext(ctx, query, filter.Limit, filter.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Report
	for rows.Next() {
		item, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, item)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpvoteReport увеличивает счётчик голосов и возвращает новое значение.
// Для отсутствующего ID возвращает 0 без ошибки.
func (s *Storage) UpvoteReport(ctx context.Context, id string) (int, error) {
	const op = "storage.UpvoteReport"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE reports SET upvotes = upvotes + 1 WHERE id = $1 RETURNING upvotes`
	var upvotes int
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&upvotes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return upvotes, nil
}
