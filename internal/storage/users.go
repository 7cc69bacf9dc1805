package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TheBrit007/rork-shield-watch/internal/models"
)

// RegisterUser сохраняет нового пользователя и возвращает его UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newID string
	query := `INSERT INTO users (username, email, password_hash, avatar, auth_provider,
			      created_at, tier, tier_start_date, tier_end_date, auto_renew,
			      payment_method, posts_this_month)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Avatar, user.AuthProvider,
		user.CreatedAt, user.Subscription.Tier, user.Subscription.StartDate,
		user.Subscription.EndDate, user.Subscription.AutoRenew,
		user.Subscription.PaymentMethod, user.PostsThisMonth).Scan(&newID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var avatar sql.NullString
	var tierEndDate sql.NullTime
	if err := row.Scan(&u.UID, &u.Username, &u.Email, &u.PasswordHash, &avatar,
		&u.AuthProvider, &u.CreatedAt, &u.Subscription.Tier, &u.Subscription.StartDate,
		&tierEndDate, &u.Subscription.AutoRenew, &u.Subscription.PaymentMethod,
		&u.PostsThisMonth); err != nil {
		return nil, err
	}
	if avatar.Valid {
		u.Avatar = &avatar.String
	}
	if tierEndDate.Valid {
		u.Subscription.EndDate = &tierEndDate.Time
	}
	return u, nil
}

const userColumns = `uid, username, email, password_hash, avatar, auth_provider,
			      created_at, tier, tier_start_date, tier_end_date, auto_renew,
			      payment_method, posts_this_month`

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
// Используется входом через внешних провайдеров.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// UpdateSubscription заменяет подписку пользователя.
// Счётчик posts_this_month сознательно не трогается: апгрейд посреди
// периода не прощает уже израсходованное.
func (s *Storage) UpdateSubscription(ctx context.Context, username string, sub models.Subscription) (int, error) {
	const op = "storage.UpdateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET tier = $1, tier_start_date = $2, tier_end_date = $3,
			      auto_renew = $4, payment_method = $5
			  WHERE username = $6`
	result, err := s.DB.ExecContext(ctx, query,
		sub.Tier, sub.StartDate, sub.EndDate, sub.AutoRenew, sub.PaymentMethod, username)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdateProfile частично обновляет профиль пользователя.
// nil-поля не изменяются.
func (s *Storage) UpdateProfile(ctx context.Context, username string, email, avatar *string) (int, error) {
	const op = "storage.UpdateProfile"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET email = COALESCE($1, email),
			      avatar = COALESCE($2, avatar)
			  WHERE username = $3`
	result, err := s.DB.ExecContext(ctx, query, email, avatar, username)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// IncrementMonthlyPosts увеличивает месячный счётчик публикаций на единицу.
// Вызывается только для уровня "free": премиальные уровни расход не учитывают.
func (s *Storage) IncrementMonthlyPosts(ctx context.Context, username string) error {
	const op = "storage.IncrementMonthlyPosts"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET posts_this_month = posts_this_month + 1
			  WHERE username = $1 AND tier = 'free'`
	_, err := s.DB.ExecContext(ctx, query, username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DecrementMonthlyPosts возвращает одну публикацию в месячный счётчик.
// Используется для возврата слота, если репорт не был сохранён.
// Ниже нуля счётчик не опускается.
func (s *Storage) DecrementMonthlyPosts(ctx context.Context, username string) error {
	const op = "storage.DecrementMonthlyPosts"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET posts_this_month = GREATEST(posts_this_month - 1, 0)
			  WHERE username = $1 AND tier = 'free'`
	_, err := s.DB.ExecContext(ctx, query, username)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ConsumeMonthlyPost атомарно проверяет лимит и увеличивает счётчик.
// Возвращает false, если лимит уже исчерпан: проверка и запись выполняются
// одним оператором, щель между canPost и recordPost здесь закрыта.
func (s *Storage) ConsumeMonthlyPost(ctx context.Context, username string, limit int) (bool, error) {
	const op = "storage.ConsumeMonthlyPost"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET posts_this_month = posts_this_month + 1
			  WHERE username = $1 AND tier = 'free' AND posts_this_month < $2`
	result, err := s.DB.ExecContext(ctx, query, username, limit)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// ResetMonthlyUsage обнуляет месячный счётчик бесплатных пользователей,
// у которых сегодня день месячной годовщины начала тарифа.
// День годовщины прижимается к длине текущего месяца: тариф, начатый
// 31-го числа, в коротких месяцах сбрасывается в последний день месяца.
func (s *Storage) ResetMonthlyUsage(ctx context.Context, now time.Time) (int, error) {
	const op = "storage.ResetMonthlyUsage"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET posts_this_month = 0
			  WHERE tier = 'free'
			    AND posts_this_month > 0
			    AND LEAST(
			          EXTRACT(DAY FROM tier_start_date),
			          EXTRACT(DAY FROM (date_trunc('month', $1::timestamptz) + interval '1 month - 1 day'))
			        ) = $2`
	result, err := s.DB.ExecContext(ctx, query, now, now.Day())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
