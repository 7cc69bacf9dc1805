// Package services (auth) реализует регистрацию, вход по паролю и вход
// через внешних провайдеров, а также обновление профиля.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jwtlib "github.com/TheBrit007/rork-shield-watch/internal/lib/jwt"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/password"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
	"github.com/TheBrit007/rork-shield-watch/internal/models"
)

// ErrInvalidCredentials возвращается при неверной паре логин-пароль.
// Неизвестный пользователь и неверный пароль не различаются наружу.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUserNotFound возвращается, когда обновление не нашло пользователя.
var ErrUserNotFound = errors.New("user not found")

// UserRepository описывает операции хранилища над пользователями,
// нужные аутентификации.
type UserRepository interface {
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateProfile(ctx context.Context, username string, email, avatar *string) (int, error)
}

// AuthService реализует аутентификацию и управление профилем.
type AuthService struct {
	users UserRepository
	maker jwtlib.Maker
	log   *slog.Logger
	now   func() time.Time
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users UserRepository, maker jwtlib.Maker, log *slog.Logger) *AuthService {
	return &AuthService{
		users: users,
		maker: maker,
		log:   log,
		now:   time.Now,
	}
}

// Register создаёт пользователя на бесплатном уровне и возвращает его UID.
func (s *AuthService) Register(ctx context.Context, req models.DummyRegister) (string, error) {
	const op = "services.auth.Register"

	hash, err := password.GetHash(req.Password)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	now := s.now()
	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		AuthProvider: "email",
		CreatedAt:    now,
		Subscription: models.Subscription{
			Tier:      models.TierFree,
			StartDate: now,
		},
	}
	uid, err := s.users.RegisterUser(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user registered", slog.String("username", req.Username))
	return uid, nil
}

// Login проверяет пароль и выдаёт JWT.
func (s *AuthService) Login(ctx context.Context, req models.DummyLogin) (string, error) {
	const op = "services.auth.Login"

	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(user.PasswordHash, req.Password); err != nil {
		return "", ErrInvalidCredentials
	}
	token, err := s.maker.GenerateToken(user.Username, user.UID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// SocialLogin входит через внешнего провайдера. Пользователь с таким
// email создаётся при первом входе; пароль ему не назначается.
func (s *AuthService) SocialLogin(ctx context.Context, req models.DummySocialLogin) (string, error) {
	const op = "services.auth.SocialLogin"

	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		now := s.now()
		newUser := models.User{
			Username:     req.Username,
			Email:        req.Email,
			AuthProvider: req.Provider,
			CreatedAt:    now,
			Subscription: models.Subscription{
				Tier:      models.TierFree,
				StartDate: now,
			},
		}
		uid, err := s.users.RegisterUser(ctx, newUser)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		newUser.UID = uid
		user = &newUser
		s.log.Info("social user registered",
			slog.String("username", req.Username),
			slog.String("provider", req.Provider))
	}

	token, err := s.maker.GenerateToken(user.Username, user.UID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return token, nil
}

// UpdateProfile частично обновляет профиль. nil-поля не изменяются.
func (s *AuthService) UpdateProfile(ctx context.Context, username string, req models.DummyProfileUpdate) error {
	const op = "services.auth.UpdateProfile"

	rows, err := s.users.UpdateProfile(ctx, username, req.Email, req.Avatar)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}
	s.log.Info("profile updated", slog.String("username", username))
	return nil
}

// ValidateToken проверяет JWT и возвращает его содержимое.
func (s *AuthService) ValidateToken(token string) (*jwtlib.CustomClaims, error) {
	claims, err := s.maker.ParseToken(token)
	if err != nil {
		s.log.Debug("token validation failed", sl.Err(err))
		return nil, err
	}
	return claims, nil
}
