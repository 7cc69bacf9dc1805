package models

import "time"

// User представляет зарегистрированного пользователя.
// PostsThisMonth растёт только для уровня "free": премиальные уровни
// безлимитные и расход не учитывают.
type User struct {
	UID            string       `json:"uid"`
	Username       string       `json:"username"`
	Email          string       `json:"email"`
	Avatar         *string      `json:"avatar,omitempty"`
	AuthProvider   string       `json:"auth_provider"` // email | google | apple
	CreatedAt      time.Time    `json:"created_at"`
	Subscription   Subscription `json:"subscription"`
	PostsThisMonth int          `json:"posts_this_month"`

	PasswordHash string `json:"-"`
}

// Device хранит состояние устройства: идентификатор и признак
// просмотра приветственного экрана.
type Device struct {
	DeviceID       string    `json:"device_id"`
	HasSeenWelcome bool      `json:"has_seen_welcome"`
	CreatedAt      time.Time `json:"created_at"`
}

// DummyRegister используется для приёма данных регистрации из JSON-запроса.
type DummyRegister struct {
	Username string `json:"username" validate:"required,alphanum,min=3"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// DummyLogin используется для приёма данных входа из JSON-запроса.
type DummyLogin struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// DummySocialLogin используется для приёма результата внешней
// аутентификации (Google или Apple).
type DummySocialLogin struct {
	Provider string `json:"provider" validate:"required,oneof=google apple"`
	Subject  string `json:"subject" validate:"required"` // Идентификатор пользователя у провайдера
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3"`
}

// DummyProfileUpdate используется для частичного обновления профиля.
// Отсутствующее поле не изменяется.
type DummyProfileUpdate struct {
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
	Avatar *string `json:"avatar,omitempty" validate:"omitempty,uri"`
}
