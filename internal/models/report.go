package models

import "time"

// MediaItem описывает прикреплённый к репорту медиафайл.
type MediaItem struct {
	URI  string `json:"uri" validate:"required,uri"`
	Type string `json:"type" validate:"required,oneof=image video"`
}

// Report представляет репорт о замеченном патруле.
// Upvotes и Verified выставляются сервером при создании (0 и false).
type Report struct {
	ID          string      `json:"id"`
	AgencyID    string      `json:"agency_id"`
	Latitude    float64     `json:"latitude"`
	Longitude   float64     `json:"longitude"`
	Description string      `json:"description"`
	Media       []MediaItem `json:"media"`
	UserUID     *string     `json:"user_uid,omitempty"`
	Username    *string     `json:"username,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Upvotes     int         `json:"upvotes"`
	Verified    bool        `json:"verified"`
}

// DummyReport используется для приёма нового репорта из JSON-запроса.
type DummyReport struct {
	AgencyID    string      `json:"agency_id" validate:"required"`
	Latitude    float64     `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   float64     `json:"longitude" validate:"required,gte=-180,lte=180"`
	Description string      `json:"description" validate:"required,min=1"`
	Media       []MediaItem `json:"media" validate:"omitempty,dive"`
}

// AnonymousPost фиксирует публикацию, сделанную без аккаунта.
// Записи только добавляются и никогда не изменяются: устаревание за пределами
// скользящего окна вычисляется при чтении, а не при записи.
type AnonymousPost struct {
	ReportID  string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// ReportFilter задаёт параметры выборки репортов.
// Radius в километрах; фильтр по близости применяется только если заданы
// все три координатных параметра.
type ReportFilter struct {
	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64
	Limit     int
	Offset    int
}
