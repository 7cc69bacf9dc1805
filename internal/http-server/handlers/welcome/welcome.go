package welcome

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/mware"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/response"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
	"github.com/TheBrit007/rork-shield-watch/internal/models"
)

type DeviceProvider interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	SetHasSeenWelcome(ctx context.Context, deviceID string, seen bool) error
}

type welcomeRequest struct {
	HasSeenWelcome bool `json:"has_seen_welcome"`
}

// New обрабатывает GET: возвращает признак просмотра приветственного экрана.
func New(log *slog.Logger, devices DeviceProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.welcome.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		deviceID := mware.DeviceIDFromContext(r.Context())
		device, err := devices.GetDevice(r.Context(), deviceID)
		if err != nil {
			log.Error("failed to read device", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to read device"))
			return
		}

		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"has_seen_welcome": device.HasSeenWelcome,
		}))
	}
}

// NewUpdate обрабатывает PUT: сохраняет признак просмотра приветственного
// экрана.
func NewUpdate(log *slog.Logger, devices DeviceProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.welcome.NewUpdate"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req welcomeRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))
			return
		}

		deviceID := mware.DeviceIDFromContext(r.Context())
		if err := devices.SetHasSeenWelcome(r.Context(), deviceID, req.HasSeenWelcome); err != nil {
			log.Error("failed to update device", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to update device"))
			return
		}

		render.JSON(w, r, response.OK())
	}
}
