package selectreport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/mware"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/response"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
)

type Selector interface {
	Select(ctx context.Context, deviceID string, reportID *string) error
	Selected(ctx context.Context, deviceID string) (string, bool, error)
}

type selectRequest struct {
	ReportID *string `json:"report_id"`
}

// New обрабатывает PUT: запоминает или снимает выбор репорта на устройстве.
func New(log *slog.Logger, selector Selector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.selectreport.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req selectRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))
			return
		}

		deviceID := mware.DeviceIDFromContext(r.Context())
		if err := selector.Select(r.Context(), deviceID, req.ReportID); err != nil {
			log.Error("failed to store selection", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to store selection"))
			return
		}

		render.JSON(w, r, response.OK())
	}
}

// NewRead обрабатывает GET: возвращает выбранный на устройстве репорт.
func NewRead(log *slog.Logger, selector Selector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.selectreport.NewRead"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		deviceID := mware.DeviceIDFromContext(r.Context())
		reportID, found, err := selector.Selected(r.Context(), deviceID)
		if err != nil {
			log.Error("failed to read selection", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to read selection"))
			return
		}

		var data map[string]any
		if found {
			data = map[string]any{"report_id": reportID}
		} else {
			data = map[string]any{"report_id": nil}
		}
		render.JSON(w, r, response.StatusOKWithData(data))
	}
}
