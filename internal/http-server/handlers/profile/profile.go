package profile

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/mware"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/response"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
	"github.com/TheBrit007/rork-shield-watch/internal/models"
	authservice "github.com/TheBrit007/rork-shield-watch/internal/services/auth"
)

type Updater interface {
	UpdateProfile(ctx context.Context, username string, req models.DummyProfileUpdate) error
}

func New(log *slog.Logger, updater Updater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.profile.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req models.DummyProfileUpdate
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("failed to decode request body", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("failed to decode request"))
			return
		}

		if err := validator.New().Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)
			log.Error("invalid request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.ValidationError(validateErr))
			return
		}

		username := mware.UsernameFromContext(r.Context())
		if err := updater.UpdateProfile(r.Context(), username, req); err != nil {
			if errors.Is(err, authservice.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.Error("user not found"))
				return
			}
			log.Error("failed to update profile", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to update profile"))
			return
		}

		render.JSON(w, r, response.OK())
	}
}
