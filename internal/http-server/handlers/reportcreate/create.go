package reportcreate

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
	entitlement "github.com/TheBrit007/rork-shield-watch/internal/services/entitlement"
	reportservice "github.com/TheBrit007/rork-shield-watch/internal/services/report"
)

type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, username, deviceID string) entitlement.Identity
}

type Creater interface {
	Create(ctx context.Context, ident entitlement.Identity, req models.DummyReport) (*models.Report, error)
}

func New(log *slog.Logger, resolver IdentityResolver, creater Creater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reportcreate.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req models.DummyReport
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

		ident := resolver.ResolveIdentity(r.Context(),
			mware.UsernameFromContext(r.Context()),
			mware.DeviceIDFromContext(r.Context()))

		report, err := creater.Create(r.Context(), ident, req)
		if err != nil {
			if errors.Is(err, reportservice.ErrQuotaExceeded) {
				log.Info("post rejected, quota exceeded",
					slog.String("device_id", ident.DeviceID))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("post quota exceeded"))
				return
			}
			log.Error("failed to create report", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to create report"))
			return
		}

		log.Info("report created", slog.String("report_id", report.ID))
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, response.StatusOKWithData(report))
	}
}
