package upgrade

import (
	"context"
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
)

type Upgrader interface {
	ResolveIdentity(ctx context.Context, username, deviceID string) entitlement.Identity
	UpgradeSubscription(ctx context.Context, id entitlement.Identity, tier models.Tier, paymentMethod string) bool
}

func New(log *slog.Logger, upgrader Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.upgrade.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req models.DummyUpgrade
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

		ident := upgrader.ResolveIdentity(r.Context(),
			mware.UsernameFromContext(r.Context()),
			mware.DeviceIDFromContext(r.Context()))

		ok := upgrader.UpgradeSubscription(r.Context(), ident, models.Tier(req.Tier), req.PaymentMethod)
		if !ok {
			log.Info("upgrade rejected", slog.String("tier", req.Tier))
			render.Status(r, http.StatusPaymentRequired)
			render.JSON(w, r, response.Error("upgrade failed"))
			return
		}

		log.Info("subscription upgraded", slog.String("tier", req.Tier))
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"tier": req.Tier,
		}))
	}
}
