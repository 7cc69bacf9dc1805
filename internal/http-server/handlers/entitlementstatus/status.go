package entitlementstatus

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/mware"
	"github.com/TheBrit007/rork-shield-watch/internal/http-server/response"
	entitlement "github.com/TheBrit007/rork-shield-watch/internal/services/entitlement"
)

type Entitlements interface {
	ResolveIdentity(ctx context.Context, username, deviceID string) entitlement.Identity
	Snapshot(ctx context.Context, id entitlement.Identity) entitlement.Snapshot
}

func New(log *slog.Logger, svc Entitlements) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.entitlementstatus.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ident := svc.ResolveIdentity(r.Context(),
			mware.UsernameFromContext(r.Context()),
			mware.DeviceIDFromContext(r.Context()))

		snap := svc.Snapshot(r.Context(), ident)
		// Перерасходованный счётчик наружу не показываем.
		if snap.Remaining < 0 {
			snap.Remaining = 0
		}

		log.Debug("entitlement snapshot served",
			slog.String("device_id", ident.DeviceID),
			slog.Bool("can_post", snap.CanPost))
		render.JSON(w, r, response.StatusOKWithData(snap))
	}
}
