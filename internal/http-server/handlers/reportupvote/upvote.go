package reportupvote

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/response"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
)

type Upvoter interface {
	Upvote(ctx context.Context, id string) (int, error)
}

func New(log *slog.Logger, upvoter Upvoter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reportupvote.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("missing report id"))
			return
		}

		upvotes, err := upvoter.Upvote(r.Context(), id)
		if err != nil {
			log.Error("failed to upvote report", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to upvote report"))
			return
		}

		log.Info("report upvoted", slog.String("report_id", id), slog.Int("upvotes", upvotes))
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"upvotes": upvotes,
		}))
	}
}
