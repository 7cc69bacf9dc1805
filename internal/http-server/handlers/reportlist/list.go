package reportlist

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/response"
	"github.com/TheBrit007/rork-shield-watch/internal/lib/sl"
	"github.com/TheBrit007/rork-shield-watch/internal/models"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

type Lister interface {
	List(ctx context.Context, filter models.ReportFilter) ([]*models.Report, error)
}

func New(log *slog.Logger, lister Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reportlist.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		filter, err := parseFilter(r)
		if err != nil {
			log.Error("invalid query parameters", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid query parameters"))
			return
		}

		reports, err := lister.List(r.Context(), filter)
		if err != nil {
			log.Error("failed to list reports", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to list reports"))
			return
		}
		if reports == nil {
			reports = []*models.Report{}
		}

		render.JSON(w, r, response.StatusOKWithData(reports))
	}
}

func parseFilter(r *http.Request) (models.ReportFilter, error) {
	filter := models.ReportFilter{Limit: defaultLimit}

	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		if limit > 0 && limit <= maxLimit {
			filter.Limit = limit
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			return filter, err
		}
		if offset > 0 {
			filter.Offset = offset
		}
	}

	lat, lon, radius := q.Get("latitude"), q.Get("longitude"), q.Get("radius_km")
	if lat != "" && lon != "" && radius != "" {
		latF, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return filter, err
		}
		lonF, err := strconv.ParseFloat(lon, 64)
		if err != nil {
			return filter, err
		}
		radiusF, err := strconv.ParseFloat(radius, 64)
		if err != nil {
			return filter, err
		}
		filter.Latitude = &latF
		filter.Longitude = &lonF
		filter.RadiusKm = &radiusF
	}
	return filter, nil
}
