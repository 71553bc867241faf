package announcements

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "community_service/internal/lib/api/response"
	sl "community_service/internal/lib/logger"
	"community_service/internal/models"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Announcements []models.Announcement `json:"announcements"`
}

type Provider interface {
	ActiveAnnouncements(ctx context.Context) ([]models.Announcement, error)
}

// New serves the public feed of active announcements.
func New(
	log *slog.Logger,
	provider Provider,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.announcements.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		items, err := provider.ActiveAnnouncements(ctx)
		if err != nil {
			log.Error("failed to list announcements", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response:      resp.OK(),
			Announcements: items,
		})
	}
}
