package sitegate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	resp "community_service/internal/lib/api/response"
	sl "community_service/internal/lib/logger"
	"community_service/internal/storage"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

// SitePasswordKey is the site_settings override written by the admin
// console; the configured password is the fallback.
const SitePasswordKey = "site_password"

type Request struct {
	Password string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
}

type SettingProvider interface {
	Setting(ctx context.Context, key string) (string, error)
}

// New checks the shared site password. This is a coarse anti-crawling
// gate: the client remembers the result for its session, nothing is
// persisted server-side.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	settings SettingProvider,
	fallbackPassword string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sitegate.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		password := fallbackPassword

		stored, err := settings.Setting(ctx, SitePasswordKey)
		if err == nil && stored != "" {
			password = stored
		} else if err != nil && !errors.Is(err, storage.ErrSettingNotFound) {
			log.Error("failed to load site password setting", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if password == "" {
			log.Error("site password is not configured")

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if req.Password != password {
			log.Info("incorrect site password")

			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Incorrect password"))

			return
		}

		render.JSON(w, r, Response{Response: resp.OK()})
	}
}
