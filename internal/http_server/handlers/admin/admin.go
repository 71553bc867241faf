package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	resp "community_service/internal/lib/api/response"
	sl "community_service/internal/lib/logger"
	"community_service/internal/models"
	"community_service/internal/storage"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const (
	settingSitePassword = "site_password"
	settingSunoActive   = "suno_active"
	settingManusActive  = "manus_active"
)

type Store interface {
	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	AllAnnouncements(ctx context.Context) ([]models.Announcement, error)
	CreateAnnouncement(ctx context.Context, content string) (int64, error)
	UpdateAnnouncement(ctx context.Context, id int64, content string, isActive bool) error
	DeleteAnnouncement(ctx context.Context, id int64) error

	AllUsers(ctx context.Context) ([]models.User, error)
	UserByID(ctx context.Context, id string) (models.User, error)

	SunoPostByID(ctx context.Context, id int64) (models.SunoPost, error)
	DeleteSunoPost(ctx context.Context, id int64) error
}

type Publisher interface {
	SendMessage(ctx context.Context, msg models.EmailMessage) error
}

type SettingsResponse struct {
	resp.Response
	SitePassword string `json:"site_password"`
	SunoActive   bool   `json:"suno_active"`
	ManusActive  bool   `json:"manus_active"`
}

type UpdateSettingsRequest struct {
	SitePassword *string `json:"site_password,omitempty"`
	SunoActive   *bool   `json:"suno_active,omitempty"`
	ManusActive  *bool   `json:"manus_active,omitempty"`
}

func NewGetSettings(
	log *slog.Logger,
	store Store,
	fallbackSitePassword string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.NewGetSettings"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		sitePassword := fallbackSitePassword
		if v, err := store.Setting(ctx, settingSitePassword); err == nil && v != "" {
			sitePassword = v
		} else if err != nil && !errors.Is(err, storage.ErrSettingNotFound) {
			log.Error("failed to load settings", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		sunoActive, err := boolSetting(ctx, store, settingSunoActive)
		if err != nil {
			log.Error("failed to load settings", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		manusActive, err := boolSetting(ctx, store, settingManusActive)
		if err != nil {
			log.Error("failed to load settings", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, SettingsResponse{
			Response:     resp.OK(),
			SitePassword: sitePassword,
			SunoActive:   sunoActive,
			ManusActive:  manusActive,
		})
	}
}

func boolSetting(ctx context.Context, store Store, key string) (bool, error) {
	v, err := store.Setting(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrSettingNotFound) {
			return false, nil
		}
		return false, err
	}

	return v == "true", nil
}

func NewUpdateSettings(
	log *slog.Logger,
	store Store,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.NewUpdateSettings"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req UpdateSettingsRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		updates := map[string]*string{}
		if req.SitePassword != nil {
			updates[settingSitePassword] = req.SitePassword
		}
		if req.SunoActive != nil {
			v := strconv.FormatBool(*req.SunoActive)
			updates[settingSunoActive] = &v
		}
		if req.ManusActive != nil {
			v := strconv.FormatBool(*req.ManusActive)
			updates[settingManusActive] = &v
		}

		for key, value := range updates {
			if err := store.SetSetting(ctx, key, *value); err != nil {
				log.Error("failed to update setting", slog.String("key", key), sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))

				return
			}
		}

		log.Info("settings updated", slog.Int("count", len(updates)))

		render.JSON(w, r, resp.OK())
	}
}

type AnnouncementsResponse struct {
	resp.Response
	Announcements []models.Announcement `json:"announcements"`
}

type CreateAnnouncementRequest struct {
	Content string `json:"content" validate:"required,min=1"`
}

type UpdateAnnouncementRequest struct {
	Content  string `json:"content" validate:"required,min=1"`
	IsActive bool   `json:"is_active"`
}

func NewListAnnouncements(
	log *slog.Logger,
	store Store,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.NewListAnnouncements"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		items, err := store.AllAnnouncements(ctx)
		if err != nil {
			log.Error("failed to list announcements", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, AnnouncementsResponse{
			Response:      resp.OK(),
			Announcements: items,
		})
	}
}

func NewCreateAnnouncement(
	log *slog.Logger,
	validate *validator.Validate,
	store Store,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.NewCreateAnnouncement"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateAnnouncementRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
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

		id, err := store.CreateAnnouncement(ctx, req.Content)
		if err != nil {
			log.Error("failed to create announcement", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("announcement created", slog.Int64("id", id))

		render.JSON(w, r, resp.OK())
	}
}

func NewUpdateAnnouncement(
	log *slog.Logger,
	validate *validator.Validate,
	store Store,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.NewUpdateAnnouncement"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid announcement id"))

			return
		}

		var req UpdateAnnouncementRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
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

		if err := store.UpdateAnnouncement(ctx, id, req.Content, req.IsActive); err != nil {
			if errors.Is(err, storage.ErrAnnouncementNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Announcement not found"))

				return
			}

			log.Error("failed to update announcement", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, resp.OK())
	}
}

func NewDeleteAnnouncement(
	log *slog.Logger,
	store Store,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.NewDeleteAnnouncement"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid announcement id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := store.DeleteAnnouncement(ctx, id); err != nil {
			if errors.Is(err, storage.ErrAnnouncementNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Announcement not found"))

				return
			}

			log.Error("failed to delete announcement", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, resp.OK())
	}
}

type UsersResponse struct {
	resp.Response
	Users []models.User `json:"users"`
}

func NewListUsers(
	log *slog.Logger,
	store Store,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.NewListUsers"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		users, err := store.AllUsers(ctx)
		if err != nil {
			log.Error("failed to list users", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, UsersResponse{
			Response: resp.OK(),
			Users:    users,
		})
	}
}

type SendUserEmailRequest struct {
	Subject string `json:"subject" validate:"required,min=1"`
	Content string `json:"content" validate:"required,min=1"`
}

// NewSendUserEmail queues a direct email from the admin to one member.
func NewSendUserEmail(
	log *slog.Logger,
	validate *validator.Validate,
	store Store,
	publisher Publisher,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.NewSendUserEmail"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := chi.URLParam(r, "id")

		var req SendUserEmailRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
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

		user, err := store.UserByID(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))

				return
			}

			log.Error("failed to get user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if user.Email == nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, resp.Error("User not found"))

			return
		}

		msg := models.EmailMessage{
			To:       *user.Email,
			Subject:  req.Subject,
			HTMLBody: "<p>" + strings.ReplaceAll(req.Content, "\n", "<br>") + "</p>",
		}

		if err := publisher.SendMessage(ctx, msg); err != nil {
			log.Error("failed to queue email", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("email queued", slog.String("uid", user.ID))

		render.JSON(w, r, resp.OK())
	}
}

// NewDeleteSunoPost removes a post and queues a best-effort removal
// notice to the author. The notice never fails the deletion.
func NewDeleteSunoPost(
	log *slog.Logger,
	store Store,
	publisher Publisher,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.admin.NewDeleteSunoPost"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid post id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		post, err := store.SunoPostByID(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrPostNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Post not found"))

				return
			}

			log.Error("failed to get post", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		if err := store.DeleteSunoPost(ctx, id); err != nil {
			log.Error("failed to delete post", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("post deleted", slog.Int64("id", id))

		author, err := store.UserByID(ctx, post.UserID)
		if err != nil || author.Email == nil {
			render.JSON(w, r, resp.OK())

			return
		}

		nickname := "Member"
		if author.Nickname != nil {
			nickname = *author.Nickname
		} else if author.Name != nil {
			nickname = *author.Name
		}

		msg := models.EmailMessage{
			To:      *author.Email,
			Subject: "Your post has been removed",
			HTMLBody: fmt.Sprintf(
				"<p>Dear %s,</p><p>Your post was found to violate the site policy and has been removed.</p><p>Please contact us if you have any questions.</p>",
				nickname,
			),
		}

		if err := publisher.SendMessage(ctx, msg); err != nil {
			log.Error("failed to queue removal notice", sl.Err(err))
		}

		render.JSON(w, r, resp.OK())
	}
}
