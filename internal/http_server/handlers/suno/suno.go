package suno

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	resp "community_service/internal/lib/api/response"
	sl "community_service/internal/lib/logger"
	"community_service/internal/middleware/authn"
	"community_service/internal/models"
	"community_service/internal/storage"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type CreateRequest struct {
	YoutubeURL string `json:"youtube_url" validate:"required,url"`
	Comment    string `json:"comment" validate:"required,min=1,max=300"`
	Category   string `json:"category" validate:"required,oneof='Suno AI' 'Suno Studio'"`
}

type CreateResponse struct {
	resp.Response
	PostID int64 `json:"post_id"`
}

type ListResponse struct {
	resp.Response
	Posts []models.SunoPost `json:"posts"`
}

type GetResponse struct {
	resp.Response
	Post models.SunoPost `json:"post"`
}

type PostStore interface {
	CreateSunoPost(ctx context.Context, p models.SunoPost) (int64, error)
	SunoPosts(ctx context.Context, category string) ([]models.SunoPost, error)
	SunoPostByID(ctx context.Context, id int64) (models.SunoPost, error)
}

func NewCreate(
	log *slog.Logger,
	validate *validator.Validate,
	store PostStore,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.suno.NewCreate"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateRequest

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

		post := models.SunoPost{
			UserID:     authn.UserIDFromContext(r.Context()),
			YoutubeURL: req.YoutubeURL,
			Comment:    req.Comment,
			Category:   req.Category,
		}

		id, err := store.CreateSunoPost(ctx, post)
		if err != nil {
			log.Error("failed to create post", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("post created", slog.Int64("id", id))

		render.JSON(w, r, CreateResponse{
			Response: resp.OK(),
			PostID:   id,
		})
	}
}

func NewList(
	log *slog.Logger,
	store PostStore,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.suno.NewList"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		posts, err := store.SunoPosts(ctx, r.URL.Query().Get("category"))
		if err != nil {
			log.Error("failed to list posts", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, ListResponse{
			Response: resp.OK(),
			Posts:    posts,
		})
	}
}

func NewGet(
	log *slog.Logger,
	store PostStore,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.suno.NewGet"

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

		render.JSON(w, r, GetResponse{
			Response: resp.OK(),
			Post:     post,
		})
	}
}
