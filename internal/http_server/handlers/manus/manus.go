package manus

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

type CreateQuestionRequest struct {
	Title   string `json:"title" validate:"required,min=1,max=200"`
	Content string `json:"content" validate:"required,min=1"`
}

type CreateAnswerRequest struct {
	Content string `json:"content" validate:"required,min=1"`
}

type CreateResponse struct {
	resp.Response
	ID int64 `json:"id"`
}

type QuestionsResponse struct {
	resp.Response
	Questions []models.ManusQuestion `json:"questions"`
}

type QuestionResponse struct {
	resp.Response
	Question models.ManusQuestion `json:"question"`
}

type AnswersResponse struct {
	resp.Response
	Answers []models.ManusAnswer `json:"answers"`
}

type QAStore interface {
	CreateQuestion(ctx context.Context, q models.ManusQuestion) (int64, error)
	Questions(ctx context.Context, userID string) ([]models.ManusQuestion, error)
	QuestionByID(ctx context.Context, id int64) (models.ManusQuestion, error)
	CreateAnswer(ctx context.Context, a models.ManusAnswer) (int64, error)
	AnswersByQuestionID(ctx context.Context, questionID int64) ([]models.ManusAnswer, error)
}

func NewCreateQuestion(
	log *slog.Logger,
	validate *validator.Validate,
	store QAStore,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.manus.NewCreateQuestion"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateQuestionRequest

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

		id, err := store.CreateQuestion(ctx, models.ManusQuestion{
			UserID:  authn.UserIDFromContext(r.Context()),
			Title:   req.Title,
			Content: req.Content,
		})
		if err != nil {
			log.Error("failed to create question", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("question created", slog.Int64("id", id))

		render.JSON(w, r, CreateResponse{Response: resp.OK(), ID: id})
	}
}

func NewListQuestions(
	log *slog.Logger,
	store QAStore,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.manus.NewListQuestions"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		questions, err := store.Questions(ctx, r.URL.Query().Get("user_id"))
		if err != nil {
			log.Error("failed to list questions", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, QuestionsResponse{Response: resp.OK(), Questions: questions})
	}
}

func NewGetQuestion(
	log *slog.Logger,
	store QAStore,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.manus.NewGetQuestion"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid question id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		question, err := store.QuestionByID(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrQuestionNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Question not found"))

				return
			}

			log.Error("failed to get question", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, QuestionResponse{Response: resp.OK(), Question: question})
	}
}

func NewCreateAnswer(
	log *slog.Logger,
	validate *validator.Validate,
	store QAStore,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.manus.NewCreateAnswer"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		questionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid question id"))

			return
		}

		var req CreateAnswerRequest

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

		// The question must exist before an answer is attached.
		if _, err := store.QuestionByID(ctx, questionID); err != nil {
			if errors.Is(err, storage.ErrQuestionNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Question not found"))

				return
			}

			log.Error("failed to get question", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		id, err := store.CreateAnswer(ctx, models.ManusAnswer{
			QuestionID: questionID,
			UserID:     authn.UserIDFromContext(r.Context()),
			Content:    req.Content,
		})
		if err != nil {
			log.Error("failed to create answer", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("answer created", slog.Int64("id", id))

		render.JSON(w, r, CreateResponse{Response: resp.OK(), ID: id})
	}
}

func NewListAnswers(
	log *slog.Logger,
	store QAStore,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.manus.NewListAnswers"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		questionID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid question id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		answers, err := store.AnswersByQuestionID(ctx, questionID)
		if err != nil {
			log.Error("failed to list answers", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, AnswersResponse{Response: resp.OK(), Answers: answers})
	}
}
