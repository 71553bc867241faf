package aichat

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	resp "community_service/internal/lib/api/response"
	sl "community_service/internal/lib/logger"
	"community_service/internal/llm"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

const systemPrompt = `You are an assistant that teaches members how to use Manus, an AI agent platform.
Manus supports task and project management, file operations and code editing, web browsing and research, data analysis and visualization, and AI-driven automation.
Answer member questions helpfully, clearly and concretely.`

type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

type Request struct {
	Messages []ChatMessage `json:"messages" validate:"required,min=1,dive"`
}

type Response struct {
	resp.Response
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Chatter interface {
	ChatCompletion(ctx context.Context, messages []llm.Message) (llm.Message, error)
}

// New proxies the conversation to the completion API with the Manus
// guide system prompt prepended.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	chatter Chatter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.aichat.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

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

		messages := make([]llm.Message, 0, len(req.Messages)+1)
		messages = append(messages, llm.Message{Role: "system", Content: systemPrompt})
		for _, m := range req.Messages {
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		answer, err := chatter.ChatCompletion(ctx, messages)
		if err != nil {
			log.Error("chat completion failed", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Role:     "assistant",
			Content:  answer.Content,
		})
	}
}
