package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community_service/internal/auth"
	"community_service/internal/config"
	"community_service/internal/http_server/handlers/admin"
	"community_service/internal/http_server/handlers/aichat"
	"community_service/internal/http_server/handlers/announcements"
	"community_service/internal/http_server/handlers/login"
	"community_service/internal/http_server/handlers/manus"
	"community_service/internal/http_server/handlers/register"
	resendEmail "community_service/internal/http_server/handlers/resend_verification_email"
	"community_service/internal/http_server/handlers/sitegate"
	"community_service/internal/http_server/handlers/suno"
	"community_service/internal/http_server/handlers/verify"
	"community_service/internal/lib/session"
	"community_service/internal/llm"
	"community_service/internal/middleware/authn"
	rateLimit "community_service/internal/middleware/ratelimit"
	"community_service/internal/rabbitmq"
	"community_service/internal/storage/postgres"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting community service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	sessions := session.New(
		cfg.Session.Secret,
		cfg.Session.TTL,
		cfg.Session.CookieName,
		cfg.Env != envLocal,
	)

	authService := auth.New(
		log,
		storage,
		storage,
		msgBroker,
		sessions,
		cfg.AdminEmail,
		cfg.BaseURL,
	)

	llmClient := llm.New(cfg.LLM)

	router := setupRouter(log, cfg, authService, storage, msgBroker, sessions, llmClient)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: serverWriteTimeout(cfg),
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	authService *auth.Auth,
	storage *postgres.PostgresRepo,
	msgBroker *rabbitmq.RabbitMQClient,
	sessions *session.Manager,
	llmClient *llm.Client,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.With(rateLimit.SiteGate()).Post("/gate",
		sitegate.New(log, validate, storage, cfg.Site.Password),
	)

	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimit.Register()).Post("/register",
			register.New(log, validate, authService),
		)
		r.With(rateLimit.Login()).Post("/login",
			login.New(log, validate, authService, sessions),
		)
		r.With(rateLimit.Verify()).Get("/verify",
			verify.New(log, authService),
		)
		r.With(rateLimit.ResendVerificationEmail()).Post("/verify/resend",
			resendEmail.New(log, validate, authService),
		)
	})

	r.Get("/announcements", announcements.New(log, storage))

	r.Route("/suno/posts", func(r chi.Router) {
		r.Get("/", suno.NewList(log, storage))
		r.Get("/{id}", suno.NewGet(log, storage))
		r.With(authn.RequireUser(sessions)).Post("/", suno.NewCreate(log, validate, storage))
	})

	r.Route("/manus/questions", func(r chi.Router) {
		r.Get("/", manus.NewListQuestions(log, storage))
		r.Get("/{id}", manus.NewGetQuestion(log, storage))
		r.Get("/{id}/answers", manus.NewListAnswers(log, storage))

		r.Group(func(r chi.Router) {
			r.Use(authn.RequireUser(sessions))
			r.Post("/", manus.NewCreateQuestion(log, validate, storage))
			r.Post("/{id}/answers", manus.NewCreateAnswer(log, validate, storage))
		})
	})

	r.With(rateLimit.AIChat()).Post("/ai/chat",
		aichat.New(log, validate, llmClient),
	)

	r.Route("/admin", func(r chi.Router) {
		r.Use(authn.RequireUser(sessions))
		r.Use(authn.RequireAdmin())

		r.Get("/settings", admin.NewGetSettings(log, storage, cfg.Site.Password))
		r.Patch("/settings", admin.NewUpdateSettings(log, storage))

		r.Get("/announcements", admin.NewListAnnouncements(log, storage))
		r.Post("/announcements", admin.NewCreateAnnouncement(log, validate, storage))
		r.Put("/announcements/{id}", admin.NewUpdateAnnouncement(log, validate, storage))
		r.Delete("/announcements/{id}", admin.NewDeleteAnnouncement(log, storage))

		r.Get("/users", admin.NewListUsers(log, storage))
		r.Post("/users/{id}/email", admin.NewSendUserEmail(log, validate, storage, msgBroker))

		r.Delete("/suno/posts/{id}", admin.NewDeleteSunoPost(log, storage, msgBroker))
	})

	return r
}

// serverWriteTimeout must outlast the slowest route: the chat endpoint
// waits up to cfg.LLM.Timeout on the completion API.
func serverWriteTimeout(cfg *config.Config) time.Duration {
	timeout := cfg.HTTPServer.Timeout
	if t := cfg.LLM.Timeout + 5*time.Second; t > timeout {
		timeout = t
	}

	return timeout
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
