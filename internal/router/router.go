package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"omex-backend/internal/handlers"
	"omex-backend/internal/middleware"
)

type Config struct {
	MindmapHandler *handlers.MindmapHandler
	PlanHandler    *handlers.PlanHandler
	Session        *middleware.Session
	FrontendURL    string
}

func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.FrontendURL))
	r.Use(cfg.Session.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	uploadLimiter := middleware.NewRateLimiter(10, time.Minute)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(uploadLimiter.Middleware).Post("/mindmaps/upload", cfg.MindmapHandler.Upload)

		r.Post("/plans/initialize", cfg.PlanHandler.Initialize)
		r.Get("/plans/{id}", cfg.PlanHandler.Get)
		r.Post("/plans/{id}/quiz/{topicIndex}/{subtopicIndex}/submit", cfg.PlanHandler.SubmitQuiz)

		r.Get("/progress", cfg.PlanHandler.Progress)
	})

	return r
}
