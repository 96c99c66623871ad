package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions carry the transport settings from config
type RouterOptions struct {
	AllowedOrigins     []string
	RateLimitPerSecond int
	RateLimitBurst     int
	RequestTimeout     time.Duration
}

// NewRouter mounts every route on a chi router
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Admin-Token"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/doc.json", h.SwaggerDoc)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		r.Use(h.RateLimitMiddleware(opts.RateLimitPerSecond, opts.RateLimitBurst))

		r.Route("/predictions", func(r chi.Router) {
			r.Get("/game", h.GetGamePrediction)
			r.Get("/week", h.GetWeekPredictions)
			r.Get("/model-info", h.GetModelInfo)
			r.Get("/feature-importance", h.GetFeatureImportance)

			r.Group(func(r chi.Router) {
				r.Use(h.AdminAuthMiddleware)
				r.Post("/models/{version}/activate", h.ActivateModel)
				r.Post("/reload", h.ReloadModel)
				r.Post("/cache/clear", h.ClearPredictionCache)
			})
		})

		r.With(h.AdminAuthMiddleware).Post("/system/install", h.InstallDatabase)
	})

	return r
}
