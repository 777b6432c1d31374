package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Auth  *AuthHandler
	Users *UserHandler
	Tasks *TaskHandler

	Guard   *SessionGuard
	Limiter *RateLimit
	Metrics *Metrics

	Gatherer       prometheus.Gatherer
	Logger         *zap.Logger
	AllowedOrigins []string
	CSRFHeader     string
	RequestTimeout time.Duration
}

func NewHandler(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", cfg.CSRFHeader},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(cfg.Metrics.Instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signout", cfg.Auth.SignOut)

		r.Group(func(r chi.Router) {
			r.Use(cfg.Limiter.Handler("auth"))
			r.Post("/signup", cfg.Auth.SignUp)
			r.Post("/signin", cfg.Auth.SignIn)
			r.Post("/refresh", cfg.Auth.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(cfg.Limiter.Handler("auth"))
			r.Use(cfg.Guard.Authenticate)
			r.Get("/me", cfg.Users.GetMe)
			r.Get("/csrf", cfg.Auth.CSRF)
		})
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Use(cfg.Limiter.Handler("tasks"))
		r.Use(cfg.Guard.Authenticate)
		r.Use(cfg.Guard.RequireCSRF)

		r.Get("/", cfg.Tasks.List)
		r.Post("/", cfg.Tasks.Create)
		r.Route("/{task_id}", func(r chi.Router) {
			r.Get("/", cfg.Tasks.Get)
			r.Put("/", cfg.Tasks.Update)
			r.Delete("/", cfg.Tasks.Delete)
			r.Put("/toggle", cfg.Tasks.Toggle)
		})
	})

	return r
}
