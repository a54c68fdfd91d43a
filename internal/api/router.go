package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/salon-slot-booking/internal/booking"
	"github.com/hackgods/salon-slot-booking/internal/metrics"
)

type RouterConfig struct {
	Service *booking.Service
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger, cfg.Metrics))
	r.Use(RecoverMiddleware(logger))

	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	h := &handlers{svc: cfg.Service, logger: logger}

	r.Get("/salons/{salonID}/windows", h.listWindows)

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.bookAppointment)
		r.Get("/", h.listAppointments)
		r.Get("/{id}", h.getAppointment)
		r.Delete("/{id}", h.cancelAppointment)
		r.Post("/{id}/cancel", h.cancelAppointment)
		r.Put("/{id}/payment", h.confirmPayment)
		r.Patch("/{id}/status", h.updateStatus)
	})

	r.Route("/slots", func(r chi.Router) {
		r.Get("/", h.listSlots)
		r.Post("/", h.createSlot)
		r.Get("/check-availability", h.checkAvailability)
		r.Get("/{id}", h.getSlot)
		r.Delete("/{id}", h.deleteSlot)
	})

	return r
}
