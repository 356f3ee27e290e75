package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/industria/cotizacion-service/internal/config"
	"github.com/industria/cotizacion-service/internal/infrastructure/realtime"
	"github.com/industria/cotizacion-service/internal/transport/http/handlers"
	authmw "github.com/industria/cotizacion-service/internal/transport/http/middleware"
)

func New(
	h *handlers.QuotationsHandler,
	auth *authmw.AuthMiddleware,
	z *handlers.HealthHandler,
	hub *realtime.Hub,
	cfg *config.Config,
) http.Handler {
	r := chi.NewRouter()

	r.Use(authmw.RequestID)
	r.Use(authmw.SecurityHeaders)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(authmw.AccessLog)

	if cfg.RLEnabled {
		r.Use(httprate.LimitByIP(cfg.RLLimit, cfg.RLWindow))
	}

	r.Get("/healthz", z.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	if hub != nil {
		r.Get("/ws", hub.ServeWS)
	}

	r.Route("/cotizacion/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Require)
			r.Post("/cotizaciones", h.Create)
			r.Get("/cotizaciones", h.List)
			r.Get("/cotizaciones/{quotation_id}", h.Get)
			r.Delete("/cotizaciones/{quotation_id}", h.Remove)
			r.Post("/cotizaciones/{quotation_id}/progreso", h.AddProgress)
			r.Post("/cotizaciones/{quotation_id}/progreso/{update_index}/aprobar", h.Approve)
			r.Post("/cotizaciones/{quotation_id}/progreso/{update_index}/rechazar", h.Reject)
			r.Post("/cotizaciones/{quotation_id}/tecnico", h.AssignTechnician)
		})
	})

	return r
}
