// Package api exposes the scholarship wizard and checkout over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter registers every route. Routes that act on behalf of a user sit
// behind the JWT middleware. Cross-origin requests are only answered for
// the listed origins; with none listed the API is same-origin only.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/scholarship", func(r chi.Router) {
		r.Get("/steps", h.steps)
		r.Post("/wizard/next", h.wizardNext)
		r.Post("/wizard/previous", h.wizardPrevious)
		r.Get("/payment-info", h.paymentInfo)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Post("/applications", h.submitApplication)
			r.Get("/applications/{id}", h.getApplication)
		})
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/quote", h.quote)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)
			r.Post("/orders", h.placeOrder)
		})
	})

	return r
}

// Server wraps http.Server with the configured timeouts.
func NewServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
	}
}
