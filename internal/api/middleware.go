package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"scholarship-workers/internal/common/auth"
	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/metrics"
)

// authenticate verifies the bearer token and, when an enricher is set,
// fills missing contact details from the identity provider. An enrichment
// failure is logged and the token principal is used as is.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := h.verifier.Verify(r.Header.Get("Authorization"))
		if err != nil {
			h.writeError(w, r, apperrors.NewAuthenticationError(err.Error()))
			return
		}
		if h.enricher != nil {
			enriched, err := h.enricher.Enrich(r.Context(), principal)
			if err != nil {
				h.logger.Warn("principal enrichment failed", map[string]interface{}{
					"userId": principal.ID,
					"error":  err.Error(),
				})
			} else {
				principal = enriched
			}
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
	})
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		h.logger.Debug("request served", map[string]interface{}{
			"method":    r.Method,
			"route":     route,
			"status":    status,
			"duration":  elapsed.String(),
			"requestId": middleware.GetReqID(r.Context()),
		})
	})
}
