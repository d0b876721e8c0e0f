/**
 * @description
 * HTTP router setup for the gst-report service using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const activityInterval = time.Minute

// NewRouter creates a new Chi router and registers the webhook and admin routes.
func NewRouter(h *Handler, internalKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(180 * time.Second))
	r.Use(h.metrics.Middleware)

	r.Get("/webhooks/gst-report", h.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(ActivityMiddleware(h.reports, activityInterval, h.logger))

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("GST report service is healthy"))
		})
		r.Handle("/metrics", h.metrics.Handler())

		r.Route("/admin", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   []string{"https://*", "http://*"},
				AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type", "X-Internal-API-Key"},
				ExposedHeaders:   []string{"Content-Disposition"},
				AllowCredentials: false,
				MaxAge:           300,
			}))
			r.Use(InternalAuthMiddleware(internalKey))

			r.Get("/schedule", h.handleGetSchedule)
			r.Put("/schedule", h.handleUpdateSchedule)

			r.Post("/reports/trigger", h.handleTrigger)
			r.Post("/reports/send", h.handleSendNow)
			r.Get("/reports/preview", h.handlePreview)
			r.Get("/reports/export", h.handleExport)

			r.Get("/access-key", h.handleGetAccessKey)
			r.Post("/access-key/rotate", h.handleRotateAccessKey)
			r.Get("/access-keys", h.handleListAccessKeys)
			r.Get("/access-logs", h.handleListAccessLogs)

			r.Get("/classification-codes", h.handleListCodes)
			r.Put("/classification-codes/{productID}", h.handleSaveCode)
		})
	})

	return r
}
