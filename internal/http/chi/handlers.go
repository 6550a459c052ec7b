package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/caseflow/webhook-outbox/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

/* Interfaces the HTTP layer needs from the engine. Declared here, on the
 * consumer side, so handlers can be tested against mocks.
 */

// EventFirer dispatches a domain event to matching subscribers
type EventFirer interface {
	Fire(ctx context.Context, eventType string, data, eventContext any) error
}

// QueueProcessor drains due deliveries and runs test deliveries
type QueueProcessor interface {
	ProcessQueue(ctx context.Context) (int, error)
	Test(ctx context.Context, subscriberID string) (webhook.Delivery, error)
}

// Handlers sets up the webhook admin API routes
func Handlers(ctx context.Context, registry webhook.UseCase, firer EventFirer, processor QueueProcessor, metricsHandler http.Handler) *chi.Mux {
	logger := httplog.NewLogger("webhook-outbox", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", listWebhooks(registry).ServeHTTP)
			r.Post("/", registerWebhook(registry).ServeHTTP)
			r.Get("/stats", webhookStats(registry).ServeHTTP)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", getWebhook(registry).ServeHTTP)
				r.Put("/", updateWebhook(registry).ServeHTTP)
				r.Delete("/", deleteWebhook(registry).ServeHTTP)
				r.Get("/stats", webhookStats(registry).ServeHTTP)
				r.Post("/test", testWebhook(processor).ServeHTTP)
			})
		})

		// Fire a domain event into the engine
		r.Post("/events", fireEvent(firer).ServeHTTP)

		// External periodic trigger for the delivery processor
		r.Post("/queue/process", processQueue(processor).ServeHTTP)
	})

	return r
}
