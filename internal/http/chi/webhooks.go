package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/caseflow/webhook-outbox/webhook"
	"github.com/go-chi/chi/v5"
)

/* HTTP layer DTOs for the webhook admin API
 * Separate from domain entities to avoid leaking internal structure
 */

// registerRequest represents the payload for registering a subscriber
type registerRequest struct {
	URL            string           `json:"url"`
	Events         []string         `json:"events"`
	Secret         string           `json:"secret,omitempty"`
	Enabled        *bool            `json:"enabled,omitempty"`
	RetryAttempts  int              `json:"retry_attempts,omitempty"`
	TimeoutSeconds int              `json:"timeout_seconds,omitempty"`
	CustomHeaders  []webhook.Header `json:"custom_headers,omitempty"`
}

// subscriberResponse represents a subscriber in the API.
// Secret is only populated on registration; reads never echo it back.
type subscriberResponse struct {
	ID             string           `json:"id"`
	URL            string           `json:"url"`
	Events         []string         `json:"events"`
	Secret         string           `json:"secret,omitempty"`
	Enabled        bool             `json:"enabled"`
	RetryAttempts  int              `json:"retry_attempts"`
	TimeoutSeconds int              `json:"timeout_seconds"`
	CustomHeaders  []webhook.Header `json:"custom_headers,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	LastSentAt     *time.Time       `json:"last_sent_at,omitempty"`
	SuccessCount   int64            `json:"success_count"`
	FailureCount   int64            `json:"failure_count"`
}

// deliveryResponse represents a delivery attempt result in the API
type deliveryResponse struct {
	ID           string `json:"id"`
	SubscriberID string `json:"subscriber_id"`
	Status       string `json:"status"`
	Attempts     int    `json:"attempts"`
	ResponseCode int    `json:"response_code,omitempty"`
	ResponseBody string `json:"response_body,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

func toSubscriberResponse(s webhook.Subscriber, includeSecret bool) subscriberResponse {
	resp := subscriberResponse{
		ID:             s.ID,
		URL:            s.URL,
		Events:         s.Events,
		Enabled:        s.Enabled,
		RetryAttempts:  s.RetryAttempts,
		TimeoutSeconds: s.TimeoutSeconds,
		CustomHeaders:  s.CustomHeaders,
		CreatedAt:      s.CreatedAt,
		SuccessCount:   s.SuccessCount,
		FailureCount:   s.FailureCount,
	}
	if includeSecret {
		resp.Secret = s.Secret
	}
	if !s.LastSentAt.IsZero() {
		last := s.LastSentAt
		resp.LastSentAt = &last
	}
	return resp
}

func toDeliveryResponse(d webhook.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:           d.ID,
		SubscriberID: d.SubscriberID,
		Status:       d.Status.String(),
		Attempts:     d.Attempts,
		ResponseCode: d.ResponseCode,
		ResponseBody: d.ResponseBody,
		LastError:    d.LastError,
	}
}

// writeError maps domain errors to HTTP status codes
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, webhook.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case webhook.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// registerWebhook handles POST /v1/webhooks
func registerWebhook(registry webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		sub, err := registry.Register(r.Context(), req.URL, req.Events, webhook.RegisterOptions{
			Secret:         req.Secret,
			Enabled:        req.Enabled,
			RetryAttempts:  req.RetryAttempts,
			TimeoutSeconds: req.TimeoutSeconds,
			CustomHeaders:  req.CustomHeaders,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		// The secret is returned exactly once, at registration time
		writeJSON(w, http.StatusCreated, toSubscriberResponse(sub, true))
	})
}

// listWebhooks handles GET /v1/webhooks
func listWebhooks(registry webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subs, err := registry.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		responses := make([]subscriberResponse, 0, len(subs))
		for _, sub := range subs {
			responses = append(responses, toSubscriberResponse(sub, false))
		}
		writeJSON(w, http.StatusOK, responses)
	})
}

// getWebhook handles GET /v1/webhooks/:id
func getWebhook(registry webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sub, err := registry.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSubscriberResponse(sub, false))
	})
}

// updateWebhook handles PUT /v1/webhooks/:id.
// Unknown fields are rejected so callers cannot silently attempt to
// change the secret or delivery counters.
func updateWebhook(registry webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		var fields webhook.UpdateFields
		if err := decoder.Decode(&fields); err != nil {
			http.Error(w, "invalid update body: "+err.Error(), http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		sub, err := registry.Update(r.Context(), id, fields)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSubscriberResponse(sub, false))
	})
}

// deleteWebhook handles DELETE /v1/webhooks/:id
func deleteWebhook(registry webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := registry.Delete(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// webhookStats handles GET /v1/webhooks/stats and GET /v1/webhooks/:id/stats.
// Without an id it reports the aggregate across all subscribers.
func webhookStats(registry webhook.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		stats, err := registry.Stats(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})
}

// testWebhook handles POST /v1/webhooks/:id/test
func testWebhook(processor QueueProcessor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		delivery, err := processor.Test(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDeliveryResponse(delivery))
	})
}
