package chi

import (
	"encoding/json"
	"net/http"

	"github.com/caseflow/webhook-outbox/event"
)

// eventRequest represents an event fired by the host application
type eventRequest struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Context json.RawMessage `json:"context,omitempty"`
}

// eventResponse acknowledges that an event was accepted for dispatch
type eventResponse struct {
	Event    string `json:"event"`
	Accepted bool   `json:"accepted"`
}

// processResponse reports how many deliveries a queue run attempted
type processResponse struct {
	Processed int `json:"processed"`
}

// fireEvent handles POST /v1/events
func fireEvent(firer EventFirer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req eventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if err := event.ValidateType(req.Event); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := firer.Fire(r.Context(), req.Event, req.Data, req.Context); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		// 202: deliveries are queued, not necessarily sent yet
		writeJSON(w, http.StatusAccepted, eventResponse{Event: req.Event, Accepted: true})
	})
}

// processQueue handles POST /v1/queue/process, the external cron trigger
func processQueue(processor QueueProcessor) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processed, err := processor.ProcessQueue(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, processResponse{Processed: processed})
	})
}
