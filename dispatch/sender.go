package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/caseflow/webhook-outbox/webhook"
)

// UserAgent identifies the engine on every outbound request
const UserAgent = "Caseflow-Webhook/1.0"

/* Sender performs the signed HTTP POST for one delivery attempt.
 * The request body is the delivery's stored payload, byte for byte the
 * input the signature was computed over.
 */
type Sender struct {
	client *http.Client
}

// NewSender creates a sender. Per-attempt timeouts come from each
// delivery, so the shared client carries none.
func NewSender() *Sender {
	return &Sender{
		client: &http.Client{},
	}
}

// Send posts the delivery payload to url, bounded by the delivery's
// timeout. It returns the response status code and a body excerpt; err is
// non-nil only for transport-level failures (DNS, refused connection,
// timeout). Interpreting non-2xx codes is the caller's job.
func (s *Sender) Send(ctx context.Context, d webhook.Delivery, url string) (int, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(d.Payload))
	if err != nil {
		return 0, "", fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Webhook-ID", d.SubscriberID)
	req.Header.Set("X-Delivery-ID", d.ID)
	req.Header.Set("X-Signature", d.Signature)
	req.Header.Set("X-Timestamp", strconv.FormatInt(payloadTimestamp(d.Payload), 10))

	// Subscriber-configured headers go last so they can override defaults
	for _, h := range d.CustomHeaders {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, webhook.ResponseBodyLimit))
	return resp.StatusCode, string(body), nil
}

// payloadTimestamp pulls the event timestamp back out of the wire body
func payloadTimestamp(payload []byte) int64 {
	var envelope struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return 0
	}
	return envelope.Timestamp
}
