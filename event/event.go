package event

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// typePattern validates event types: hierarchical, full-stop delimited, [a-zA-Z0-9_.]
var typePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+(\.[a-zA-Z0-9_]+)*$`)

// Source identifies the application that produced an event
type Source struct {
	Application string `json:"application"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

/* Event is an immutable fact produced by the host application,
 * e.g. "complaint.created" or "backup.completed". It is never stored
 * on its own: the serialized envelope is embedded into each delivery
 * and signed as-is, so the receiver can recompute the signature over
 * the raw body it gets.
 */
type Event struct {
	Type      string
	Timestamp time.Time
	Data      json.RawMessage
	Context   json.RawMessage
	Source    Source
}

// envelope is the wire form of an event (the HTTP POST body)
type envelope struct {
	Event     string          `json:"event"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
	Context   json.RawMessage `json:"context"`
	Source    Source          `json:"source"`
}

// New creates an event with the current UTC time. Data and context may be
// any JSON-serializable values; nil becomes an empty object.
func New(eventType string, data, eventContext any, source Source) (Event, error) {
	if err := ValidateType(eventType); err != nil {
		return Event{}, err
	}

	dataBytes, err := marshalOrEmpty(data)
	if err != nil {
		return Event{}, fmt.Errorf("marshaling event data: %w", err)
	}

	contextBytes, err := marshalOrEmpty(eventContext)
	if err != nil {
		return Event{}, fmt.Errorf("marshaling event context: %w", err)
	}

	return Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      dataBytes,
		Context:   contextBytes,
		Source:    source,
	}, nil
}

// Bytes returns the canonical JSON encoding of the event. The same bytes
// are used as the HTTP body and as the signing input.
func (e Event) Bytes() ([]byte, error) {
	data := e.Data
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	eventContext := e.Context
	if len(eventContext) == 0 {
		eventContext = json.RawMessage(`{}`)
	}

	return json.Marshal(envelope{
		Event:     e.Type,
		Timestamp: e.Timestamp.Unix(),
		Data:      data,
		Context:   eventContext,
		Source:    e.Source,
	})
}

// ValidateType validates an event type format
func ValidateType(eventType string) error {
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if !typePattern.MatchString(eventType) {
		return fmt.Errorf("event type must be hierarchical and contain only [a-zA-Z0-9_.]: %s", eventType)
	}
	return nil
}

func marshalOrEmpty(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage(`{}`), nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return json.RawMessage(`{}`), nil
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("raw value is not valid JSON")
		}
		return raw, nil
	}
	return json.Marshal(v)
}
