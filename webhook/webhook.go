package webhook

import "time"

/* Subscriber represents an externally registered HTTP endpoint interested
 * in one or more event types. Uses value semantics as it represents data,
 * not behavior.
 */
type Subscriber struct {
	ID             string
	URL            string
	Events         []string
	Secret         string
	Enabled        bool
	RetryAttempts  int
	TimeoutSeconds int
	CustomHeaders  []Header
	CreatedAt      time.Time
	LastSentAt     time.Time
	SuccessCount   int64
	FailureCount   int64
}

/* Header is a single custom header appended to outbound requests.
 * A slice rather than a map so headers keep their registration order.
 */
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Matches reports whether the subscriber wants the given event type.
// An empty event set subscribes to everything; otherwise the match is
// a case-sensitive exact comparison.
func (s Subscriber) Matches(eventType string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// Timeout returns the per-attempt HTTP timeout
func (s Subscriber) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}
