package webhook

import "time"

// ResponseBodyLimit caps how much of a subscriber's response body is
// retained on a delivery record.
const ResponseBodyLimit = 512

/* Delivery pairs one subscriber with one fired event and tracks every
 * attempt made against it. The payload holds the full serialized event
 * envelope; the signature was computed over exactly those bytes with the
 * subscriber's secret at creation time.
 */
type Delivery struct {
	ID             string
	SubscriberID   string
	Payload        []byte
	Signature      string
	Status         Status
	Attempts       int
	MaxAttempts    int
	TimeoutSeconds int
	CustomHeaders  []Header
	CreatedAt      time.Time
	NextAttemptAt  time.Time
	CompletedAt    time.Time
	LastError      string
	ResponseCode   int
	ResponseBody   string
}

// Succeed moves the delivery to its Sent terminal state
func (d *Delivery) Succeed(code int, body string, now time.Time) {
	d.Status = Sent
	d.ResponseCode = code
	d.ResponseBody = truncate(body)
	d.LastError = ""
	d.CompletedAt = now
}

// Retry schedules the next attempt after a failed one
func (d *Delivery) Retry(lastError string, code int, body string, nextAttemptAt time.Time) {
	d.Status = Retrying
	d.LastError = lastError
	d.ResponseCode = code
	d.ResponseBody = truncate(body)
	d.NextAttemptAt = nextAttemptAt
}

// Exhaust moves the delivery to its Failed terminal state
func (d *Delivery) Exhaust(lastError string, code int, body string, now time.Time) {
	d.Status = Failed
	d.LastError = lastError
	d.ResponseCode = code
	d.ResponseBody = truncate(body)
	d.CompletedAt = now
}

// Timeout returns the per-attempt HTTP timeout
func (d Delivery) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

func truncate(body string) string {
	if len(body) > ResponseBodyLimit {
		return body[:ResponseBodyLimit]
	}
	return body
}
