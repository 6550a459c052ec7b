package webhook

// Stats summarizes delivery outcomes for one subscriber, or for the whole
// system when SubscriberID is empty.
type Stats struct {
	SubscriberID string  `json:"subscriber_id,omitempty"`
	SuccessCount int64   `json:"success_count"`
	FailureCount int64   `json:"failure_count"`
	SuccessRate  float64 `json:"success_rate"`
}

// NewStats computes the success rate, defined as 0 when there have been
// no attempts at all.
func NewStats(subscriberID string, success, failure int64) Stats {
	var rate float64
	if total := success + failure; total > 0 {
		rate = float64(success) / float64(total)
	}
	return Stats{
		SubscriberID: subscriberID,
		SuccessCount: success,
		FailureCount: failure,
		SuccessRate:  rate,
	}
}
