package webhook

import "fmt"

/* Status represents the current state of a delivery
 * Lifecycle: Pending -> Delivering -> Sent/Failed/Retrying
 * Delivering marks a record claimed by a worker under a lease
 */
type Status int

const (
	Pending Status = iota + 1
	Delivering
	Retrying
	Sent
	Failed
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Delivering:
		return "delivering"
	case Retrying:
		return "retrying"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "pending":
		return Pending
	case "delivering":
		return Delivering
	case "retrying":
		return Retrying
	case "sent":
		return Sent
	case "failed":
		return Failed
	default:
		return Pending
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > Failed {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// IsFinal returns true if the status is a terminal state
func (s Status) IsFinal() bool {
	return s == Sent || s == Failed
}
