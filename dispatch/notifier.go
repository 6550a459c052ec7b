package dispatch

import (
	"context"

	"go.uber.org/zap"
)

// Severity classifies an escalation notification
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

/* Notifier is the external notification collaborator invoked when a
 * delivery permanently fails. The admin application plugs in its own
 * implementation (email, on-call paging); the engine only needs this
 * one method.
 */
type Notifier interface {
	Notify(ctx context.Context, title, message string, severity Severity) error
}

// LogNotifier is the default Notifier: it writes escalations to the log
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the escalation at a level matching its severity
func (n *LogNotifier) Notify(ctx context.Context, title, message string, severity Severity) error {
	fields := []zap.Field{
		zap.String("title", title),
		zap.String("severity", string(severity)),
	}
	switch severity {
	case SeverityError:
		n.logger.Error(message, fields...)
	case SeverityWarning:
		n.logger.Warn(message, fields...)
	default:
		n.logger.Info(message, fields...)
	}
	return nil
}
