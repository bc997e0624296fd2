package notify

import (
	"context"

	"github.com/oshokin/doorbell/internal/logger"
)

// LogNotifier writes messages to the log instead of sending them.
type LogNotifier struct {
	// recipients are only reported in the log line.
	recipients []string
}

// NewLogNotifier creates a notifier that logs on behalf of recipients.
func NewLogNotifier(recipients []string) *LogNotifier {
	return &LogNotifier{
		recipients: append([]string(nil), recipients...),
	}
}

// NotifyAll logs the message.
func (n *LogNotifier) NotifyAll(ctx context.Context, message string) error {
	logger.InfoKV(ctx, "Notification (not sent, SMS disabled)", "message", message, "recipients", n.recipients)

	return nil
}
