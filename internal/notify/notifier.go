package notify

import (
	"context"
	"errors"
)

// Notifier fans a message out to every configured recipient.
// A failure for one recipient does not stop delivery to the others.
type Notifier interface {
	NotifyAll(ctx context.Context, message string) error
}

// ErrNoRecipients is returned when a notifier has nobody to text.
var ErrNoRecipients = errors.New("no recipients configured")
