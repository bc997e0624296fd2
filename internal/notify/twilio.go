package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
)

// maxParallelSends bounds concurrent requests to the Twilio API.
const maxParallelSends = 4

// messageCreator is the part of the Twilio API used to send a text.
type messageCreator interface {
	CreateMessage(params *twilioapi.CreateMessageParams) (*twilioapi.ApiV2010Message, error)
}

// TwilioNotifier sends SMS through Twilio.
type TwilioNotifier struct {
	// api sends messages.
	api messageCreator
	// from is the sender number.
	from string
	// recipients receive every message.
	recipients []string
}

var (
	// errSenderRequired is returned when no sender number is configured.
	errSenderRequired = errors.New("twilio sender phone must be provided")
	// errTwilioDisabled is returned when credentials are incomplete.
	errTwilioDisabled = errors.New("twilio credentials are incomplete")
)

// NewTwilioNotifier creates a notifier from credentials. Requests time out
// after timeout; a non-positive value keeps the library default.
func NewTwilioNotifier(settings config.Twilio, recipients []string, timeout time.Duration) (*TwilioNotifier, error) {
	if !settings.Enabled() {
		return nil, errTwilioDisabled
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username:   settings.APIKeySID,
		Password:   settings.APIKeySecret,
		AccountSid: settings.AccountSID,
	})

	if timeout > 0 {
		client.SetTimeout(timeout)
	}

	return newTwilioNotifier(client.Api, settings.FromPhone, recipients)
}

// newTwilioNotifier wires a notifier around any message API.
func newTwilioNotifier(api messageCreator, from string, recipients []string) (*TwilioNotifier, error) {
	if from == "" {
		return nil, errSenderRequired
	}

	if len(recipients) == 0 {
		return nil, ErrNoRecipients
	}

	return &TwilioNotifier{
		api:        api,
		from:       from,
		recipients: append([]string(nil), recipients...),
	}, nil
}

// NotifyAll texts message to every recipient in parallel and returns the
// combined error of the failed sends.
func (n *TwilioNotifier) NotifyAll(ctx context.Context, message string) error {
	logger.DebugKV(ctx, "Sending notification", "message", message, "recipients", len(n.recipients))

	var (
		group errgroup.Group
		mu    sync.Mutex
		errs  error
	)

	group.SetLimit(maxParallelSends)

	for _, to := range n.recipients {
		group.Go(func() error {
			if err := n.send(ctx, to, message); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = group.Wait() //nolint:errcheck // Sends never return errors to the group.

	return errs
}

// send texts one recipient.
func (n *TwilioNotifier) send(ctx context.Context, to, message string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send to %s: %w", to, err)
	}

	params := new(twilioapi.CreateMessageParams)
	params.SetTo(to)
	params.SetFrom(n.from)
	params.SetBody(message)

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to send text", "to", to, "error", err)

		return fmt.Errorf("send to %s: %w", to, err)
	}

	logger.InfoKV(ctx, "Text sent", "to", to, "sid", deref(resp.Sid), "status", deref(resp.Status))

	return nil
}

// deref returns the pointed-to string or an empty one.
func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
