package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/oshokin/doorbell/internal/config"
	domain "github.com/oshokin/doorbell/internal/domain/door"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/service/common"
	"github.com/oshokin/doorbell/internal/service/latch"
)

// Options configures a client run.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerURL overrides the server URL from config when specified.
	ServerURL string

	// Debug skips firing the latch, used for testing the setup.
	Debug bool
}

// doorAPI is the part of the server API the client uses.
type doorAPI interface {
	Ring(ctx context.Context) error
	LongPollOpen(ctx context.Context, timeout time.Duration) (domain.PollResult, error)
}

// retryPollDelay is the pause after a failed long-poll request.
const retryPollDelay = time.Second

// Run rings the doorbell, waits for the operator and opens the door if told to.
// Not being let in is a normal outcome and is not reported as an error.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "doorbell-client")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.ServerURL != "" {
		cfg.Client.ServerURL = opts.ServerURL
	}

	if err = config.ValidateClient(cfg); err != nil {
		return err
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	api, err := common.NewClient(cfg.Client.ServerURL, common.WithCallTimeout(cfg.Client.RequestTimeout))
	if err != nil {
		return err
	}

	var door latch.Latch = latch.DryRun{}
	if !opts.Debug {
		if door, err = latch.NewCommandLatch(cfg.Client.UnlatchCommand); err != nil {
			return fmt.Errorf("configure latch: %w", err)
		}
	}

	opened, err := ringAndWait(ctx, api, door, &cfg.Client)
	if err != nil {
		return err
	}

	if !opened {
		logger.Info(ctx, "Didn't get a door-open response")
	}

	return nil
}

// ringAndWait reports the ring, waits for an open instruction and fires the
// latch. It reports whether the door was opened.
func ringAndWait(ctx context.Context, api doorAPI, door latch.Latch, settings *config.Client) (bool, error) {
	logger.InfoKV(ctx, "Ringing door", "server_url", settings.ServerURL)

	if err := ring(ctx, api, settings.RingAttempts); err != nil {
		return false, err
	}

	logger.InfoKV(ctx, "Waiting to open", "wait_budget", settings.WaitBudget)

	result, err := waitForOpen(ctx, api, settings.PollTimeout, settings.WaitBudget)
	if err != nil {
		return false, err
	}

	if result != domain.PollOpen {
		return false, nil
	}

	logger.Info(ctx, "Opening door")

	if err = door.Unlatch(ctx); err != nil {
		return false, fmt.Errorf("unlatch: %w", err)
	}

	return true, nil
}

// ring reports a ring, retrying with exponential backoff.
func ring(ctx context.Context, api doorAPI, attempts uint) error {
	operation := func() (struct{}, error) {
		if err := api.Ring(ctx); err != nil {
			logger.WarnKV(ctx, "Ring failed, retrying", "error", err)

			return struct{}{}, err
		}

		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(attempts),
	)
	if err != nil {
		return fmt.Errorf("report ring: %w", err)
	}

	return nil
}

// waitForOpen long-polls until the server answers open or budget elapses.
// Failed polls are retried after a short pause.
func waitForOpen(ctx context.Context, api doorAPI, pollTimeout, budget time.Duration) (domain.PollResult, error) {
	deadline := time.Now().Add(budget)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return domain.PollPunt, nil
		}

		result, err := api.LongPollOpen(ctx, min(pollTimeout, remaining))

		switch {
		case ctx.Err() != nil:
			return "", ctx.Err()
		case err == nil && result == domain.PollOpen:
			return result, nil
		case err == nil:
			continue
		case errors.Is(err, common.ErrUnexpectedAnswer):
			logger.ErrorKV(ctx, "Server gave an unexpected answer", "error", err)
		default:
			logger.WarnKV(ctx, "Long-poll failed, retrying", "error", err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(min(retryPollDelay, max(time.Until(deadline), 0))):
		}
	}
}
