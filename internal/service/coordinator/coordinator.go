package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/oshokin/doorbell/internal/domain/door"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/metrics"
)

// Notifier hands a message to the operators.
// Notify is called with the coordinator lock held and must not block.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

// Messages sent to the operators.
const (
	msgBuzz          = `Someone rang the doorbell. Respond with "y" to open door. Respond with "p" for party mode.`
	msgPartyBuzz     = `Someone rang the doorbell. Opening w/ party mode. Respond with "r" for regular mode.`
	msgOpened        = "Door opened by %s"
	msgRefused       = "Door open request from %s refused. Buzzer not recently buzzed"
	msgPartyEnabled  = "Party mode enabled by %s"
	msgPartyDisabled = "Party mode disabled by %s"
)

// Refusal reasons reported to the metrics recorder.
const (
	refusalNotBuzzed     = "not_buzzed"
	refusalConfirmExpiry = "confirm_window_expired"
)

// Default window lengths.
const (
	DefaultOpenWindow    = 10 * time.Second
	DefaultConfirmWindow = 60 * time.Second
)

// Coordinator is the door state machine shared by all request handlers.
type Coordinator struct {
	// notifier receives the operator messages.
	notifier Notifier
	// recorder counts transitions and poll outcomes.
	recorder metrics.Recorder
	// clock provides the current time and poll timers.
	clock Clock
	// openWindow is how long an open state may be consumed.
	openWindow time.Duration
	// confirmWindow is how long a buzz accepts an open request.
	confirmWindow time.Duration

	// mu guards everything below.
	mu sync.Mutex
	// state is the current door state.
	state domain.State
	// transitionedAt is when state was entered.
	transitionedAt time.Time
	// wake is closed and replaced on every transition to release pollers.
	wake chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces the system clock.
func WithClock(clock Clock) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(c *Coordinator) {
		if recorder != nil {
			c.recorder = recorder
		}
	}
}

// WithOpenWindow sets how long an open decision stays valid.
func WithOpenWindow(window time.Duration) Option {
	return func(c *Coordinator) {
		if window > 0 {
			c.openWindow = window
		}
	}
}

// WithConfirmWindow sets how long after a buzz an open request is honored.
func WithConfirmWindow(window time.Duration) Option {
	return func(c *Coordinator) {
		if window > 0 {
			c.confirmWindow = window
		}
	}
}

// New creates a coordinator in the neutral state.
func New(notifier Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		notifier:      notifier,
		recorder:      metrics.Nop{},
		clock:         systemClock{},
		openWindow:    DefaultOpenWindow,
		confirmWindow: DefaultConfirmWindow,
		wake:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.state = domain.Neutral
	c.transitionedAt = c.clock.Now()

	return c
}

// Buzz records a ring. Outside party mode the operators are asked to
// confirm; in party mode the door opens right away.
func (c *Coordinator) Buzz(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.IsParty() {
		c.notify(ctx, msgPartyBuzz)
		c.setState(ctx, domain.PartyModeOpen)

		return
	}

	c.notify(ctx, msgBuzz)
	c.setState(ctx, domain.RecentlyBuzzed)
}

// RequestOpen opens the door if it was buzzed within the confirm window.
// A late reply silently returns the door to neutral; a reply with no
// pending buzz is refused with a notification.
func (c *Coordinator) RequestOpen(ctx context.Context, caller domain.Caller) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != domain.RecentlyBuzzed {
		logger.InfoKV(ctx, "Open request refused", "caller", caller, "state", c.state)
		c.recorder.ObserveRefusal(refusalNotBuzzed)
		c.notify(ctx, fmt.Sprintf(msgRefused, caller))

		return
	}

	if !c.within(c.confirmWindow) {
		logger.InfoKV(ctx, "Open request arrived after the confirm window", "caller", caller,
			"buzzed_at", c.transitionedAt, "confirm_window", c.confirmWindow)
		c.recorder.ObserveRefusal(refusalConfirmExpiry)
		c.setState(ctx, domain.Neutral)

		return
	}

	c.notify(ctx, fmt.Sprintf(msgOpened, caller))
	c.setState(ctx, domain.Open)
}

// SetPartyMode turns party mode on, which also opens the door, or off,
// which returns the door to neutral whatever its state.
func (c *Coordinator) SetPartyMode(ctx context.Context, enabled bool, caller domain.Caller) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enabled {
		c.notify(ctx, fmt.Sprintf(msgPartyEnabled, caller))
		c.setState(ctx, domain.PartyModeOpen)

		return
	}

	c.notify(ctx, fmt.Sprintf(msgPartyDisabled, caller))
	c.setState(ctx, domain.Neutral)
}

// LongPollOpen blocks until an open window is available or timeout elapses.
// An available window is consumed so that only one poller acts on it.
// Cancelling ctx ends the wait like a timeout and never consumes a window.
func (c *Coordinator) LongPollOpen(ctx context.Context, timeout time.Duration) domain.PollResult {
	if timeout < 0 {
		timeout = 0
	}

	var (
		expired  = c.clock.After(timeout)
		timedOut = timeout == 0
	)

	c.recorder.AddWaiters(1)
	defer c.recorder.AddWaiters(-1)

	c.mu.Lock()
	defer c.mu.Unlock()

	for !c.shouldOpen() && !timedOut {
		wake := c.wake

		c.mu.Unlock()

		select {
		case <-wake:
		case <-expired:
			timedOut = true
		case <-ctx.Done():
			timedOut = true
		}

		c.mu.Lock()
	}

	// A cancelled poller cannot act on the window, so it is left for the next one.
	if ctx.Err() != nil || !c.shouldOpen() {
		c.recorder.ObservePoll(string(domain.PollPunt))

		return domain.PollPunt
	}

	c.setState(ctx, c.state.Consumed())
	c.recorder.ObservePoll(string(domain.PollOpen))

	return domain.PollOpen
}

// Reset returns the coordinator to neutral and wakes every poller.
func (c *Coordinator) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setState(ctx, domain.Neutral)
}

// Snapshot returns the current state and when it was entered.
func (c *Coordinator) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return domain.Snapshot{
		State:          c.state,
		TransitionedAt: c.transitionedAt,
	}
}

// shouldOpen reports whether a poller may fire the latch now.
// Caller must hold mu.
func (c *Coordinator) shouldOpen() bool {
	return c.state.IsOpen() && c.within(c.openWindow)
}

// within reports whether now lies in [transitionedAt, transitionedAt+window).
// Caller must hold mu.
func (c *Coordinator) within(window time.Duration) bool {
	elapsed := c.clock.Now().Sub(c.transitionedAt)

	return elapsed >= 0 && elapsed < window
}

// setState records a transition and releases every waiting poller.
// Caller must hold mu.
func (c *Coordinator) setState(ctx context.Context, state domain.State) {
	from := c.state

	c.state = state
	c.transitionedAt = c.clock.Now()

	close(c.wake)
	c.wake = make(chan struct{})

	c.recorder.ObserveTransition(from.String(), state.String())
	logger.InfoKV(ctx, "Door state changed", "from", from, "to", state)
}

// notify forwards message to the notifier, if any.
// Caller must hold mu.
func (c *Coordinator) notify(ctx context.Context, message string) {
	if c.notifier == nil {
		return
	}

	c.notifier.Notify(ctx, message)
}
