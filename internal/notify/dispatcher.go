package notify

import (
	"context"
	"time"

	"github.com/oshokin/doorbell/internal/config"
	"github.com/oshokin/doorbell/internal/logger"
	"github.com/oshokin/doorbell/internal/metrics"
)

// Dispatcher queues messages and delivers them in order from one worker.
type Dispatcher struct {
	// notifier performs the deliveries.
	notifier Notifier
	// recorder counts delivery outcomes.
	recorder metrics.Recorder
	// timeout bounds one delivery.
	timeout time.Duration
	// queue buffers messages waiting for the worker.
	queue chan string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDeliveryTimeout bounds a single delivery.
func WithDeliveryTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithQueueSize sets how many messages may wait for delivery.
func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.queue = make(chan string, size)
		}
	}
}

// WithDispatcherRecorder sets the metrics recorder.
func WithDispatcherRecorder(recorder metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if recorder != nil {
			d.recorder = recorder
		}
	}
}

// NewDispatcher creates a dispatcher in front of notifier. Call Run to start delivering.
func NewDispatcher(notifier Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		recorder: metrics.Nop{},
		timeout:  config.DefaultNotifyTimeout,
		queue:    make(chan string, config.DefaultNotifyQueueSize),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Notify queues message for delivery. It never blocks: when the queue is
// full the message is dropped and counted.
func (d *Dispatcher) Notify(ctx context.Context, message string) {
	select {
	case d.queue <- message:
	default:
		logger.WarnKV(ctx, "Notification queue is full, dropping message", "message", message)
		d.recorder.ObserveNotification(metrics.NotificationDropped)
	}
}

// Run delivers queued messages until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ctx = logger.WithName(ctx, "notify")

	for {
		select {
		case <-ctx.Done():
			if pending := len(d.queue); pending > 0 {
				logger.WarnKV(ctx, "Dispatcher stopped with undelivered messages", "pending", pending)
			}

			return
		case message := <-d.queue:
			d.deliver(ctx, message)
		}
	}
}

// deliver sends one message under the delivery timeout.
func (d *Dispatcher) deliver(ctx context.Context, message string) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.notifier.NotifyAll(callCtx, message); err != nil {
		logger.ErrorKV(ctx, "Notification delivery failed", "message", message, "error", err)
		d.recorder.ObserveNotification(metrics.NotificationFailed)

		return
	}

	d.recorder.ObserveNotification(metrics.NotificationSent)
}
