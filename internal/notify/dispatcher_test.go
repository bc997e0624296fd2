package notify

import (
	"context"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/doorbell/internal/metrics"
)

// scriptedNotifier records deliveries and can block until its context ends.
type scriptedNotifier struct {
	// mu protects delivered.
	mu sync.Mutex
	// delivered holds messages in delivery order.
	delivered []string
	// hang makes NotifyAll wait for ctx to finish.
	hang bool
}

// NotifyAll records message, or waits for ctx when hang is set.
func (s *scriptedNotifier) NotifyAll(ctx context.Context, message string) error {
	if s.hang {
		<-ctx.Done()

		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.delivered = append(s.delivered, message)

	return nil
}

// Delivered returns a copy of the delivered messages.
func (s *scriptedNotifier) Delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.delivered...)
}

// statusRecorder counts notification outcomes.
type statusRecorder struct {
	metrics.Nop

	mu       sync.Mutex
	statuses map[string]int
}

func (r *statusRecorder) ObserveNotification(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.statuses == nil {
		r.statuses = make(map[string]int)
	}

	r.statuses[status]++
}

func (r *statusRecorder) Count(status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.statuses[status]
}

// TestDispatcher_DeliversInOrder checks FIFO delivery by the worker.
func TestDispatcher_DeliversInOrder(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		notifier := new(scriptedNotifier)
		recorder := new(statusRecorder)
		d := NewDispatcher(notifier, WithDispatcherRecorder(recorder))

		go d.Run(ctx)

		for _, m := range []string{"one", "two", "three"} {
			d.Notify(ctx, m)
		}

		synctest.Wait()

		require.Equal(t, []string{"one", "two", "three"}, notifier.Delivered())
		require.Equal(t, 3, recorder.Count(metrics.NotificationSent))
	})
}

// TestDispatcher_NotifyNeverBlocks drops messages once the queue is full.
func TestDispatcher_NotifyNeverBlocks(t *testing.T) {
	t.Parallel()

	recorder := new(statusRecorder)
	d := NewDispatcher(new(scriptedNotifier), WithQueueSize(2), WithDispatcherRecorder(recorder))

	// No worker is running, so the third message has nowhere to go.
	for range 3 {
		d.Notify(context.Background(), "ring")
	}

	require.Len(t, d.queue, 2)
	require.Equal(t, 1, recorder.Count(metrics.NotificationDropped))
}

// TestDispatcher_DeliveryTimeout bounds a stalled delivery and moves on.
func TestDispatcher_DeliveryTimeout(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		recorder := new(statusRecorder)
		d := NewDispatcher(
			&scriptedNotifier{hang: true},
			WithDeliveryTimeout(3*time.Second),
			WithDispatcherRecorder(recorder),
		)

		go d.Run(ctx)

		d.Notify(ctx, "first")
		d.Notify(ctx, "second")

		time.Sleep(time.Second)
		synctest.Wait()
		require.Zero(t, recorder.Count(metrics.NotificationFailed))

		time.Sleep(6 * time.Second)
		synctest.Wait()

		require.Equal(t, 2, recorder.Count(metrics.NotificationFailed))
	})
}

// TestDispatcher_StopsWithContext returns from Run once cancelled.
func TestDispatcher_StopsWithContext(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		d := NewDispatcher(new(scriptedNotifier))
		done := make(chan struct{})

		go func() {
			d.Run(ctx)
			close(done)
		}()

		cancel()
		<-done
	})
}
