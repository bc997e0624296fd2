package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives doorbell events worth counting.
type Recorder interface {
	// ObserveTransition counts a state change.
	ObserveTransition(from, to string)
	// ObserveRefusal counts an open request that did not open the door.
	ObserveRefusal(reason string)
	// ObservePoll counts a finished long-poll by result.
	ObservePoll(result string)
	// AddWaiters adjusts the number of blocked long-polls.
	AddWaiters(delta int)
	// ObserveNotification counts a notification by delivery status.
	ObserveNotification(status string)
}

// Notification delivery statuses.
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
)

// PrometheusRecorder implements Recorder with Prometheus collectors.
type PrometheusRecorder struct {
	transitions   *prometheus.CounterVec
	refusals      *prometheus.CounterVec
	polls         *prometheus.CounterVec
	waiters       prometheus.Gauge
	notifications *prometheus.CounterVec
}

// NewPrometheusRecorder registers the doorbell collectors on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorbell_transitions_total",
				Help: "Door state transitions by source and target state",
			},
			[]string{"from", "to"},
		),
		refusals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorbell_refusals_total",
				Help: "Open requests that did not open the door",
			},
			[]string{"reason"},
		),
		polls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorbell_longpoll_results_total",
				Help: "Finished long-polls by result",
			},
			[]string{"result"},
		),
		waiters: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "doorbell_longpoll_waiters",
				Help: "Long-polls currently waiting for an open window",
			},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doorbell_notifications_total",
				Help: "Operator notifications by delivery status",
			},
			[]string{"status"},
		),
	}
}

// ObserveTransition counts a state change.
func (p *PrometheusRecorder) ObserveTransition(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

// ObserveRefusal counts a refused open request.
func (p *PrometheusRecorder) ObserveRefusal(reason string) {
	p.refusals.WithLabelValues(reason).Inc()
}

// ObservePoll counts a finished long-poll.
func (p *PrometheusRecorder) ObservePoll(result string) {
	p.polls.WithLabelValues(result).Inc()
}

// AddWaiters adjusts the waiter gauge.
func (p *PrometheusRecorder) AddWaiters(delta int) {
	p.waiters.Add(float64(delta))
}

// ObserveNotification counts a notification outcome.
func (p *PrometheusRecorder) ObserveNotification(status string) {
	p.notifications.WithLabelValues(status).Inc()
}

// Nop discards everything.
type Nop struct{}

// ObserveTransition does nothing.
func (Nop) ObserveTransition(string, string) {}

// ObserveRefusal does nothing.
func (Nop) ObserveRefusal(string) {}

// ObservePoll does nothing.
func (Nop) ObservePoll(string) {}

// AddWaiters does nothing.
func (Nop) AddWaiters(int) {}

// ObserveNotification does nothing.
func (Nop) ObserveNotification(string) {}
